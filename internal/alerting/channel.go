package alerting

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a channel asked to send without its settings.
var ErrNotConfigured = errors.New("channel not configured")

// Channel delivers a batch of alerts to one destination.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, alerts []Alert) error
}

const productName = "Lead Recon"

var severityMarks = map[Severity]string{
	SeverityCritical: "🔴",
	SeverityWarning:  "🟡",
	SeverityInfo:     "🔵",
}

func severityMark(s Severity) string {
	if m, ok := severityMarks[s]; ok {
		return m
	}
	return "⚪"
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
