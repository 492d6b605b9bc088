// Package alerting detects threshold breaches in matched rows, deduplicates
// them, fans them out to notification channels and keeps a bounded history.
package alerting

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Type identifies the rule that raised an alert.
type Type string

const (
	TypeUnsoldLead     Type = "unsold_lead"
	TypeNegativeMargin Type = "negative_margin"
	TypeLowSellRate    Type = "low_sell_rate"
	TypeLowROI         Type = "low_roi"
	TypeHighRejection  Type = "high_rejection"
	TypeRevenueDrop    Type = "revenue_drop"
	TypeSystemError    Type = "system_error"
)

var knownTypes = map[Type]struct{}{
	TypeUnsoldLead: {}, TypeNegativeMargin: {}, TypeLowSellRate: {}, TypeLowROI: {},
	TypeHighRejection: {}, TypeRevenueDrop: {}, TypeSystemError: {},
}

// UnmarshalText rejects unknown alert types.
func (t *Type) UnmarshalText(b []byte) error {
	v := Type(strings.ToLower(string(b)))
	if _, ok := knownTypes[v]; !ok {
		return fmt.Errorf("unknown alert type %q", string(b))
	}
	*t = v
	return nil
}

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a string onto a Severity.
func ParseSeverity(v string) (Severity, error) {
	switch s := Severity(strings.ToLower(strings.TrimSpace(v))); s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return s, nil
	default:
		return "", fmt.Errorf("unknown severity %q", v)
	}
}

// UnmarshalText rejects unknown severities.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Alert is one raised condition. Once Acknowledged it stays acknowledged.
type Alert struct {
	ID             string         `json:"id"`
	Type           Type           `json:"alert_type"`
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Timestamp      time.Time      `json:"timestamp"`
	CampaignID     string         `json:"campaign_id,omitempty"`
	CampaignName   string         `json:"campaign_name,omitempty"`
	AdID           string         `json:"ad_id,omitempty"`
	AdName         string         `json:"ad_name,omitempty"`
	Vertical       string         `json:"vertical,omitempty"`
	MetricValue    *float64       `json:"metric_value"`
	ThresholdValue *float64       `json:"threshold_value"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Acknowledge marks a as seen at t. It is a no-op on an acknowledged alert.
func (a *Alert) Acknowledge(t time.Time) {
	if a.Acknowledged {
		return
	}
	a.Acknowledged = true
	at := t.UTC()
	a.AcknowledgedAt = &at
}

// AlertID derives a stable identifier for an alert of type t on one ad within
// the UTC hour containing at. Repeats within the hour share an id.
func AlertID(t Type, campaignID, adID string, at time.Time) string {
	bucket := at.UTC().Format("2006010215")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", t, campaignID, adID, bucket)))
	return hex.EncodeToString(sum[:])[:16]
}

// CountBySeverity tallies alerts per severity.
func CountBySeverity(alerts []Alert) map[Severity]int {
	out := make(map[Severity]int, 3)
	for _, a := range alerts {
		out[a.Severity]++
	}
	return out
}

func float(v float64) *float64 { return &v }
