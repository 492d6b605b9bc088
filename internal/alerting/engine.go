package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lead-recon/internal/reconcile"
)

// Recorder receives engine counters. The metrics package implements it.
type Recorder interface {
	AlertGenerated(t Type, s Severity)
	AlertDispatched(channel string, ok bool)
	PollIteration(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) AlertGenerated(Type, Severity) {}
func (nopRecorder) AlertDispatched(string, bool) {}
func (nopRecorder) PollIteration(bool) {}

// Engine owns the alert lifecycle: detection, deduplication, dispatch and history.
type Engine struct {
	detector *Detector
	channels []Channel
	history  *History
	recent   *RecentSet
	recorder Recorder
	logger   zerolog.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithRecentSet replaces the default one-hour suppression set.
func WithRecentSet(s *RecentSet) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.recent = s
		}
	}
}

// NewEngine wires a detector, history and channels. Channels are attempted in order.
func NewEngine(detector *Detector, history *History, channels []Channel, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		detector: detector,
		channels: channels,
		history:  history,
		recent:   NewRecentSet(DefaultRecentWindow, nil),
		recorder: nopRecorder{},
		logger:   logger.With().Str("component", "alert_engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History returns the engine's alert history.
func (e *Engine) History() *History { return e.history }

// Dashboard returns the first dashboard channel, if one is registered.
func (e *Engine) Dashboard() (*DashboardChannel, bool) {
	for _, c := range e.channels {
		if d, ok := c.(*DashboardChannel); ok {
			return d, true
		}
	}
	return nil, false
}

// SendAlerts attempts every channel independently and returns per-channel
// success. Unconfigured channels report false without being called. Alerts are
// appended to history whatever the channel outcomes.
func (e *Engine) SendAlerts(ctx context.Context, alerts []Alert) map[string]bool {
	results := make(map[string]bool, len(e.channels))
	if len(alerts) == 0 {
		return results
	}

	for _, ch := range e.channels {
		name := ch.Name()
		if !ch.IsConfigured() {
			e.logger.Warn().Str("channel", name).Msg("skipping unconfigured alert channel")
			results[name] = false
			e.recorder.AlertDispatched(name, false)
			continue
		}

		err := sendSafely(ctx, ch, alerts)
		results[name] = err == nil
		e.recorder.AlertDispatched(name, err == nil)
		if err != nil {
			e.logger.Error().Err(err).Str("channel", name).Int("alerts", len(alerts)).Msg("alert channel failed")
		}
	}

	if e.history != nil {
		if err := e.history.Append(ctx, alerts); err != nil {
			e.logger.Error().Err(err).Msg("failed to store alert history")
		}
	}
	return results
}

func sendSafely(ctx context.Context, ch Channel, alerts []Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, alerts)
}

// Dispatch drops alerts already sent within the recent window, sends the rest
// and remembers them. It returns the alerts actually sent.
func (e *Engine) Dispatch(ctx context.Context, alerts []Alert) ([]Alert, map[string]bool) {
	fresh := e.recent.Filter(alerts)
	if len(fresh) == 0 {
		return fresh, map[string]bool{}
	}
	results := e.SendAlerts(ctx, fresh)
	e.recent.Remember(fresh)
	return fresh, results
}

// CheckResult summarises one detection pass.
type CheckResult struct {
	Detected int             `json:"detected"`
	Sent     []Alert         `json:"sent"`
	Channels map[string]bool `json:"channels"`
}

// CheckNow runs detection over rows and dispatches new alerts immediately.
func (e *Engine) CheckNow(ctx context.Context, rows []reconcile.MatchedRow) CheckResult {
	detected := e.detector.Check(rows)
	for _, a := range detected {
		e.recorder.AlertGenerated(a.Type, a.Severity)
	}
	sent, results := e.Dispatch(ctx, detected)
	e.logger.Info().
		Int("rows", len(rows)).
		Int("detected", len(detected)).
		Int("sent", len(sent)).
		Msg("alert check complete")
	return CheckResult{Detected: len(detected), Sent: sent, Channels: results}
}

// ReportFailure raises and dispatches a system_error alert for source.
func (e *Engine) ReportFailure(ctx context.Context, source string, cause error) CheckResult {
	a := e.detector.SystemError(source, cause)
	e.recorder.AlertGenerated(a.Type, a.Severity)
	sent, results := e.Dispatch(ctx, []Alert{a})
	return CheckResult{Detected: 1, Sent: sent, Channels: results}
}

// Acknowledge marks id in history and on the dashboard. It reports whether
// either held the alert.
func (e *Engine) Acknowledge(ctx context.Context, id string) (bool, error) {
	found := false
	if d, ok := e.Dashboard(); ok {
		found = d.Acknowledge(id)
	}
	if e.history == nil {
		return found, nil
	}
	inHistory, err := e.history.Acknowledge(ctx, id)
	if err != nil {
		return found, err
	}
	return found || inHistory, nil
}
