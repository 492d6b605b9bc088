package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lead-recon/internal/reconcile"
	"lead-recon/internal/scheduler"
)

const (
	// MinCheckInterval is the shortest allowed poll interval.
	MinCheckInterval = 60 * time.Second
	// DefaultStopTimeout bounds how long Stop waits for the loop.
	DefaultStopTimeout = 5 * time.Second
)

// ErrIntervalTooShort is returned for poll intervals under MinCheckInterval.
var ErrIntervalTooShort = errors.New("alert check interval must be at least 60s")

// FetchFunc returns freshly reconciled rows for one poll iteration.
type FetchFunc func(ctx context.Context) ([]reconcile.MatchedRow, error)

// MonitorOptions configure the background poller.
type MonitorOptions struct {
	Interval    time.Duration
	StopTimeout time.Duration
	// Source names the fetch in system_error alerts.
	Source string
	// AllowShortInterval lifts the 60s floor, for tests.
	AllowShortInterval bool
}

// Monitor polls on an interval and feeds every fetch through the engine.
type Monitor struct {
	engine *Engine
	fetch  FetchFunc
	opts   MonitorOptions
	sched  *scheduler.Scheduler
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor validates opts and builds a stopped monitor.
func NewMonitor(engine *Engine, fetch FetchFunc, opts MonitorOptions, logger zerolog.Logger) (*Monitor, error) {
	if engine == nil || fetch == nil {
		return nil, errors.New("monitor requires an engine and a fetch function")
	}
	if opts.Interval < MinCheckInterval && !opts.AllowShortInterval {
		return nil, fmt.Errorf("%w: got %s", ErrIntervalTooShort, opts.Interval)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Source == "" {
		opts.Source = "reconcile"
	}

	sched, err := scheduler.New(scheduler.Options{Interval: opts.Interval, RunImmediately: true}, logger)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		engine: engine,
		fetch:  fetch,
		opts:   opts,
		sched:  sched,
		logger: logger.With().Str("component", "alert_monitor").Logger(),
	}, nil
}

// Start launches the poll loop in the background. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runningLocked() {
		m.logger.Debug().Msg("monitor already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go func() {
		defer close(done)
		if err := m.sched.Run(loopCtx, m.tick); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn().Err(err).Msg("monitor loop exited")
		}
	}()
	m.logger.Info().Dur("interval", m.opts.Interval).Msg("alert monitor started")
}

// Stop cancels the loop and waits up to timeout for it to exit; a non-positive
// timeout uses the configured default. It reports whether the loop exited in time.
func (m *Monitor) Stop(timeout time.Duration) bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return true
	}
	if timeout <= 0 {
		timeout = m.opts.StopTimeout
	}
	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		m.logger.Info().Msg("alert monitor stopped")
		return true
	case <-timer.C:
		m.logger.Warn().Dur("timeout", timeout).Msg("alert monitor did not stop in time")
		return false
	}
}

// Running reports whether the poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Monitor) runningLocked() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Run polls in the foreground until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	return m.sched.Run(ctx, m.tick)
}

func (m *Monitor) tick(ctx context.Context, _ time.Time) error {
	_, err := m.RunOnce(ctx)
	return err
}

// RunOnce performs a single fetch, detect, filter, dispatch and record pass.
// A fetch failure is dispatched as a system_error alert and returned.
func (m *Monitor) RunOnce(ctx context.Context) (CheckResult, error) {
	runID := uuid.NewString()
	log := m.logger.With().Str("run_id", runID).Logger()
	started := time.Now()

	rows, err := m.fetch(ctx)
	if err != nil {
		m.engine.recorder.PollIteration(false)
		if ctx.Err() != nil {
			return CheckResult{}, ctx.Err()
		}
		log.Error().Err(err).Msg("poll fetch failed")
		source := SourceOf(err, m.opts.Source)
		res := m.engine.ReportFailure(ctx, source, err)
		return res, fmt.Errorf("fetch %s: %w", source, err)
	}

	res := m.engine.CheckNow(ctx, rows)
	m.engine.recorder.PollIteration(true)
	log.Debug().
		Int("rows", len(rows)).
		Int("sent", len(res.Sent)).
		Dur("took", time.Since(started)).
		Msg("poll iteration complete")
	return res, nil
}

// SourceOf returns the upstream named by err, or fallback when err names none.
func SourceOf(err error, fallback string) string {
	var named interface{ ErrorSource() string }
	if errors.As(err, &named) && named.ErrorSource() != "" {
		return named.ErrorSource()
	}
	return fallback
}
