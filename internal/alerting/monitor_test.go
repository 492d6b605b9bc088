package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/cache"
	"lead-recon/internal/reconcile"
)

func TestNewMonitorRejectsShortInterval(t *testing.T) {
	engine, _ := newTestEngine(t)
	fetch := func(context.Context) ([]reconcile.MatchedRow, error) { return nil, nil }

	_, err := NewMonitor(engine, fetch, MonitorOptions{Interval: 59 * time.Second}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrIntervalTooShort)

	m, err := NewMonitor(engine, fetch, MonitorOptions{Interval: time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, m.Running())
}

func TestMonitorStartStop(t *testing.T) {
	ch := &stubChannel{name: "x", configured: true}
	engine, _ := newTestEngine(t, ch)

	var fetches atomic.Int32
	fetch := func(context.Context) ([]reconcile.MatchedRow, error) {
		fetches.Add(1)
		return []reconcile.MatchedRow{matchedRow("a1", 100, 10, 10, 10, 0, 0, 80)}, nil
	}
	m, err := NewMonitor(engine, fetch, MonitorOptions{Interval: 10 * time.Millisecond, AllowShortInterval: true}, zerolog.Nop())
	require.NoError(t, err)

	m.Start(context.Background())
	m.Start(context.Background())
	assert.True(t, m.Running())

	require.Eventually(t, func() bool { return fetches.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	started := time.Now()
	assert.True(t, m.Stop(time.Second))
	assert.Less(t, time.Since(started), time.Second)
	assert.False(t, m.Running())

	// later iterations are suppressed by the recent set
	assert.Equal(t, 1, ch.Calls())
	assert.True(t, m.Stop(0))
}

func TestMonitorStopReturnsWhenIterationHangs(t *testing.T) {
	engine, _ := newTestEngine(t)
	release := make(chan struct{})
	defer close(release)

	entered := make(chan struct{}, 1)
	fetch := func(context.Context) ([]reconcile.MatchedRow, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}
	m, err := NewMonitor(engine, fetch, MonitorOptions{Interval: time.Minute, StopTimeout: 50 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	m.Start(context.Background())
	<-entered

	started := time.Now()
	assert.False(t, m.Stop(0))
	assert.Less(t, time.Since(started), time.Second)
}

func TestRunOnceFetchFailureRaisesSystemError(t *testing.T) {
	ch := &stubChannel{name: "x", configured: true}
	rec := &countingRecorder{}
	store := cache.NewMemory(nil)
	history := NewHistory(store, HistoryOptions{}, zerolog.Nop())
	engine := NewEngine(NewDetector(DefaultThresholdSet(), WithClock(clock)), history, []Channel{ch}, zerolog.Nop(), WithRecorder(rec))

	fetch := func(context.Context) ([]reconcile.MatchedRow, error) { return nil, errors.New("meta: 500") }
	m, err := NewMonitor(engine, fetch, MonitorOptions{Interval: time.Minute, Source: "meta"}, zerolog.Nop())
	require.NoError(t, err)

	res, err := m.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, res.Sent, 1)
	assert.Equal(t, TypeSystemError, res.Sent[0].Type)
	assert.Equal(t, SeverityCritical, res.Sent[0].Severity)
	assert.Equal(t, "meta: 500", res.Sent[0].Message)
	assert.Equal(t, [2]int{0, 1}, rec.polls)

	stored, err := history.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

type namedErr struct{ source string }

func (e namedErr) Error() string       { return e.source + " failed" }
func (e namedErr) ErrorSource() string { return e.source }

func TestSourceOf(t *testing.T) {
	assert.Equal(t, "leadspedia", SourceOf(fmt.Errorf("fetch dispositions: %w", namedErr{"leadspedia"}), "upstream"))
	assert.Equal(t, "upstream", SourceOf(errors.New("plain"), "upstream"))
	assert.Equal(t, "upstream", SourceOf(namedErr{}, "upstream"))
}
