package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lead-recon/internal/cache"
)

const (
	DefaultHistoryKey   = "alert_history"
	DefaultHistoryTTL   = 7 * 24 * time.Hour
	DefaultHistoryLimit = 1000
	DefaultListLimit    = 100
)

// HistoryOptions tune where and how much history is kept.
type HistoryOptions struct {
	Key   string
	TTL   time.Duration
	Limit int
}

// History persists dispatched alerts as one JSON array in the cache, oldest
// first. Read-modify-write cycles are serialised within the process; separate
// processes sharing a cache race with last writer wins.
type History struct {
	store  cache.Store
	opts   HistoryOptions
	mu     sync.Mutex
	now    func() time.Time
	logger zerolog.Logger
}

// NewHistory builds a history over store, filling unset options with defaults.
func NewHistory(store cache.Store, opts HistoryOptions, logger zerolog.Logger) *History {
	if opts.Key == "" {
		opts.Key = DefaultHistoryKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultHistoryTTL
	}
	if opts.Limit <= 0 || opts.Limit > DefaultHistoryLimit {
		opts.Limit = DefaultHistoryLimit
	}
	return &History{
		store:  store,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "alert_history").Logger(),
	}
}

// Append adds alerts and trims to the newest Limit entries.
func (h *History) Append(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.load(ctx)
	if err != nil {
		return err
	}
	existing = append(existing, alerts...)
	if over := len(existing) - h.opts.Limit; over > 0 {
		existing = existing[over:]
	}
	return h.save(ctx, existing)
}

// List returns up to limit alerts, newest first. A non-positive limit means DefaultListLimit.
func (h *History) List(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	h.mu.Lock()
	all, err := h.load(ctx)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Alert, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Acknowledge marks the alert with id in place. It reports whether the id was found.
func (h *History) Acknowledge(ctx context.Context, id string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	all, err := h.load(ctx)
	if err != nil {
		return false, err
	}
	now := h.now()
	for i := range all {
		if all[i].ID != id {
			continue
		}
		all[i].Acknowledge(now)
		if err := h.save(ctx, all); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (h *History) load(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	_, err := cache.GetJSON(ctx, h.store, h.opts.Key, h.opts.TTL, &alerts)
	switch {
	case errors.Is(err, cache.ErrCorrupt):
		h.logger.Warn().Err(err).Msg("discarding unreadable alert history")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load alert history: %w", err)
	}
	return alerts, nil
}

func (h *History) save(ctx context.Context, alerts []Alert) error {
	if err := cache.SetJSON(ctx, h.store, h.opts.Key, alerts); err != nil {
		return fmt.Errorf("save alert history: %w", err)
	}
	return nil
}
