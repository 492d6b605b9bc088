// Package service assembles one reconciliation snapshot: fetch spend and
// dispositions through the cache, allocate, then score every row.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lead-recon/internal/cache"
	"lead-recon/internal/confidence"
	"lead-recon/internal/disposition"
	"lead-recon/internal/fetcher"
	"lead-recon/internal/kpi"
	"lead-recon/internal/mapping"
	"lead-recon/internal/reconcile"
	"lead-recon/internal/spend"
)

const (
	spendNamespace       = "meta_spend"
	dispositionNamespace = "leadspedia_dispositions"
)

// Window is an inclusive date range.
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// LastWindow ends on now's UTC date and starts lookback earlier, rounded down to a day.
func LastWindow(now time.Time, lookback time.Duration) Window {
	until := now.UTC().Truncate(24 * time.Hour)
	since := now.UTC().Add(-lookback).Truncate(24 * time.Hour)
	return Window{Since: since, Until: until}
}

// Previous is the window of equal length immediately before w.
func (w Window) Previous() Window {
	days := int(w.Until.Sub(w.Since).Hours()/24) + 1
	return Window{
		Since: w.Since.AddDate(0, 0, -days),
		Until: w.Since.AddDate(0, 0, -1),
	}
}

// Options carry everything a snapshot needs besides its sources.
type Options struct {
	Scope       reconcile.Scope
	Feed        disposition.Feed
	AffiliateID string
	CampaignIDs []string
	CacheTTL    time.Duration
	Lookback    time.Duration
	Targets     kpi.Targets
	Diagnose    kpi.DiagnoseOptions
	Confidence  confidence.Thresholds
}

// RowConfidence pairs a matched row's identity with its assessment.
type RowConfidence struct {
	CampaignID string `json:"campaign_id"`
	AdID       string `json:"ad_id"`
	AdName     string `json:"ad_name"`
	confidence.Assessment
}

// Snapshot is one reconciled, scored view of a window.
type Snapshot struct {
	Window      Window                         `json:"window"`
	GeneratedAt time.Time                      `json:"generated_at"`
	Match       reconcile.Result               `json:"match"`
	Dropped     int                            `json:"dropped_records"`
	Summary     kpi.Summary                    `json:"summary"`
	Problems    []kpi.Problem                  `json:"problems"`
	Buyers      []disposition.BuyerPerformance `json:"buyers"`
	Confidence  []RowConfidence                `json:"confidence"`
}

// Service orchestrates fetching, caching and scoring.
type Service struct {
	spend        fetcher.SpendSource
	dispositions fetcher.DispositionSource
	cache        cache.Store
	mapper       mapping.Provider
	opts         Options
	logger       zerolog.Logger
	now          func() time.Time
}

// New constructs the service. A nil store disables caching.
func New(spendSrc fetcher.SpendSource, dispositionSrc fetcher.DispositionSource, store cache.Store, mapper mapping.Provider, opts Options, logger zerolog.Logger) *Service {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.Feed == "" {
		opts.Feed = disposition.FeedAll
	}
	if opts.Scope == "" {
		opts.Scope = reconcile.ScopeGlobal
	}
	return &Service{
		spend:        spendSrc,
		dispositions: dispositionSrc,
		cache:        store,
		mapper:       mapper,
		opts:         opts,
		logger:       logger.With().Str("component", "service").Logger(),
		now:          time.Now,
	}
}

// CurrentWindow is the configured lookback ending today.
func (s *Service) CurrentWindow() Window {
	return LastWindow(s.now(), s.opts.Lookback)
}

// Snapshot fetches, allocates and scores w.
func (s *Service) Snapshot(ctx context.Context, w Window) (Snapshot, error) {
	rows, err := s.fetchSpend(ctx, w)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch spend: %w", err)
	}

	raws, err := s.fetchDispositions(ctx, w)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch dispositions: %w", err)
	}

	records, dropped := disposition.ParseAll(raws, s.opts.Feed)
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Int("kept", len(records)).Msg("dropped malformed disposition records")
	}

	var match reconcile.Result
	switch s.opts.Scope {
	case reconcile.ScopeCampaign:
		groups := disposition.GroupByCampaign(records)
		s.logger.Debug().Int("groups", len(groups)).
			Msg("matching disposition groups to campaigns by name, then id")
		match = reconcile.AllocateByCampaign(rows, groups, s.mapper)
	default:
		match = reconcile.Allocate(rows, disposition.Summarize(records), s.mapper)
	}

	for _, u := range match.Unmapped {
		s.logger.Debug().Str("campaign_id", u.CampaignID).Str("campaign_name", u.CampaignName).
			Msg("campaign has no vertical mapping, using default")
	}

	snap := Snapshot{
		Window:      w,
		GeneratedAt: s.now().UTC(),
		Match:       match,
		Dropped:     dropped,
		Summary:     kpi.Summarize(match.Rows, s.opts.Targets),
		Problems:    kpi.Diagnose(match.Rows, s.opts.Diagnose),
		Buyers:      disposition.ByBuyer(records),
		Confidence:  make([]RowConfidence, 0, len(match.Rows)),
	}
	for _, r := range match.Rows {
		snap.Confidence = append(snap.Confidence, RowConfidence{
			CampaignID: r.CampaignID,
			AdID:       r.AdID,
			AdName:     r.AdName,
			Assessment: confidence.Assess(r.Row, s.opts.Confidence),
		})
	}

	s.logger.Info().
		Time("since", w.Since).Time("until", w.Until).
		Int("rows", len(match.Rows)).
		Int("meta_leads", match.MetaLeads).
		Int("lp_leads", match.LPLeads).
		Float64("match_rate", match.MatchRate).
		Str("profit", snap.Summary.NetProfit.String()).
		Msg("snapshot computed")
	return snap, nil
}

// MatchedRows returns the current window's matched rows. It is the monitor's fetch hook.
func (s *Service) MatchedRows(ctx context.Context) ([]reconcile.MatchedRow, error) {
	snap, err := s.Snapshot(ctx, s.CurrentWindow())
	if err != nil {
		return nil, err
	}
	return snap.Match.Rows, nil
}

// Compare computes both windows and the relative change between them.
func (s *Service) Compare(ctx context.Context, current, previous Window) (kpi.Comparison, error) {
	cur, err := s.Snapshot(ctx, current)
	if err != nil {
		return kpi.Comparison{}, err
	}
	prev, err := s.Snapshot(ctx, previous)
	if err != nil {
		return kpi.Comparison{}, err
	}
	return kpi.Compare(cur.Summary, prev.Summary), nil
}

func (s *Service) fetchSpend(ctx context.Context, w Window) ([]spend.Row, error) {
	if s.spend == nil {
		return nil, errors.New("spend source not configured")
	}
	q := fetcher.SpendQuery{Since: w.Since, Until: w.Until, CampaignIDs: s.opts.CampaignIDs}
	key := cache.Key(spendNamespace, q)

	var rows []spend.Row
	if s.cacheGet(ctx, key, &rows) {
		return rows, nil
	}

	rows, err := s.spend.FetchSpend(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

func (s *Service) fetchDispositions(ctx context.Context, w Window) ([]map[string]any, error) {
	if s.dispositions == nil {
		return nil, errors.New("disposition source not configured")
	}
	q := fetcher.DispositionQuery{Since: w.Since, Until: w.Until, AffiliateID: s.opts.AffiliateID, Feed: s.opts.Feed}
	key := cache.Key(dispositionNamespace, q)

	var raws []map[string]any
	if s.cacheGet(ctx, key, &raws) {
		return raws, nil
	}

	raws, err := s.dispositions.FetchDispositions(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, raws)
	return raws, nil
}

// cacheGet treats every cache failure as a miss.
func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := cache.GetJSON(ctx, s.cache, key, s.opts.CacheTTL, dst)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, refetching")
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
