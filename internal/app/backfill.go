package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-recon/internal/metrics"
	"lead-recon/internal/service"
)

const day = 24 * time.Hour

// Backfill reconciles each UTC day in [From, To) so the source responses land
// in the cache ahead of reports and exports over that range.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(metrics.New().InstrumentCache(store))
	if err != nil {
		return err
	}
	return a.backfill(ctx, svc, opts)
}

func (a *App) backfill(ctx context.Context, svc *service.Service, opts BackfillOptions) error {
	start := alignForward(opts.From.UTC(), day)
	end := opts.To.UTC()
	if !start.Before(end) {
		return errors.New("backfill range is empty, check --from/--to")
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: no source requests will be made")
	}

	processed := 0
	failed := 0
	for since := start; since.Before(end); since = since.Add(day) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		win := service.Window{Since: since, Until: since}
		if opts.DryRun {
			a.Logger.Info().Str("day", win.Since.Format("2006-01-02")).Msg("would backfill day")
			processed++
			continue
		}

		snap, err := svc.Snapshot(ctx, win)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("day", win.Since.Format("2006-01-02")).Msg("backfill day failed")
			continue
		}
		processed++
		a.Logger.Info().
			Str("day", win.Since.Format("2006-01-02")).
			Int("rows", len(snap.Match.Rows)).
			Str("spend", money(snap.Summary.TotalSpend)).
			Str("revenue", money(snap.Summary.TotalRevenue)).
			Msg("backfilled day")
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill finished")
	fmt.Fprintf(a.Out, "backfilled %d day(s), %d failed\n", processed, failed)
	if failed > 0 {
		return fmt.Errorf("%d backfill day(s) failed, check the logs", failed)
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
