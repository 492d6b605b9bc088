package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"lead-recon/internal/cache"
	"lead-recon/internal/reconcile"
	"lead-recon/internal/spend"
)

// SimulateOptions describe one synthetic ad pushed through detection.
type SimulateOptions struct {
	Vertical string
	Spend    decimal.Decimal
	Revenue  decimal.Decimal
	Leads    int
	Sold     int
	Rejected int
	Pending  int
}

// SimulateAlert runs detection over a single synthetic row and sends whatever
// it raises through the configured channels. History stays in memory.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	row, err := simulatedRow(opts)
	if err != nil {
		return err
	}

	engine := a.newEngine(cache.NewMemory(nil), nil)
	res := engine.CheckNow(ctx, []reconcile.MatchedRow{row})
	fmt.Fprintf(a.Out, "simulated row raised %d alert(s)\n", res.Detected)
	if len(res.Sent) > 0 {
		a.printAlerts(res.Sent)
	}
	for name, ok := range res.Channels {
		if !ok {
			a.Logger.Warn().Str("channel", name).Msg("simulated alert not delivered")
		}
	}
	return nil
}

func simulatedRow(opts SimulateOptions) (reconcile.MatchedRow, error) {
	if opts.Sold < 0 || opts.Rejected < 0 || opts.Pending < 0 || opts.Leads < 0 {
		return reconcile.MatchedRow{}, errors.New("lead counts must not be negative")
	}
	if opts.Spend.IsNegative() || opts.Revenue.IsNegative() {
		return reconcile.MatchedRow{}, errors.New("spend and revenue must not be negative")
	}

	base := spend.NewRow("simulated", "simulated", "simulated", opts.Spend, opts.Leads)
	base.CampaignName = "Simulated campaign"
	base.AdSetName = "Simulated ad set"
	base.AdName = "Simulated ad"

	row := reconcile.MatchedRow{
		Row:        base,
		Vertical:   opts.Vertical,
		Mapped:     opts.Vertical != "",
		Proportion: 1,
		LPSold:     opts.Sold,
		LPRejected: opts.Rejected,
		LPPending:  opts.Pending,
		LPTotal:    opts.Sold + opts.Rejected + opts.Pending,
		Revenue:    opts.Revenue,
		Payout:     decimal.Zero,
	}
	return reconcile.ComputeRowKPIs(row), nil
}
