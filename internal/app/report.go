package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"lead-recon/internal/kpi"
	"lead-recon/internal/metrics"
	"lead-recon/internal/service"
)

// Report prints the KPI summary, problem rows, buyers and confidence calls
// for a window, optionally with the previous window's deltas.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(metrics.New().InstrumentCache(store))
	if err != nil {
		return err
	}
	return a.report(ctx, svc, opts)
}

func (a *App) report(ctx context.Context, svc *service.Service, opts ReportOptions) error {
	win := svc.CurrentWindow()
	if opts.Window != nil {
		win = *opts.Window
	}

	snap, err := svc.Snapshot(ctx, win)
	if err != nil {
		return err
	}

	var cmp *kpi.Comparison
	if opts.Compare {
		c, err := svc.Compare(ctx, win, win.Previous())
		if err != nil {
			return err
		}
		cmp = &c
	}

	var groups map[string]kpi.Summary
	if opts.Dimension != "" {
		groups = kpi.ByDimension(snap.Match.Rows, kpi.Dimension(opts.Dimension), a.targets())
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			service.Snapshot
			Comparison *kpi.Comparison        `json:"comparison,omitempty"`
			Groups     map[string]kpi.Summary `json:"groups,omitempty"`
		}{snap, cmp, groups})
	}

	a.printSummary(snap)
	if cmp != nil {
		a.printComparison(*cmp)
	}
	if groups != nil {
		a.printGroups(opts.Dimension, groups)
	}
	a.printProblems(snap.Problems)
	a.printBuyers(snap)
	a.printConfidence(snap)
	return nil
}

func (a *App) printSummary(snap service.Snapshot) {
	s := snap.Summary
	fmt.Fprintf(a.Out, "Window %s .. %s (%s scope)\n\n",
		snap.Window.Since.Format("2006-01-02"), snap.Window.Until.Format("2006-01-02"), snap.Match.Scope)

	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Spend\t$%s\n", money(s.TotalSpend))
	fmt.Fprintf(w, "Revenue\t$%s\n", money(s.TotalRevenue))
	fmt.Fprintf(w, "Payout\t$%s\n", money(s.TotalPayout))
	fmt.Fprintf(w, "Gross profit\t$%s\n", money(s.GrossProfit))
	fmt.Fprintf(w, "Net profit\t$%s\n", money(s.NetProfit))
	fmt.Fprintf(w, "ROI\t%.2f%% (target %g%%)\n", s.ROIPct, a.Config.KPI.TargetROI)
	fmt.Fprintf(w, "ROAS\t%.2f\n", s.ROAS)
	fmt.Fprintf(w, "Leads (ads / lead system)\t%d / %d\n", s.TotalMetaLeads, s.TotalLPLeads)
	fmt.Fprintf(w, "Sold / rejected / pending\t%d / %d / %d\n", s.SoldLeads, s.RejectedLeads, s.PendingLeads)
	fmt.Fprintf(w, "Sell-through\t%.2f%% (target %g%%)\n", s.SellThroughRate, a.Config.KPI.TargetSellRate)
	fmt.Fprintf(w, "CPL / break-even CPL\t$%s / $%s\n", money(s.CPL), money(s.BreakEvenCPL))
	fmt.Fprintf(w, "Match rate\t%.2f%%\n", snap.Match.MatchRate)
	if snap.Dropped > 0 {
		fmt.Fprintf(w, "Dropped records\t%d\n", snap.Dropped)
	}
	if len(snap.Match.Unmapped) > 0 {
		fmt.Fprintf(w, "Unmapped campaigns\t%d\n", len(snap.Match.Unmapped))
	}
	w.Flush()
	fmt.Fprintln(a.Out)
}

func (a *App) printComparison(c kpi.Comparison) {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Metric\tCurrent\tPrevious\tChange\tChange%")
	rows := []struct {
		name string
		d    kpi.Delta
	}{
		{"Spend", c.Spend}, {"Revenue", c.Revenue}, {"Profit", c.Profit}, {"ROI", c.ROI},
		{"Sell-through", c.SellThroughRate}, {"CPL", c.CPL}, {"Leads", c.Leads}, {"Sold", c.SoldLeads},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%+.2f\t%+.2f%%\n", r.name, r.d.Current, r.d.Previous, r.d.Change, r.d.ChangePct)
	}
	w.Flush()
	fmt.Fprintln(a.Out)
}

func (a *App) printGroups(dim string, groups map[string]kpi.Summary) {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSpend\tRevenue\tProfit\tROI%%\tSell%%\n", dim)
	for _, key := range kpi.SortedKeys(groups) {
		s := groups[key]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n", key, money(s.TotalSpend), money(s.TotalRevenue), money(s.GrossProfit), s.ROIPct, s.SellThroughRate)
	}
	w.Flush()
	fmt.Fprintln(a.Out)
}

func (a *App) printProblems(problems []kpi.Problem) {
	if len(problems) == 0 {
		fmt.Fprintln(a.Out, "No problem ads.")
		fmt.Fprintln(a.Out)
		return
	}
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Severity\tCampaign\tAd\tSpend\tProfit\tIssues")
	for _, p := range problems {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Severity, orDash(p.CampaignName), orDash(p.AdName), money(p.Spend), money(p.Profit), strings.Join(p.Issues, "; "))
	}
	w.Flush()
	fmt.Fprintln(a.Out)
}

func (a *App) printBuyers(snap service.Snapshot) {
	if len(snap.Buyers) == 0 {
		return
	}
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Buyer\tSold\tRevenue\tAvg price\tShare%")
	for _, b := range snap.Buyers {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%.2f\n", b.Buyer, b.LeadsSold, money(b.Revenue), money(b.AvgPrice), b.PctOfTotal)
	}
	w.Flush()
	fmt.Fprintln(a.Out)
}

func (a *App) printConfidence(snap service.Snapshot) {
	if len(snap.Confidence) == 0 {
		return
	}
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Ad\tConfidence\tAction\tLeads\tNeeded\tProgress%")
	for _, c := range snap.Confidence {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.1f\n", orDash(c.AdName), c.Level, c.Action, c.Sample.CurrentLeads, c.Sample.LeadsNeeded, c.Sample.ProgressPct)
	}
	w.Flush()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

