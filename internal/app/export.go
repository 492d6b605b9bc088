package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"lead-recon/internal/metrics"
	"lead-recon/internal/reconcile"
	"lead-recon/internal/service"
)

// Export renders a window's matched rows as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(metrics.New().InstrumentCache(store))
	if err != nil {
		return err
	}
	return a.export(ctx, svc, opts)
}

func (a *App) export(ctx context.Context, svc *service.Service, opts ExportOptions) error {
	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	win := svc.CurrentWindow()
	if opts.Window != nil {
		win = *opts.Window
	}

	snap, err := svc.Snapshot(ctx, win)
	if err != nil {
		return err
	}
	if len(snap.Match.Rows) == 0 {
		a.Logger.Info().Msg("no rows found for export window")
		return nil
	}

	rows := topBySpend(snap.Match.Rows, opts.MaxRows)
	a.Logger.Info().Int("total", len(snap.Match.Rows)).Int("exported", len(rows)).Msg("exporting rows")

	if opts.CSVPath != "" {
		if err := writeRowsCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" && len(rows) < 2 {
		a.Logger.Warn().Int("rows", len(rows)).Msg("chart needs at least two rows, skipping png")
	} else if opts.PNGPath != "" {
		if err := writeRowsPNG(opts.PNGPath, rows, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
	}

	return nil
}

// topBySpend keeps the limit highest-spend rows, highest first. A limit of
// zero keeps every row.
func topBySpend(rows []reconcile.MatchedRow, limit int) []reconcile.MatchedRow {
	out := make([]reconcile.MatchedRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spend.GreaterThan(out[j].Spend) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var csvHeader = []string{
	"campaign_id", "campaign_name", "adset_id", "adset_name", "ad_id", "ad_name", "vertical", "mapped",
	"spend", "leads", "cpl", "proportion",
	"lp_total_leads", "lp_sold_leads", "lp_rejected_leads", "lp_pending_leads",
	"revenue", "payout", "net_revenue", "profit", "roi_pct",
	"sell_through_rate", "rejection_rate", "avg_sale_price", "break_even_cpl",
}

func writeRowsCSV(path string, rows []reconcile.MatchedRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.CampaignID,
			r.CampaignName,
			r.AdSetID,
			r.AdSetName,
			r.AdID,
			r.AdName,
			r.Vertical,
			strconv.FormatBool(r.Mapped),
			r.Spend.StringFixed(2),
			strconv.Itoa(r.Leads),
			r.CPL.StringFixed(2),
			strconv.FormatFloat(r.Proportion, 'f', 4, 64),
			strconv.Itoa(r.LPTotal),
			strconv.Itoa(r.LPSold),
			strconv.Itoa(r.LPRejected),
			strconv.Itoa(r.LPPending),
			r.Revenue.StringFixed(2),
			r.Payout.StringFixed(2),
			r.NetRevenue.StringFixed(2),
			r.Profit.StringFixed(2),
			strconv.FormatFloat(r.ROI, 'f', 2, 64),
			strconv.FormatFloat(r.SellThroughRate, 'f', 2, 64),
			strconv.FormatFloat(r.RejectionRate, 'f', 2, 64),
			r.AvgSalePrice.StringFixed(2),
			r.BreakEvenCPL.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeRowsPNG plots spend and revenue per ad, with ROI on the secondary axis.
func writeRowsPNG(path string, rows []reconcile.MatchedRow, width, height int) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	x := make([]float64, len(rows))
	spendY := make([]float64, len(rows))
	revenueY := make([]float64, len(rows))
	roiY := make([]float64, len(rows))
	ticks := make([]chart.Tick, len(rows))

	for i, r := range rows {
		x[i] = float64(i + 1)
		spendY[i] = r.Spend.InexactFloat64()
		revenueY[i] = r.Revenue.InexactFloat64()
		roiY[i] = r.ROI
		label := r.AdName
		if label == "" {
			label = r.AdID
		}
		ticks[i] = chart.Tick{Value: x[i], Label: label}
	}

	moneyFormatter := func(v interface{}) string {
		return "$" + chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f") + "%"
	}

	xAxis := chart.XAxis{Name: "Ad (by spend)"}
	if len(rows) <= 30 {
		xAxis.Ticks = ticks
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis:  xAxis,
		YAxis: chart.YAxis{
			Name:           "USD",
			ValueFormatter: moneyFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "ROI (%)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Spend",
				XValues: x,
				YValues: spendY,
			},
			chart.ContinuousSeries{
				Name:    "Revenue",
				XValues: x,
				YValues: revenueY,
			},
			chart.ContinuousSeries{
				Name:    "ROI %",
				XValues: x,
				YValues: roiY,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
