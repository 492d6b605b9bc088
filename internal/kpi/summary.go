// Package kpi derives aggregate profitability metrics, problem diagnoses and
// period-over-period deltas from matched rows.
package kpi

import (
	"math"

	"github.com/shopspring/decimal"

	"lead-recon/internal/reconcile"
)

// Targets are the business goals summaries are measured against.
type Targets struct {
	ROI      float64 `json:"target_roi"`
	SellRate float64 `json:"target_sell_rate"`
}

// DefaultTargets returns 20% ROI and 95% sell-through.
func DefaultTargets() Targets {
	return Targets{ROI: 20, SellRate: 95}
}

// Summary is the flat KPI record for a set of matched rows.
type Summary struct {
	TotalSpend   decimal.Decimal `json:"total_spend"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalPayout  decimal.Decimal `json:"total_payout"`
	NetRevenue   decimal.Decimal `json:"net_revenue"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	NetProfit    decimal.Decimal `json:"net_profit"`

	ROAS            float64 `json:"roas"`
	ROIPct          float64 `json:"roi_pct"`
	ProfitMarginPct float64 `json:"profit_margin_pct"`

	TotalMetaLeads int `json:"total_meta_leads"`
	TotalLPLeads   int `json:"total_lp_leads"`
	SoldLeads      int `json:"sold_leads"`
	RejectedLeads  int `json:"rejected_leads"`
	PendingLeads   int `json:"pending_leads"`
	UnsoldLeads    int `json:"unsold_leads"`

	SellThroughRate float64 `json:"sell_through_rate"`
	RejectionRate   float64 `json:"rejection_rate"`
	ConversionRate  float64 `json:"conversion_rate"`

	CPL          decimal.Decimal `json:"cpl"`
	RPL          decimal.Decimal `json:"rpl"`
	PPL          decimal.Decimal `json:"ppl"`
	AvgSalePrice decimal.Decimal `json:"avg_sale_price"`
	EPC          decimal.Decimal `json:"epc"`
	CPC          decimal.Decimal `json:"cpc"`

	BreakEvenCPL      decimal.Decimal `json:"break_even_cpl"`
	BreakEvenSellRate float64         `json:"break_even_sell_rate"`

	IsProfitable     bool    `json:"is_profitable"`
	MarginVsTarget   float64 `json:"margin_vs_target"`
	SellRateVsTarget float64 `json:"sell_rate_vs_target"`
}

var hundred = decimal.NewFromInt(100)

// Summarize aggregates rows into a Summary. Money is rounded to cents and
// rates to two decimals; per-click figures keep four.
func Summarize(rows []reconcile.MatchedRow, targets Targets) Summary {
	if len(rows) == 0 {
		return empty(targets)
	}

	var (
		spend, revenue, payout                     = decimal.Zero, decimal.Zero, decimal.Zero
		metaLeads, lpLeads, sold, rejected, pending int
		clicks                                      int64
	)
	for _, r := range rows {
		spend = spend.Add(r.Spend)
		revenue = revenue.Add(r.Revenue)
		payout = payout.Add(r.Payout)
		metaLeads += r.Leads
		lpLeads += r.LPTotal
		sold += r.LPSold
		rejected += r.LPRejected
		pending += r.LPPending
		clicks += r.Clicks
	}

	netRevenue := revenue.Sub(payout)
	grossProfit := revenue.Sub(spend)
	netProfit := netRevenue.Sub(spend)

	s := Summary{
		TotalSpend:     spend.Round(2),
		TotalRevenue:   revenue.Round(2),
		TotalPayout:    payout.Round(2),
		NetRevenue:     netRevenue.Round(2),
		GrossProfit:    grossProfit.Round(2),
		NetProfit:      netProfit.Round(2),
		TotalMetaLeads: metaLeads,
		TotalLPLeads:   lpLeads,
		SoldLeads:      sold,
		RejectedLeads:  rejected,
		PendingLeads:   pending,
		UnsoldLeads:    lpLeads - sold,
		IsProfitable:   grossProfit.IsPositive(),
	}

	if spend.IsPositive() {
		s.ROAS = round(revenue.Div(spend).InexactFloat64(), 2)
		s.ROIPct = round(grossProfit.Div(spend).Mul(hundred).InexactFloat64(), 2)
	}
	if revenue.IsPositive() {
		s.ProfitMarginPct = round(grossProfit.Div(revenue).Mul(hundred).InexactFloat64(), 2)
	}

	sellThrough := ratio(sold, lpLeads)
	s.SellThroughRate = round(sellThrough, 2)
	s.RejectionRate = round(ratio(rejected, lpLeads), 2)
	s.ConversionRate = round(ratio(sold, metaLeads), 2)

	cpl, rpl, ppl, avg, epc, cpc := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	if metaLeads > 0 {
		n := decimal.NewFromInt(int64(metaLeads))
		cpl, rpl, ppl = spend.Div(n), revenue.Div(n), grossProfit.Div(n)
	}
	if sold > 0 {
		avg = revenue.Div(decimal.NewFromInt(int64(sold)))
	}
	if clicks > 0 {
		n := decimal.NewFromInt(clicks)
		epc, cpc = revenue.Div(n), spend.Div(n)
	}
	s.CPL, s.RPL, s.PPL, s.AvgSalePrice = cpl.Round(2), rpl.Round(2), ppl.Round(2), avg.Round(2)
	s.EPC, s.CPC = epc.Round(4), cpc.Round(4)

	s.BreakEvenCPL = decimal.Zero
	if avg.IsPositive() {
		s.BreakEvenCPL = avg.Mul(decimal.NewFromFloat(sellThrough)).Div(hundred).Round(2)
		s.BreakEvenSellRate = round(cpl.Div(avg).Mul(hundred).InexactFloat64(), 2)
	}

	s.MarginVsTarget = round(s.ROIPct-targets.ROI, 2)
	s.SellRateVsTarget = round(s.SellThroughRate-targets.SellRate, 2)
	return s
}

func empty(targets Targets) Summary {
	return Summary{
		TotalSpend:       decimal.Zero,
		TotalRevenue:     decimal.Zero,
		TotalPayout:      decimal.Zero,
		NetRevenue:       decimal.Zero,
		GrossProfit:      decimal.Zero,
		NetProfit:        decimal.Zero,
		CPL:              decimal.Zero,
		RPL:              decimal.Zero,
		PPL:              decimal.Zero,
		AvgSalePrice:     decimal.Zero,
		EPC:              decimal.Zero,
		CPC:              decimal.Zero,
		BreakEvenCPL:     decimal.Zero,
		MarginVsTarget:   -targets.ROI,
		SellRateVsTarget: -targets.SellRate,
	}
}

func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
