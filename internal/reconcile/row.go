package reconcile

import (
	"github.com/shopspring/decimal"

	"lead-recon/internal/spend"
)

var hundred = decimal.NewFromInt(100)

// MatchedRow is a spend row with its allocated share of dispositions and the KPIs derived from both.
type MatchedRow struct {
	spend.Row

	Vertical   string  `json:"vertical"`
	Mapped     bool    `json:"mapped"`
	Proportion float64 `json:"proportion"`

	LPTotal    int             `json:"lp_total_leads"`
	LPSold     int             `json:"lp_sold_leads"`
	LPRejected int             `json:"lp_rejected_leads"`
	LPPending  int             `json:"lp_pending_leads"`
	Revenue    decimal.Decimal `json:"revenue"`
	Payout     decimal.Decimal `json:"payout"`
	NetRevenue decimal.Decimal `json:"net_revenue"`

	SellThroughRate   float64         `json:"sell_through_rate"`
	RejectionRate     float64         `json:"rejection_rate"`
	AvgSalePrice      decimal.Decimal `json:"avg_sale_price"`
	ROI               float64         `json:"roi"`
	Profit            decimal.Decimal `json:"profit"`
	ProfitPerLead     decimal.Decimal `json:"profit_per_lead"`
	EPC               decimal.Decimal `json:"epc"`
	EPL               decimal.Decimal `json:"epl"`
	BreakEvenCPL      decimal.Decimal `json:"break_even_cpl"`
	BreakEvenSellRate float64         `json:"break_even_sell_rate"`
}

// ComputeRowKPIs returns row with every derived metric filled in. Any ratio
// whose denominator is zero is reported as zero.
func ComputeRowKPIs(row MatchedRow) MatchedRow {
	row.NetRevenue = row.Revenue.Sub(row.Payout)
	row.Profit = row.Revenue.Sub(row.Spend)

	row.SellThroughRate = pct(row.LPSold, row.LPTotal)
	row.RejectionRate = pct(row.LPRejected, row.LPTotal)

	row.AvgSalePrice = decimal.Zero
	if row.LPSold > 0 {
		row.AvgSalePrice = row.Revenue.Div(decimal.NewFromInt(int64(row.LPSold)))
	}

	row.ROI = 0
	if row.Spend.IsPositive() {
		row.ROI = row.Profit.Div(row.Spend).Mul(hundred).InexactFloat64()
	}

	row.ProfitPerLead, row.EPL = decimal.Zero, decimal.Zero
	if row.Leads > 0 {
		leads := decimal.NewFromInt(int64(row.Leads))
		row.ProfitPerLead = row.Profit.Div(leads)
		row.EPL = row.Revenue.Div(leads)
	}

	row.EPC = decimal.Zero
	if row.Clicks > 0 {
		row.EPC = row.Revenue.Div(decimal.NewFromInt(row.Clicks))
	}

	// avg_sale_price * sell_through / 100, kept in decimal.
	row.BreakEvenCPL = decimal.Zero
	if row.AvgSalePrice.IsPositive() && row.LPTotal > 0 {
		row.BreakEvenCPL = row.AvgSalePrice.
			Mul(decimal.NewFromInt(int64(row.LPSold))).
			Div(decimal.NewFromInt(int64(row.LPTotal)))
	}

	row.BreakEvenSellRate = 0
	if row.AvgSalePrice.IsPositive() {
		row.BreakEvenSellRate = row.CPL.Div(row.AvgSalePrice).Mul(hundred).InexactFloat64()
	}

	return row
}

// zeroKPIs clears allocation and every derived metric.
func zeroKPIs(row MatchedRow) MatchedRow {
	row.Proportion = 0
	row.LPTotal, row.LPSold, row.LPRejected, row.LPPending = 0, 0, 0, 0
	row.Revenue, row.Payout, row.NetRevenue = decimal.Zero, decimal.Zero, decimal.Zero
	row.SellThroughRate, row.RejectionRate, row.ROI, row.BreakEvenSellRate = 0, 0, 0, 0
	row.AvgSalePrice, row.Profit, row.ProfitPerLead = decimal.Zero, decimal.Zero, decimal.Zero
	row.EPC, row.EPL, row.BreakEvenCPL = decimal.Zero, decimal.Zero, decimal.Zero
	return row
}

func pct(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
