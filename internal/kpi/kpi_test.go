package kpi

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/reconcile"
	"lead-recon/internal/spend"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func matched(ad, spendAmt string, leads, total, sold, rejected int, revenue string) reconcile.MatchedRow {
	r := reconcile.MatchedRow{Row: spend.NewRow("c1", "s1", ad, dec(spendAmt), leads)}
	r.CampaignName = "Campaign " + ad
	r.AdName = "Ad " + ad
	r.LPTotal, r.LPSold, r.LPRejected = total, sold, rejected
	r.Revenue = dec(revenue)
	r.Payout = decimal.Zero
	return reconcile.ComputeRowKPIs(r)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, Targets{ROI: 20, SellRate: 95})
	assert.True(t, s.TotalSpend.IsZero())
	assert.Zero(t, s.ROIPct)
	assert.False(t, s.IsProfitable)
	assert.Equal(t, -20.0, s.MarginVsTarget)
	assert.Equal(t, -95.0, s.SellRateVsTarget)
}

func TestSummarizeTotals(t *testing.T) {
	a := matched("a", "300", 30, 30, 24, 3, "1200")
	a.Clicks = 300
	b := matched("b", "700", 70, 70, 56, 7, "2800")
	b.Clicks = 700
	b.Payout = dec("100")

	s := Summarize([]reconcile.MatchedRow{a, b}, DefaultTargets())

	assert.True(t, s.TotalSpend.Equal(dec("1000")))
	assert.True(t, s.TotalRevenue.Equal(dec("4000")))
	assert.True(t, s.GrossProfit.Equal(dec("3000")))
	assert.True(t, s.NetProfit.Equal(dec("2900")))
	assert.Equal(t, 4.0, s.ROAS)
	assert.Equal(t, 300.0, s.ROIPct)
	assert.Equal(t, 75.0, s.ProfitMarginPct)
	assert.Equal(t, 100, s.TotalLPLeads)
	assert.Equal(t, 80, s.SoldLeads)
	assert.Equal(t, 20, s.UnsoldLeads)
	assert.Equal(t, 80.0, s.SellThroughRate)
	assert.Equal(t, 10.0, s.RejectionRate)
	assert.True(t, s.CPL.Equal(dec("10")))
	assert.True(t, s.AvgSalePrice.Equal(dec("50")))
	assert.True(t, s.EPC.Equal(dec("4")))
	assert.True(t, s.CPC.Equal(dec("1")))
	assert.True(t, s.BreakEvenCPL.Equal(dec("40")))
	assert.Equal(t, 20.0, s.BreakEvenSellRate)
	assert.True(t, s.IsProfitable)
	assert.Equal(t, 280.0, s.MarginVsTarget)
	assert.Equal(t, -15.0, s.SellRateVsTarget)
}

func TestSummarizeRoundsRates(t *testing.T) {
	r := matched("a", "3", 3, 3, 1, 0, "1")
	s := Summarize([]reconcile.MatchedRow{r}, DefaultTargets())
	assert.Equal(t, 33.33, s.SellThroughRate)
	assert.Equal(t, -66.67, s.ROIPct)
	assert.True(t, s.CPL.Equal(dec("1")))
}

func TestDiagnoseNegativeProfitIsCritical(t *testing.T) {
	// spend 100 revenue 80: profit -20, roi -20
	bad := matched("bad", "100", 10, 10, 10, 0, "80")
	ok := matched("ok", "100", 10, 10, 10, 0, "200")

	problems := Diagnose([]reconcile.MatchedRow{ok, bad}, DefaultDiagnoseOptions())
	require.Len(t, problems, 1)
	p := problems[0]
	assert.Equal(t, "bad", p.AdID)
	assert.Equal(t, SeverityCritical, p.Severity)
	assert.True(t, p.Profit.Equal(dec("-20")))
	// low roi, negative profit, cpl 10 over break-even 8
	require.Len(t, p.Issues, 3)
	assert.Contains(t, p.Issues[1], "Negative profit: $-20.00")
	assert.Contains(t, p.Issues[2], "exceeds break-even $8.00")
}

func TestDiagnoseSeverity(t *testing.T) {
	tests := []struct {
		name string
		row  reconcile.MatchedRow
		want Severity
	}{
		{"slightly low sell-through", matched("a", "100", 100, 100, 90, 0, "1000"), SeverityWarning},
		{"very low sell-through", matched("b", "100", 100, 100, 50, 0, "1000"), SeverityCritical},
		{"low but positive roi", matched("c", "100", 100, 100, 100, 0, "110"), SeverityWarning},
		{"high rejection only", matched("d", "100", 100, 100, 96, 12, "1000"), SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := Diagnose([]reconcile.MatchedRow{tt.row}, DefaultDiagnoseOptions())
			require.Len(t, problems, 1)
			assert.Equal(t, tt.want, problems[0].Severity)
		})
	}
}

func TestDiagnoseSkipsLowSpendAndSorts(t *testing.T) {
	tiny := matched("tiny", "10", 1, 1, 0, 0, "0")
	warn := matched("warn", "100", 100, 100, 90, 0, "1000")
	crit1 := matched("crit1", "100", 10, 10, 10, 0, "50")
	crit2 := matched("crit2", "100", 10, 10, 10, 0, "90")

	problems := Diagnose([]reconcile.MatchedRow{tiny, warn, crit2, crit1}, DefaultDiagnoseOptions())
	require.Len(t, problems, 3)
	assert.Equal(t, "crit1", problems[0].AdID)
	assert.Equal(t, "crit2", problems[1].AdID)
	assert.Equal(t, "warn", problems[2].AdID)
}

func TestCompare(t *testing.T) {
	cur := Summary{TotalSpend: dec("150"), ROIPct: 10, TotalMetaLeads: 30}
	prev := Summary{TotalSpend: dec("100"), ROIPct: 0, TotalMetaLeads: 20}

	c := Compare(cur, prev)
	assert.Equal(t, Delta{Current: 150, Previous: 100, Change: 50, ChangePct: 50}, c.Spend)
	assert.Equal(t, 10.0, c.ROI.Change)
	assert.Zero(t, c.ROI.ChangePct)
	assert.Equal(t, 50.0, c.Leads.ChangePct)
}

func TestByDimension(t *testing.T) {
	a := matched("a", "100", 10, 10, 8, 0, "200")
	a.Vertical = "auto"
	b := matched("b", "50", 5, 5, 5, 0, "100")
	b.Vertical = "auto"
	c := matched("c", "10", 1, 1, 1, 0, "5")
	c.Vertical = "home"

	got := ByDimension([]reconcile.MatchedRow{a, b, c}, DimensionVertical, DefaultTargets())
	assert.Equal(t, []string{"auto", "home"}, SortedKeys(got))
	assert.True(t, got["auto"].TotalSpend.Equal(dec("150")))
	assert.Equal(t, 13, got["auto"].SoldLeads)

	assert.Empty(t, ByDimension([]reconcile.MatchedRow{a}, Dimension("nope"), DefaultTargets()))
}

func TestDimensionValid(t *testing.T) {
	for _, d := range []Dimension{DimensionCampaign, DimensionAdSet, DimensionAd, DimensionVertical} {
		assert.True(t, d.Valid(), d)
	}
	assert.False(t, Dimension("buyer").Valid())
	assert.False(t, Dimension("").Valid())
}
