package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/disposition"
	"lead-recon/internal/mapping"
	"lead-recon/internal/spend"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func row(campaign, ad string, spendAmt string, leads int) spend.Row {
	r := spend.NewRow(campaign, campaign+"-set", ad, dec(spendAmt), leads)
	r.CampaignName = campaign + "-name"
	r.AdName = ad + "-name"
	return r
}

func TestAllocateSplitsByLeadShare(t *testing.T) {
	agg := disposition.Aggregate{Total: 100, Sold: 80, Revenue: dec("4000"), Payout: dec("500")}
	rows := []spend.Row{row("c1", "a", "300", 30), row("c1", "b", "700", 70)}

	res := Allocate(rows, agg, nil)
	require.Len(t, res.Rows, 2)

	a, b := res.Rows[0], res.Rows[1]
	assert.Equal(t, 30, a.LPTotal)
	assert.Equal(t, 24, a.LPSold)
	assert.True(t, a.Revenue.Equal(dec("1200")), a.Revenue.String())
	assert.True(t, a.Payout.Equal(dec("150")))
	assert.Equal(t, 70, b.LPTotal)
	assert.Equal(t, 56, b.LPSold)
	assert.True(t, b.Revenue.Equal(dec("2800")), b.Revenue.String())

	assert.InDelta(t, 1.0, a.Proportion+b.Proportion, 1e-12)
	assert.Equal(t, ScopeGlobal, res.Scope)
	assert.Equal(t, 100, res.MetaLeads)
	assert.Equal(t, 100, res.LPLeads)
	assert.InDelta(t, 100.0, res.MatchRate, 1e-9)
}

func TestAllocateProportionsSumToOne(t *testing.T) {
	agg := disposition.Aggregate{Total: 10, Sold: 7, Rejected: 2, Pending: 1, Revenue: dec("333.33")}
	rows := []spend.Row{
		row("c1", "a", "10", 1),
		row("c1", "b", "10", 3),
		row("c2", "c", "10", 7),
		row("c2", "d", "10", 0),
		row("c3", "e", "10", 13),
	}

	res := Allocate(rows, agg, nil)
	sum := 0.0
	revenue := decimal.Zero
	for _, r := range res.Rows {
		sum += r.Proportion
		revenue = revenue.Add(r.Revenue)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 333.33, revenue.InexactFloat64(), 1e-9)
	assert.Zero(t, res.Rows[3].LPTotal)
	assert.Zero(t, res.Rows[3].Proportion)
}

func TestAllocateZeroTotalLeads(t *testing.T) {
	agg := disposition.Aggregate{Total: 50, Sold: 40, Revenue: dec("1000")}
	rows := []spend.Row{row("c1", "a", "120", 0), row("c1", "b", "80", 0)}

	res := Allocate(rows, agg, nil)
	require.Len(t, res.Rows, 2)
	for _, r := range res.Rows {
		assert.Zero(t, r.Proportion)
		assert.Zero(t, r.LPTotal)
		assert.Zero(t, r.LPSold)
		assert.True(t, r.Revenue.IsZero())
		assert.True(t, r.Profit.IsZero())
		assert.Zero(t, r.ROI)
		assert.Zero(t, r.SellThroughRate)
		assert.True(t, r.BreakEvenCPL.IsZero())
	}
	assert.Zero(t, res.MatchRate)
}

func TestAllocateEmpty(t *testing.T) {
	res := Allocate(nil, disposition.Aggregate{}, nil)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Unmapped)
}

func TestShareRoundsHalfToEven(t *testing.T) {
	assert.Equal(t, 0, share(1, 1, 2))  // 0.5
	assert.Equal(t, 2, share(3, 1, 2))  // 1.5
	assert.Equal(t, 2, share(5, 1, 2))  // 2.5
	assert.Equal(t, 1, share(2, 1, 3))  // 0.67
	assert.Equal(t, 33, share(100, 1, 3))
	assert.Equal(t, 0, share(10, 0, 3))
}

func TestUnmappedRowsAreAllocatedAndReported(t *testing.T) {
	mapper := mapping.NewStatic("general", []mapping.Campaign{{CampaignID: "c1", Vertical: "auto"}})
	rows := []spend.Row{row("c1", "a", "50", 10), row("c2", "b", "20", 5), row("c2", "c", "30", 5)}
	agg := disposition.Aggregate{Total: 20, Sold: 10, Revenue: dec("200")}

	res := Allocate(rows, agg, mapper)
	assert.Equal(t, "auto", res.Rows[0].Vertical)
	assert.True(t, res.Rows[0].Mapped)
	assert.Equal(t, "general", res.Rows[1].Vertical)
	assert.False(t, res.Rows[1].Mapped)
	assert.Equal(t, 5, res.Rows[1].LPTotal)

	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, "c2", res.Unmapped[0].CampaignID)
	assert.Equal(t, 10, res.Unmapped[0].Leads)
	assert.True(t, res.Unmapped[0].Spend.Equal(dec("50")))
}

func TestAllocateByCampaign(t *testing.T) {
	rows := []spend.Row{row("c1", "a", "10", 1), row("c2", "b", "10", 4), row("c1", "c", "10", 3), row("c3", "d", "10", 2)}
	aggs := map[string]disposition.Aggregate{
		"c1-name": {Total: 8, Sold: 4, Revenue: dec("80")},
		"c2":      {Total: 2, Sold: 2, Revenue: dec("50")},
	}

	res := AllocateByCampaign(rows, aggs, nil)
	require.Len(t, res.Rows, 4)
	assert.Equal(t, ScopeCampaign, res.Scope)

	assert.Equal(t, "a", res.Rows[0].AdID)
	assert.Equal(t, 2, res.Rows[0].LPTotal)
	assert.True(t, res.Rows[0].Revenue.Equal(dec("20")))
	assert.Equal(t, 6, res.Rows[2].LPTotal)
	assert.Equal(t, 2, res.Rows[1].LPTotal)
	assert.True(t, res.Rows[1].Revenue.Equal(dec("50")))
	assert.Zero(t, res.Rows[3].LPTotal)
	assert.Equal(t, 10, res.LPLeads)
	assert.Equal(t, 10, res.MetaLeads)
}

func TestAllocateByCampaignSharedNameAllocatesOnce(t *testing.T) {
	first := row("111", "a", "50", 10)
	second := row("222", "b", "50", 10)
	first.CampaignName, second.CampaignName = "Solar", "Solar"
	aggs := map[string]disposition.Aggregate{"Solar": {Total: 20, Sold: 10, Revenue: dec("1000")}}

	res := AllocateByCampaign([]spend.Row{first, second}, aggs, nil)
	require.Len(t, res.Rows, 2)

	total, sold := 0, 0
	revenue := decimal.Zero
	for _, r := range res.Rows {
		total += r.LPTotal
		sold += r.LPSold
		revenue = revenue.Add(r.Revenue)
		assert.InDelta(t, 0.5, r.Proportion, 1e-9)
	}
	assert.Equal(t, 20, total)
	assert.Equal(t, 10, sold)
	assert.True(t, revenue.Equal(dec("1000")), revenue.String())
	assert.Equal(t, 20, res.LPLeads)
	assert.InDelta(t, 100.0, res.MatchRate, 1e-9)
}

func TestComputeRowKPIs(t *testing.T) {
	r := MatchedRow{Row: row("c", "a", "100", 10)}
	r.Clicks = 40
	r.LPTotal, r.LPSold, r.LPRejected = 10, 8, 1
	r.Revenue = dec("80")
	r.Payout = dec("20")

	got := ComputeRowKPIs(r)
	assert.True(t, got.Profit.Equal(dec("-20")))
	assert.InDelta(t, -20.0, got.ROI, 1e-9)
	assert.InDelta(t, 80.0, got.SellThroughRate, 1e-9)
	assert.InDelta(t, 10.0, got.RejectionRate, 1e-9)
	assert.True(t, got.AvgSalePrice.Equal(dec("10")))
	assert.True(t, got.ProfitPerLead.Equal(dec("-2")))
	assert.True(t, got.EPL.Equal(dec("8")))
	assert.True(t, got.EPC.Equal(dec("2")))
	assert.True(t, got.BreakEvenCPL.Equal(dec("8")))
	assert.InDelta(t, 100.0, got.BreakEvenSellRate, 1e-9) // cpl 10 / avg 10
	assert.True(t, got.NetRevenue.Equal(dec("60")))
}

func TestComputeRowKPIsGuardsDivisionByZero(t *testing.T) {
	got := ComputeRowKPIs(MatchedRow{})
	assert.Zero(t, got.ROI)
	assert.Zero(t, got.SellThroughRate)
	assert.True(t, got.AvgSalePrice.IsZero())
	assert.True(t, got.EPC.IsZero())
	assert.True(t, got.EPL.IsZero())
	assert.True(t, got.BreakEvenCPL.IsZero())
	assert.Zero(t, got.BreakEvenSellRate)
}

func TestParseScope(t *testing.T) {
	s, ok := ParseScope("Campaign")
	assert.True(t, ok)
	assert.Equal(t, ScopeCampaign, s)

	s, ok = ParseScope("")
	assert.True(t, ok)
	assert.Equal(t, ScopeGlobal, s)

	_, ok = ParseScope("ad")
	assert.False(t, ok)
}
