package alerting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/reconcile"
	"lead-recon/internal/spend"
)

var fixedNow = time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func matchedRow(ad string, spendAmt int64, leads, total, sold, rejected, pending int, revenue int64) reconcile.MatchedRow {
	r := reconcile.MatchedRow{Row: spend.NewRow("c1", "s1", ad, decimal.NewFromInt(spendAmt), leads)}
	r.CampaignName = "Campaign One"
	r.AdName = "Ad " + ad
	r.LPTotal, r.LPSold, r.LPRejected, r.LPPending = total, sold, rejected, pending
	r.Revenue = decimal.NewFromInt(revenue)
	r.Payout = decimal.Zero
	return reconcile.ComputeRowKPIs(r)
}

func byType(alerts []Alert) map[Type]Alert {
	out := make(map[Type]Alert, len(alerts))
	for _, a := range alerts {
		out[a.Type] = a
	}
	return out
}

func TestDetectorNegativeMargin(t *testing.T) {
	// spend 100 revenue 80: profit -20, roi -20
	row := matchedRow("a1", 100, 10, 10, 10, 0, 0, 80)

	on := byType(NewDetector(DefaultThresholdSet(), WithClock(clock)).Check([]reconcile.MatchedRow{row}))
	require.Contains(t, on, TypeNegativeMargin)
	neg := on[TypeNegativeMargin]
	assert.Equal(t, SeverityCritical, neg.Severity)
	assert.Equal(t, "Negative Profit: Ad a1", neg.Title)
	assert.Equal(t, "Ad is losing money: $-20.00 profit", neg.Message)
	assert.Equal(t, -20.0, *neg.MetricValue)
	assert.Equal(t, 0.0, *neg.ThresholdValue)

	require.Contains(t, on, TypeLowROI)
	assert.Equal(t, SeverityCritical, on[TypeLowROI].Severity)
	assert.Equal(t, "ROI -20.0% is below target 20%", on[TypeLowROI].Message)

	th := DefaultThresholds()
	th.AlertOnNegativeMargin = false
	off := byType(NewDetector(ThresholdSet{Default: th}, WithClock(clock)).Check([]reconcile.MatchedRow{row}))
	assert.NotContains(t, off, TypeNegativeMargin)
	assert.Contains(t, off, TypeLowROI)
}

func TestDetectorSellThroughSeverity(t *testing.T) {
	d := NewDetector(DefaultThresholdSet(), WithClock(clock))

	warn := byType(d.Check([]reconcile.MatchedRow{matchedRow("a", 100, 100, 100, 90, 0, 0, 1000)}))
	require.Contains(t, warn, TypeLowSellRate)
	assert.Equal(t, SeverityWarning, warn[TypeLowSellRate].Severity)
	assert.Equal(t, "Sell-through rate 90.0% is below threshold 95%", warn[TypeLowSellRate].Message)

	crit := byType(d.Check([]reconcile.MatchedRow{matchedRow("b", 100, 100, 100, 80, 0, 0, 1000)}))
	assert.Equal(t, SeverityCritical, crit[TypeLowSellRate].Severity)

	none := d.Check([]reconcile.MatchedRow{matchedRow("c", 100, 100, 0, 0, 0, 0, 0)})
	assert.NotContains(t, byType(none), TypeLowSellRate)
}

func TestDetectorRejectionAndUnsold(t *testing.T) {
	d := NewDetector(DefaultThresholdSet(), WithClock(clock))
	alerts := byType(d.Check([]reconcile.MatchedRow{matchedRow("a", 100, 100, 100, 70, 20, 10, 5000)}))

	require.Contains(t, alerts, TypeHighRejection)
	assert.Equal(t, SeverityWarning, alerts[TypeHighRejection].Severity)
	assert.Equal(t, "Rejection rate 20.0% is unusually high", alerts[TypeHighRejection].Message)

	require.Contains(t, alerts, TypeUnsoldLead)
	u := alerts[TypeUnsoldLead]
	assert.Equal(t, SeverityWarning, u.Severity)
	assert.Equal(t, "10 leads (10.0%) remain unsold", u.Message)
	assert.Equal(t, 10.0, *u.MetricValue)
	assert.Nil(t, u.ThresholdValue)
	assert.Equal(t, 10.0, u.Metadata["unsold_percentage"])
}

func TestDetectorHealthyRowRaisesNothing(t *testing.T) {
	d := NewDetector(DefaultThresholdSet(), WithClock(clock))
	assert.Empty(t, d.Check([]reconcile.MatchedRow{matchedRow("a", 100, 10, 10, 10, 0, 0, 500)}))
	assert.Empty(t, d.Check(nil))
}

func TestDetectorLowROIOnZeroSpend(t *testing.T) {
	row := matchedRow("free", 0, 10, 10, 10, 0, 0, 500)
	require.Zero(t, row.ROI)

	got := byType(NewDetector(DefaultThresholdSet(), WithClock(clock)).Check([]reconcile.MatchedRow{row}))
	require.Contains(t, got, TypeLowROI)
	assert.Equal(t, SeverityWarning, got[TypeLowROI].Severity)
	assert.Equal(t, 0.0, *got[TypeLowROI].MetricValue)
	assert.Equal(t, 20.0, *got[TypeLowROI].ThresholdValue)
	assert.NotContains(t, got, TypeNegativeMargin)
}

func TestDetectorUsesVerticalThresholds(t *testing.T) {
	set := ThresholdSet{
		Default:    DefaultThresholds(),
		ByVertical: map[string]Thresholds{"solar": {MinSellRate: 80, MinROI: 10, AlertOnNegativeMargin: true}},
	}
	row := matchedRow("a", 100, 100, 100, 90, 0, 0, 1000)
	row.Vertical, row.Mapped = "solar", true

	alerts := NewDetector(set, WithClock(clock)).Check([]reconcile.MatchedRow{row})
	assert.Empty(t, alerts)

	row.Mapped = false
	alerts = NewDetector(set, WithClock(clock)).Check([]reconcile.MatchedRow{row})
	require.Len(t, alerts, 1)
	assert.Equal(t, "", alerts[0].Vertical)
}

func TestDetectorIDsStableWithinHour(t *testing.T) {
	row := matchedRow("a", 100, 10, 10, 10, 0, 0, 80)
	now := fixedNow
	d := NewDetector(DefaultThresholdSet(), WithClock(func() time.Time { return now }))

	first := d.Check([]reconcile.MatchedRow{row})
	now = now.Add(30 * time.Minute)
	second := d.Check([]reconcile.MatchedRow{row})
	now = now.Add(time.Hour)
	third := d.Check([]reconcile.MatchedRow{row})

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.NotEqual(t, first[i].ID, third[i].ID)
	}
}
