package confidence

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/spend"
)

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		spend int64
		leads int
		want  Level
	}{
		{600, 40, High},
		{500, 30, High},
		{1000, 29, Medium},
		{499, 100, Medium},
		{250, 15, Medium},
		{249, 100, Low},
		{10000, 14, Low},
		{0, 0, Low},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(money(tt.spend), tt.leads, th), "spend=%d leads=%d", tt.spend, tt.leads)
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	th := DefaultThresholds()
	rank := map[Level]int{Low: 0, Medium: 1, High: 2}
	for s := int64(0); s <= 800; s += 50 {
		for l := 0; l <= 50; l += 5 {
			base := rank[Classify(money(s), l, th)]
			assert.GreaterOrEqual(t, rank[Classify(money(s+50), l, th)], base)
			assert.GreaterOrEqual(t, rank[Classify(money(s), l+5, th)], base)
		}
	}
}

func TestRecommend(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, Scale, Recommend(High, ptr(15), th))
	assert.Equal(t, Scale, Recommend(High, ptr(30), th))
	assert.Equal(t, Maintain, Recommend(High, ptr(45), th))
	assert.Equal(t, Kill, Recommend(High, ptr(46), th))
	assert.Equal(t, NeedsData, Recommend(High, nil, th))

	for _, lvl := range []Level{Medium, Low} {
		assert.Equal(t, NeedsData, Recommend(lvl, ptr(5), th))
		assert.Equal(t, NeedsData, Recommend(lvl, ptr(500), th))
	}
}

func TestEstimateSampleSize(t *testing.T) {
	s := EstimateSampleSize(20, ptr(25), 50)
	assert.Equal(t, 30, s.LeadsNeeded)
	assert.InDelta(t, 40.0, s.ProgressPct, 1e-9)
	require.NotNil(t, s.SpendNeeded)
	assert.True(t, s.SpendNeeded.Equal(money(750)))

	s = EstimateSampleSize(80, ptr(25), 50)
	assert.Zero(t, s.LeadsNeeded)
	assert.Equal(t, 100.0, s.ProgressPct)
	assert.Nil(t, s.SpendNeeded)

	assert.Nil(t, EstimateSampleSize(10, nil, 50).SpendNeeded)
	assert.Nil(t, EstimateSampleSize(10, ptr(0), 50).SpendNeeded)
	assert.Zero(t, EstimateSampleSize(10, ptr(5), 0).ProgressPct)
}

func TestAssess(t *testing.T) {
	// $600 for 40 leads: cpl 15
	a := Assess(spend.NewRow("c", "s", "a", money(600), 40), DefaultThresholds())
	assert.Equal(t, High, a.Level)
	assert.Equal(t, Scale, a.Action)
	assert.Equal(t, 10, a.Sample.LeadsNeeded)
	require.NotNil(t, a.Sample.SpendNeeded)
	assert.True(t, a.Sample.SpendNeeded.Equal(money(150)))

	none := Assess(spend.NewRow("c", "s", "b", money(900), 0), DefaultThresholds())
	assert.Equal(t, Low, none.Level)
	assert.Equal(t, NeedsData, none.Action)
	assert.Nil(t, none.Sample.SpendNeeded)
}

func TestSanitize(t *testing.T) {
	good := DefaultThresholds()
	got, err := good.Sanitize()
	require.NoError(t, err)
	assert.Equal(t, good, got)

	bad := DefaultThresholds()
	bad.MediumLeads = 100
	got, err = bad.Sanitize()
	require.Error(t, err)
	assert.Equal(t, DefaultThresholds(), got)

	bad = DefaultThresholds()
	bad.CPLAcceptable = money(10)
	_, err = bad.Sanitize()
	assert.Error(t, err)
}
