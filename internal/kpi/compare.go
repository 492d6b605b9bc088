package kpi

import (
	"sort"

	"lead-recon/internal/reconcile"
)

// Delta is one metric measured in two windows.
type Delta struct {
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
}

// Comparison holds period-over-period deltas.
type Comparison struct {
	Spend           Delta `json:"spend"`
	Revenue         Delta `json:"revenue"`
	Profit          Delta `json:"profit"`
	ROI             Delta `json:"roi"`
	SellThroughRate Delta `json:"sell_through_rate"`
	CPL             Delta `json:"cpl"`
	AvgSalePrice    Delta `json:"avg_sale_price"`
	Leads           Delta `json:"leads"`
	SoldLeads       Delta `json:"sold_leads"`
}

// Compare computes current minus previous for the headline metrics. The
// percentage change is zero when the previous value is zero.
func Compare(current, previous Summary) Comparison {
	return Comparison{
		Spend:           delta(current.TotalSpend.InexactFloat64(), previous.TotalSpend.InexactFloat64()),
		Revenue:         delta(current.TotalRevenue.InexactFloat64(), previous.TotalRevenue.InexactFloat64()),
		Profit:          delta(current.GrossProfit.InexactFloat64(), previous.GrossProfit.InexactFloat64()),
		ROI:             delta(current.ROIPct, previous.ROIPct),
		SellThroughRate: delta(current.SellThroughRate, previous.SellThroughRate),
		CPL:             delta(current.CPL.InexactFloat64(), previous.CPL.InexactFloat64()),
		AvgSalePrice:    delta(current.AvgSalePrice.InexactFloat64(), previous.AvgSalePrice.InexactFloat64()),
		Leads:           delta(float64(current.TotalMetaLeads), float64(previous.TotalMetaLeads)),
		SoldLeads:       delta(float64(current.SoldLeads), float64(previous.SoldLeads)),
	}
}

func delta(current, previous float64) Delta {
	d := Delta{Current: current, Previous: previous, Change: round(current-previous, 2)}
	if previous != 0 {
		d.ChangePct = round((current-previous)/previous*100, 2)
	}
	return d
}

// Dimension names a column rows can be grouped by.
type Dimension string

const (
	DimensionCampaign Dimension = "campaign"
	DimensionAdSet    Dimension = "adset"
	DimensionAd       Dimension = "ad"
	DimensionVertical Dimension = "vertical"
)

// Valid reports whether rows can be grouped by d.
func (d Dimension) Valid() bool {
	_, ok := dimensionValue(reconcile.MatchedRow{}, d)
	return ok
}

// ByDimension summarises rows per distinct value of dim.
func ByDimension(rows []reconcile.MatchedRow, dim Dimension, targets Targets) map[string]Summary {
	groups := make(map[string][]reconcile.MatchedRow)
	for _, r := range rows {
		key, ok := dimensionValue(r, dim)
		if !ok {
			return map[string]Summary{}
		}
		groups[key] = append(groups[key], r)
	}

	out := make(map[string]Summary, len(groups))
	for k, g := range groups {
		out[k] = Summarize(g, targets)
	}
	return out
}

// SortedKeys returns the group names of a ByDimension result in order.
func SortedKeys(m map[string]Summary) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dimensionValue(r reconcile.MatchedRow, dim Dimension) (string, bool) {
	switch dim {
	case DimensionCampaign:
		return r.CampaignName, true
	case DimensionAdSet:
		return r.AdSetName, true
	case DimensionAd:
		return r.AdName, true
	case DimensionVertical:
		return r.Vertical, true
	default:
		return "", false
	}
}
