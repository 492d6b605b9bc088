package disposition

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregate summarises a set of dispositions.
type Aggregate struct {
	Total    int             `json:"total"`
	Sold     int             `json:"sold"`
	Rejected int             `json:"rejected"`
	Pending  int             `json:"pending"`
	Revenue  decimal.Decimal `json:"revenue"`
	Payout   decimal.Decimal `json:"payout"`
}

// Summarize reduces records into counts and sums. An empty input yields zeros.
func Summarize(records []Record) Aggregate {
	agg := Aggregate{Revenue: decimal.Zero, Payout: decimal.Zero}
	for _, r := range records {
		agg.Total++
		if r.IsSold() {
			agg.Sold++
		}
		if r.IsRejected() {
			agg.Rejected++
		}
		if r.IsPending() {
			agg.Pending++
		}
		agg.Revenue = agg.Revenue.Add(r.Revenue)
		agg.Payout = agg.Payout.Add(r.Payout)
	}
	return agg
}

// GroupByCampaign summarises records per lead-system campaign, keyed by the
// attributed ad-platform campaign name when present.
func GroupByCampaign(records []Record) map[string]Aggregate {
	buckets := make(map[string][]Record)
	for _, r := range records {
		key := r.Attribution.Campaign
		if key == "" {
			key = r.Campaign
		}
		buckets[key] = append(buckets[key], r)
	}

	out := make(map[string]Aggregate, len(buckets))
	for k, recs := range buckets {
		out[k] = Summarize(recs)
	}
	return out
}

// BuyerPerformance is a buyer's share of sold leads and revenue.
type BuyerPerformance struct {
	Buyer      string          `json:"buyer"`
	LeadsSold  int             `json:"leads_sold"`
	Revenue    decimal.Decimal `json:"revenue"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	PctOfTotal float64         `json:"pct_of_total"`
}

// UnknownBuyer labels sold leads that carry no buyer name.
const UnknownBuyer = "Unknown"

// ByBuyer aggregates sold records per buyer, sorted by revenue descending.
func ByBuyer(records []Record) []BuyerPerformance {
	type stats struct {
		leads   int
		revenue decimal.Decimal
	}

	perBuyer := make(map[string]*stats)
	total := decimal.Zero
	for _, r := range records {
		if !r.IsSold() {
			continue
		}
		buyer := r.Buyer
		if buyer == "" {
			buyer = UnknownBuyer
		}
		s, ok := perBuyer[buyer]
		if !ok {
			s = &stats{revenue: decimal.Zero}
			perBuyer[buyer] = s
		}
		s.leads++
		s.revenue = s.revenue.Add(r.Revenue)
		total = total.Add(r.Revenue)
	}

	out := make([]BuyerPerformance, 0, len(perBuyer))
	hundred := decimal.NewFromInt(100)
	for buyer, s := range perBuyer {
		perf := BuyerPerformance{
			Buyer:     buyer,
			LeadsSold: s.leads,
			Revenue:   s.revenue,
			AvgPrice:  s.revenue.Div(decimal.NewFromInt(int64(s.leads))),
		}
		if total.IsPositive() {
			perf.PctOfTotal = s.revenue.Div(total).Mul(hundred).InexactFloat64()
		}
		out = append(out, perf)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Buyer < out[j].Buyer
	})
	return out
}
