// Package reconcile spreads lead-system disposition totals across ad-platform
// spend rows in proportion to each row's lead volume.
//
// The two systems share no ad-level key, so allocation is an approximation:
// counts are rounded per metric and allocated sub-totals need not sum exactly
// to the aggregate.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"lead-recon/internal/disposition"
	"lead-recon/internal/mapping"
	"lead-recon/internal/spend"
)

// Scope selects which rows share one aggregate.
type Scope string

const (
	// ScopeGlobal allocates one aggregate over every row.
	ScopeGlobal Scope = "global"
	// ScopeCampaign allocates each campaign's aggregate over that campaign's rows.
	ScopeCampaign Scope = "campaign"
)

// ParseScope maps a config value to a Scope, defaulting to global.
func ParseScope(v string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(v))) {
	case ScopeGlobal, "":
		return ScopeGlobal, true
	case ScopeCampaign:
		return ScopeCampaign, true
	default:
		return ScopeGlobal, false
	}
}

// UnmappedCampaign is a campaign that had spend but no vertical mapping.
type UnmappedCampaign struct {
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	Spend        decimal.Decimal `json:"spend"`
	Leads        int             `json:"leads"`
}

// Result is the output of one allocation run.
type Result struct {
	Scope     Scope              `json:"scope"`
	Rows      []MatchedRow       `json:"rows"`
	Unmapped  []UnmappedCampaign `json:"unmapped"`
	MetaLeads int                `json:"meta_leads"`
	LPLeads   int                `json:"lp_leads"`
	MatchRate float64            `json:"match_rate"`
}

// Allocate distributes agg across all rows by lead share. Rows keep their input order.
func Allocate(rows []spend.Row, agg disposition.Aggregate, mapper mapping.Provider) Result {
	res := Result{Scope: ScopeGlobal, Rows: allocateGroup(rows, agg, mapper)}
	res.finish(rows, mapper, agg.Total)
	return res
}

// AllocateByCampaign distributes each campaign's aggregate across the rows that
// resolve to it. A row resolves by campaign name first, then campaign id, so
// campaigns sharing a name share one aggregate. Rows without an aggregate are
// allocated zeros.
func AllocateByCampaign(rows []spend.Row, aggs map[string]disposition.Aggregate, mapper mapping.Provider) Result {
	order := make([]string, 0)
	groups := make(map[string][]int)
	for i, r := range rows {
		key := aggregateKey(r, aggs)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	matched := make([]MatchedRow, len(rows))
	lpLeads := 0
	for _, key := range order {
		idx := groups[key]
		group := make([]spend.Row, len(idx))
		for j, i := range idx {
			group[j] = rows[i]
		}

		agg := aggs[key]
		lpLeads += agg.Total

		for j, m := range allocateGroup(group, agg, mapper) {
			matched[idx[j]] = m
		}
	}

	res := Result{Scope: ScopeCampaign, Rows: matched}
	res.finish(rows, mapper, lpLeads)
	return res
}

func aggregateKey(r spend.Row, aggs map[string]disposition.Aggregate) string {
	if r.CampaignName != "" {
		if _, ok := aggs[r.CampaignName]; ok {
			return r.CampaignName
		}
	}
	return r.CampaignID
}

func allocateGroup(rows []spend.Row, agg disposition.Aggregate, mapper mapping.Provider) []MatchedRow {
	totalLeads := 0
	for _, r := range rows {
		if r.Leads > 0 {
			totalLeads += r.Leads
		}
	}

	out := make([]MatchedRow, 0, len(rows))
	for _, r := range rows {
		m := MatchedRow{Row: r}
		m.Vertical, m.Mapped = resolveVertical(mapper, r.CampaignID)

		if totalLeads == 0 {
			out = append(out, zeroKPIs(m))
			continue
		}

		leads := r.Leads
		if leads < 0 {
			leads = 0
		}
		m.Proportion = float64(leads) / float64(totalLeads)
		m.LPTotal = share(agg.Total, leads, totalLeads)
		m.LPSold = share(agg.Sold, leads, totalLeads)
		m.LPRejected = share(agg.Rejected, leads, totalLeads)
		m.LPPending = share(agg.Pending, leads, totalLeads)
		m.Revenue = shareAmount(agg.Revenue, leads, totalLeads)
		m.Payout = shareAmount(agg.Payout, leads, totalLeads)

		out = append(out, ComputeRowKPIs(m))
	}
	return out
}

func resolveVertical(mapper mapping.Provider, campaignID string) (string, bool) {
	if mapper == nil {
		return mapping.DefaultVertical, false
	}
	return mapper.Vertical(campaignID)
}

// share rounds n*part/whole to the nearest integer, ties to even.
func share(n, part, whole int) int {
	if n == 0 || part == 0 || whole == 0 {
		return 0
	}
	num := int64(n) * int64(part)
	w := int64(whole)
	q, r := num/w, num%w
	switch {
	case 2*r > w:
		q++
	case 2*r == w && q%2 == 1:
		q++
	}
	return int(q)
}

func shareAmount(amount decimal.Decimal, part, whole int) decimal.Decimal {
	if part == 0 || whole == 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(part))).Div(decimal.NewFromInt(int64(whole)))
}

func (r *Result) finish(rows []spend.Row, mapper mapping.Provider, lpLeads int) {
	seen := make(map[string]int)
	for _, row := range rows {
		r.MetaLeads += row.Leads

		if _, mapped := resolveVertical(mapper, row.CampaignID); mapped {
			continue
		}
		if i, ok := seen[row.CampaignID]; ok {
			r.Unmapped[i].Spend = r.Unmapped[i].Spend.Add(row.Spend)
			r.Unmapped[i].Leads += row.Leads
			continue
		}
		seen[row.CampaignID] = len(r.Unmapped)
		r.Unmapped = append(r.Unmapped, UnmappedCampaign{
			CampaignID:   row.CampaignID,
			CampaignName: row.CampaignName,
			Spend:        row.Spend,
			Leads:        row.Leads,
		})
	}

	r.LPLeads = lpLeads
	if r.MetaLeads > 0 {
		r.MatchRate = float64(lpLeads) * 100 / float64(r.MetaLeads)
	}
}
