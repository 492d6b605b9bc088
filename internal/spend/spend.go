// Package spend holds ad-platform spend rows, one per ad per reporting window.
package spend

import (
	"github.com/shopspring/decimal"
)

// Row is a single ad's spend and lead volume for the requested window.
type Row struct {
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	AdSetID      string          `json:"adset_id"`
	AdSetName    string          `json:"adset_name"`
	AdID         string          `json:"ad_id"`
	AdName       string          `json:"ad_name"`
	Spend        decimal.Decimal `json:"spend"`
	Leads        int             `json:"leads"`
	Impressions  int64           `json:"impressions"`
	Clicks       int64           `json:"clicks"`
	CPL          decimal.Decimal `json:"cpl"`
}

// NewRow builds a row and derives its cost per lead.
func NewRow(campaignID, adSetID, adID string, spend decimal.Decimal, leads int) Row {
	return Row{
		CampaignID: campaignID,
		AdSetID:    adSetID,
		AdID:       adID,
		Spend:      spend,
		Leads:      leads,
		CPL:        CostPerLead(spend, leads),
	}
}

// CostPerLead is spend divided by leads, zero when there are no leads.
func CostPerLead(spend decimal.Decimal, leads int) decimal.Decimal {
	if leads <= 0 {
		return decimal.Zero
	}
	return spend.Div(decimal.NewFromInt(int64(leads)))
}

// Totals sums spend, leads and clicks over rows.
func Totals(rows []Row) (decimal.Decimal, int, int64) {
	total := decimal.Zero
	leads := 0
	var clicks int64
	for _, r := range rows {
		total = total.Add(r.Spend)
		leads += r.Leads
		clicks += r.Clicks
	}
	return total, leads, clicks
}
