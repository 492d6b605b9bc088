// Package fetcher pulls spend rows from the ad platform and raw disposition
// records from the lead-distribution platform.
package fetcher

import (
	"context"
	"time"

	"lead-recon/internal/disposition"
	"lead-recon/internal/spend"
)

// SpendQuery selects ad-level spend for an inclusive date range.
type SpendQuery struct {
	Since       time.Time `json:"since"`
	Until       time.Time `json:"until"`
	CampaignIDs []string  `json:"campaign_ids,omitempty"`
	AdSetIDs    []string  `json:"adset_ids,omitempty"`
}

// DispositionQuery selects lead records for an inclusive date range.
type DispositionQuery struct {
	Since       time.Time        `json:"since"`
	Until       time.Time        `json:"until"`
	AffiliateID string           `json:"affiliate_id,omitempty"`
	Feed        disposition.Feed `json:"feed"`
}

// SpendSource retrieves spend rows.
type SpendSource interface {
	FetchSpend(ctx context.Context, q SpendQuery) ([]spend.Row, error)
}

// DispositionSource retrieves raw disposition records, left unparsed so the
// caller can apply the feed's status rules.
type DispositionSource interface {
	FetchDispositions(ctx context.Context, q DispositionQuery) ([]map[string]any, error)
}

const dateLayout = "2006-01-02"
