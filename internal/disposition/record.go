package disposition

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the normalised outcome of a lead. Explicit upstream statuses are kept
// lowercased, so values outside the constants below can appear.
type Status string

const (
	StatusSold     Status = "sold"
	StatusRejected Status = "rejected"
	StatusReturned Status = "returned"
	StatusTrashed  Status = "trashed"
	StatusScrubbed Status = "scrubbed"
	StatusPending  Status = "pending"
	StatusUnsold   Status = "unsold"
	StatusUnknown  Status = "unknown"
)

var (
	soldStatuses     = statusSet("sold", "accepted", "approved")
	rejectedStatuses = statusSet("rejected", "declined", "returned", "trashed", "scrubbed")
	pendingStatuses  = statusSet("pending", "new", "queued")
)

func statusSet(values ...string) map[Status]struct{} {
	set := make(map[Status]struct{}, len(values))
	for _, v := range values {
		set[Status(v)] = struct{}{}
	}
	return set
}

// Feed identifies which upstream listing a raw record came from. The feed decides
// how status flags are interpreted.
type Feed string

const (
	FeedSold      Feed = "sold"
	FeedDelivered Feed = "delivered"
	FeedAll       Feed = "all"
	FeedGeneric   Feed = "generic"
)

// ParseFeed maps a config value to a Feed, defaulting to FeedGeneric.
func ParseFeed(v string) Feed {
	switch Feed(strings.ToLower(strings.TrimSpace(v))) {
	case FeedSold:
		return FeedSold
	case FeedDelivered:
		return FeedDelivered
	case FeedAll:
		return FeedAll
	default:
		return FeedGeneric
	}
}

// Attribution holds the ad identifiers echoed back by the lead system.
type Attribution struct {
	Campaign string `json:"campaign,omitempty"`
	AdSet    string `json:"adset,omitempty"`
	Ad       string `json:"ad,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// Record is one parsed lead disposition.
type Record struct {
	LeadID      string          `json:"lead_id"`
	ExternalID  string          `json:"external_id,omitempty"`
	Status      Status          `json:"status"`
	Revenue     decimal.Decimal `json:"revenue"`
	Payout      decimal.Decimal `json:"payout"`
	Cost        decimal.Decimal `json:"cost"`
	Buyer       string          `json:"buyer,omitempty"`
	Contract    string          `json:"contract,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	SoldAt      *time.Time      `json:"sold_at,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	Vertical    string          `json:"vertical,omitempty"`
	Campaign    string          `json:"campaign,omitempty"`
	AffiliateID string          `json:"affiliate_id,omitempty"`
	SubID       string          `json:"sub_id,omitempty"`
	Attribution Attribution     `json:"attribution"`
	Reason      string          `json:"reason,omitempty"`
}

func (r Record) IsSold() bool {
	_, ok := soldStatuses[r.Status]
	return ok
}

func (r Record) IsRejected() bool {
	_, ok := rejectedStatuses[r.Status]
	return ok
}

func (r Record) IsPending() bool {
	_, ok := pendingStatuses[r.Status]
	return ok
}

// NetRevenue is revenue minus the affiliate payout.
func (r Record) NetRevenue() decimal.Decimal {
	return r.Revenue.Sub(r.Payout)
}
