package disposition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformed is returned by Parse for records that cannot be used.
var ErrMalformed = errors.New("disposition: malformed record")

// aliases lists upstream field names for one logical field, highest priority first.
type aliases []string

var (
	leadIDKeys      = aliases{"leadID", "id"}
	externalIDKeys  = aliases{"externalID", "sub_id", "subID"}
	revenueKeys     = aliases{"price", "RPL", "revenue", "soldPrice"}
	costKeys        = aliases{"CPL", "cost", "leadCost"}
	payoutKeys      = aliases{"payout", "affiliatePayout", "PPL"}
	reasonKeys      = aliases{"lp_post_response", "disposition", "returnReason", "return_reason", "rejectReason"}
	buyerKeys       = aliases{"buyerName", "buyer"}
	contractKeys    = aliases{"contractName", "contract"}
	createdKeys     = aliases{"createdOn", "createdAt", "created"}
	soldAtKeys      = aliases{"dateSold", "soldAt", "soldDate"}
	deliveredAtKeys = aliases{"dateDelivered", "deliveredAt"}
	verticalKeys    = aliases{"verticalName", "vertical"}
	campaignKeys    = aliases{"campaignName", "campaign"}
	affiliateKeys   = aliases{"affiliateID", "affiliate_id"}
	subIDKeys       = aliases{"subID", "sub_id", "subId", "s1"}
	statusKeys      = aliases{"status", "disposition"}
	soldIDKeys      = aliases{"soldID", "sold_id"}

	attrCampaignKeys = aliases{"lp_s4", "s4"}
	attrAdSetKeys    = aliases{"lp_s3", "s3"}
	attrAdKeys       = aliases{"lp_s2", "s2"}
	attrPlatformKeys = aliases{"lp_s5", "s5"}
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02",
}

// Parse converts one raw upstream record. Records without a lead id or with an
// unreadable amount are rejected with ErrMalformed.
func Parse(raw map[string]any, feed Feed) (Record, error) {
	if len(raw) == 0 {
		return Record{}, fmt.Errorf("%w: empty record", ErrMalformed)
	}

	rec := Record{
		LeadID:      firstString(raw, leadIDKeys),
		ExternalID:  firstString(raw, externalIDKeys),
		Status:      resolveStatus(raw, feed),
		Buyer:       firstString(raw, buyerKeys),
		Contract:    firstString(raw, contractKeys),
		CreatedAt:   firstTime(raw, createdKeys),
		SoldAt:      firstTime(raw, soldAtKeys),
		DeliveredAt: firstTime(raw, deliveredAtKeys),
		Vertical:    firstString(raw, verticalKeys),
		Campaign:    firstString(raw, campaignKeys),
		AffiliateID: firstString(raw, affiliateKeys),
		SubID:       firstString(raw, subIDKeys),
		Reason:      firstString(raw, reasonKeys),
		Attribution: Attribution{
			Campaign: firstString(raw, attrCampaignKeys),
			AdSet:    firstString(raw, attrAdSetKeys),
			Ad:       firstString(raw, attrAdKeys),
			Platform: firstString(raw, attrPlatformKeys),
		},
	}
	if rec.LeadID == "" {
		return Record{}, fmt.Errorf("%w: missing lead id", ErrMalformed)
	}

	var err error
	if rec.Revenue, err = firstAmount(raw, revenueKeys); err != nil {
		return Record{}, fmt.Errorf("%w: lead %s revenue: %v", ErrMalformed, rec.LeadID, err)
	}
	if rec.Cost, err = firstAmount(raw, costKeys); err != nil {
		return Record{}, fmt.Errorf("%w: lead %s cost: %v", ErrMalformed, rec.LeadID, err)
	}
	if rec.Payout, err = firstAmount(raw, payoutKeys); err != nil {
		return Record{}, fmt.Errorf("%w: lead %s payout: %v", ErrMalformed, rec.LeadID, err)
	}

	return rec, nil
}

// ParseAll parses every raw record, dropping malformed ones. The number of
// dropped records is returned for logging.
func ParseAll(raws []map[string]any, feed Feed) ([]Record, int) {
	records := make([]Record, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		rec, err := Parse(raw, feed)
		if err != nil {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

func resolveStatus(raw map[string]any, feed Feed) Status {
	returned := isYes(raw["returned"])

	switch feed {
	case FeedSold:
		if returned {
			return StatusReturned
		}
		return StatusSold
	case FeedDelivered:
		switch {
		case returned:
			return StatusReturned
		case firstString(raw, soldIDKeys) != "":
			return StatusSold
		default:
			return StatusUnsold
		}
	case FeedAll:
		switch {
		case returned:
			return StatusReturned
		case isYes(raw["sold"]):
			return StatusSold
		case isYes(raw["trash"]):
			return StatusTrashed
		case isYes(raw["scrubbed"]):
			return StatusScrubbed
		default:
			return StatusUnsold
		}
	}

	if explicit := firstString(raw, statusKeys); explicit != "" {
		return Status(strings.ToLower(explicit))
	}
	switch {
	case returned:
		return StatusReturned
	case isYes(raw["sold"]):
		return StatusSold
	case isNo(raw["sold"]):
		return StatusPending
	default:
		return StatusUnknown
	}
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		return t.String() != "" && t.String() != "0"
	default:
		return true
	}
}

func first(raw map[string]any, keys aliases) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func firstString(raw map[string]any, keys aliases) string {
	v, ok := first(raw, keys)
	if !ok {
		return ""
	}
	return stringify(v)
}

func firstAmount(raw map[string]any, keys aliases) (decimal.Decimal, error) {
	v, ok := first(raw, keys)
	if !ok {
		return decimal.Zero, nil
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case bool:
		return decimal.Zero, fmt.Errorf("unexpected boolean amount")
	}

	s := strings.TrimSpace(stringify(v))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

func firstTime(raw map[string]any, keys aliases) *time.Time {
	s := firstString(raw, keys)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func flag(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(stringify(v))
}

func isYes(v any) bool {
	switch flag(v) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func isNo(v any) bool {
	switch flag(v) {
	case "no", "false", "0":
		return true
	}
	return false
}
