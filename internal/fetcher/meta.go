package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lead-recon/internal/spend"
)

const (
	metaSource         = "meta"
	defaultMetaBaseURL = "https://graph.facebook.com"
	defaultMetaVersion = "v24.0"
	metaPageLimit      = 5000
	metaMaxPages       = 200
	metaInsightFields  = "campaign_id,campaign_name,adset_id,adset_name,ad_id,ad_name,spend,impressions,clicks,actions"
)

// DefaultLeadActionTypes are the action types counted as leads.
var DefaultLeadActionTypes = []string{
	"lead",
	"omni_lead",
	"onsite_conversion.lead_grouped",
	"offsite_conversion.fb_pixel_lead",
}

// MetaOptions parameterise the ad-platform insights client.
type MetaOptions struct {
	BaseURL         string
	APIVersion      string
	AccessToken     string
	AdAccountID     string
	LeadActionTypes []string
	Timeout         time.Duration
	UserAgent       string
	Retry           RetryOptions
}

// Validate checks credentials and identifiers before any call is made.
func (o MetaOptions) Validate() error {
	if strings.TrimSpace(o.AccessToken) == "" {
		return errors.New("meta access token required")
	}
	if !strings.HasPrefix(o.AdAccountID, "act_") {
		return fmt.Errorf("meta ad account id %q must start with act_", o.AdAccountID)
	}
	if v := o.APIVersion; v != "" && !strings.HasPrefix(v, "v") {
		return fmt.Errorf("meta api version %q must start with v", v)
	}
	return nil
}

// Meta fetches ad-level insights.
type Meta struct {
	opts        MetaOptions
	logger      zerolog.Logger
	client      *http.Client
	baseURL     string
	leadActions map[string]struct{}
}

// NewMeta constructs an insights client.
func NewMeta(opts MetaOptions, logger zerolog.Logger) (*Meta, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.APIVersion == "" {
		opts.APIVersion = defaultMetaVersion
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultMetaBaseURL
	}

	types := opts.LeadActionTypes
	if len(types) == 0 {
		types = DefaultLeadActionTypes
	}
	actions := make(map[string]struct{}, len(types))
	for _, t := range types {
		actions[t] = struct{}{}
	}

	return &Meta{
		opts:        opts,
		logger:      logger.With().Str("component", "meta_fetcher").Logger(),
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		leadActions: actions,
	}, nil
}

// FetchSpend pages through ad-level insights for the query window.
func (m *Meta) FetchSpend(ctx context.Context, q SpendQuery) ([]spend.Row, error) {
	endpoint, err := m.insightsURL(q)
	if err != nil {
		return nil, err
	}

	var rows []spend.Row
	for page := 0; endpoint != "" && page < metaMaxPages; page++ {
		var res insightsResponse
		err := withRetry(ctx, m.opts.Retry, m.logger, "meta insights", func() error {
			res = insightsResponse{}
			return m.get(ctx, endpoint, &res)
		})
		if err != nil {
			return nil, err
		}

		for _, item := range res.Data {
			rows = append(rows, m.toRow(item))
		}
		endpoint = res.Paging.Next
	}

	m.logger.Debug().Int("rows", len(rows)).Str("since", q.Since.Format(dateLayout)).
		Str("until", q.Until.Format(dateLayout)).Msg("fetched spend")
	return rows, nil
}

func (m *Meta) insightsURL(q SpendQuery) (string, error) {
	timeRange, err := json.Marshal(map[string]string{
		"since": q.Since.Format(dateLayout),
		"until": q.Until.Format(dateLayout),
	})
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("access_token", m.opts.AccessToken)
	params.Set("level", "ad")
	params.Set("fields", metaInsightFields)
	params.Set("time_range", string(timeRange))
	params.Set("limit", strconv.Itoa(metaPageLimit))

	var filters []insightFilter
	if len(q.CampaignIDs) > 0 {
		filters = append(filters, insightFilter{Field: "campaign.id", Operator: "IN", Value: q.CampaignIDs})
	}
	if len(q.AdSetIDs) > 0 {
		filters = append(filters, insightFilter{Field: "adset.id", Operator: "IN", Value: q.AdSetIDs})
	}
	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return "", err
		}
		params.Set("filtering", string(raw))
	}

	return fmt.Sprintf("%s/%s/%s/insights?%s", m.baseURL, m.opts.APIVersion, m.opts.AdAccountID, params.Encode()), nil
}

func (m *Meta) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoffPermanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "leadrecon/1.0")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseMetaError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return backoffPermanent(fmt.Errorf("decode meta insights: %w", err))
	}
	return nil
}

func (m *Meta) toRow(item insightRow) spend.Row {
	amount, err := decimal.NewFromString(strings.TrimSpace(item.Spend))
	if err != nil {
		amount = decimal.Zero
	}

	row := spend.NewRow(item.CampaignID, item.AdSetID, item.AdID, amount, m.countLeads(item.Actions))
	row.CampaignName = item.CampaignName
	row.AdSetName = item.AdSetName
	row.AdName = item.AdName
	row.Impressions = parseCount(item.Impressions)
	row.Clicks = parseCount(item.Clicks)
	return row
}

// countLeads sums lead-type actions. A negative total is floored at zero.
func (m *Meta) countLeads(actions []insightAction) int {
	total := 0
	for _, a := range actions {
		if _, ok := m.leadActions[a.ActionType]; !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
		if err != nil {
			continue
		}
		total += int(v)
	}
	if total < 0 {
		return 0
	}
	return total
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type insightFilter struct {
	Field    string   `json:"field"`
	Operator string   `json:"operator"`
	Value    []string `json:"value"`
}

type insightAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type insightRow struct {
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	AdSetID      string          `json:"adset_id"`
	AdSetName    string          `json:"adset_name"`
	AdID         string          `json:"ad_id"`
	AdName       string          `json:"ad_name"`
	Spend        string          `json:"spend"`
	Impressions  string          `json:"impressions"`
	Clicks       string          `json:"clicks"`
	Actions      []insightAction `json:"actions"`
}

type insightsResponse struct {
	Data   []insightRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type metaErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    json.Number `json:"code"`
	} `json:"error"`
}

func parseMetaError(status int, payload []byte) error {
	apiErr := &APIError{Source: metaSource, StatusCode: status, Payload: decodePayload(payload)}

	var res metaErrorResponse
	if err := json.Unmarshal(payload, &res); err == nil && res.Error.Message != "" {
		apiErr.Message = res.Error.Message
		apiErr.Code = res.Error.Code.String()
		return apiErr
	}
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
		apiErr.Message = trimmed
	}
	return apiErr
}

var _ SpendSource = (*Meta)(nil)
