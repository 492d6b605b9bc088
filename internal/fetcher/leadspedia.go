package fetcher

import (
	"bytes"
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

	"lead-recon/internal/disposition"
)

const (
	leadspediaSource         = "leadspedia"
	defaultLeadspediaBaseURL = "https://api.leadspedia.com/core/v2"
	defaultLeadspediaPage    = 500
	defaultLeadspediaPages   = 100
)

// LeadspediaOptions parameterise the disposition client.
type LeadspediaOptions struct {
	BaseURL   string
	APIKey    string
	APISecret string
	PageSize  int
	MaxPages  int
	Timeout   time.Duration
	UserAgent string
	Retry     RetryOptions
}

// Leadspedia fetches lead listings with their sale outcome.
type Leadspedia struct {
	opts    LeadspediaOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewLeadspedia constructs a disposition client.
func NewLeadspedia(opts LeadspediaOptions, logger zerolog.Logger) (*Leadspedia, error) {
	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, errors.New("leadspedia api key and secret required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultLeadspediaPage
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultLeadspediaPages
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultLeadspediaBaseURL
	}

	return &Leadspedia{
		opts:    opts,
		logger:  logger.With().Str("component", "leadspedia_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}, nil
}

func leadspediaEndpoint(feed disposition.Feed) string {
	switch feed {
	case disposition.FeedSold:
		return "leads/getSold.do"
	case disposition.FeedDelivered:
		return "leads/getDelivered.do"
	default:
		return "leads/getAll.do"
	}
}

// FetchDispositions pages through the feed until a short page or the page cap.
func (l *Leadspedia) FetchDispositions(ctx context.Context, q DispositionQuery) ([]map[string]any, error) {
	endpoint := l.baseURL + "/" + leadspediaEndpoint(q.Feed)

	var records []map[string]any
	for page := 0; page < l.opts.MaxPages; page++ {
		params := url.Values{}
		params.Set("api_key", l.opts.APIKey)
		params.Set("api_secret", l.opts.APISecret)
		params.Set("fromDate", q.Since.Format(dateLayout))
		params.Set("toDate", q.Until.Format(dateLayout))
		params.Set("start", strconv.Itoa(page*l.opts.PageSize))
		params.Set("limit", strconv.Itoa(l.opts.PageSize))
		if q.AffiliateID != "" {
			params.Set("affiliateID", q.AffiliateID)
		}

		var batch []map[string]any
		err := withRetry(ctx, l.opts.Retry, l.logger, "leadspedia "+string(q.Feed), func() error {
			var err error
			batch, err = l.get(ctx, endpoint+"?"+params.Encode())
			return err
		})
		if err != nil {
			return nil, err
		}

		records = append(records, batch...)
		if len(batch) < l.opts.PageSize {
			break
		}
	}

	l.logger.Debug().Int("records", len(records)).Str("feed", string(q.Feed)).Msg("fetched dispositions")
	return records, nil
}

func (l *Leadspedia) get(ctx context.Context, endpoint string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoffPermanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "leadrecon/1.0")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseLeadspediaError(resp.StatusCode, payload)
	}

	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, backoffPermanent(fmt.Errorf("decode leadspedia response: %w", err))
	}

	if !leadspediaSucceeded(body) {
		return nil, &APIError{
			Source:     leadspediaSource,
			StatusCode: resp.StatusCode,
			Code:       str(body["code"]),
			Message:    leadspediaMessage(body),
			Payload:    body,
		}
	}
	return leadspediaRecords(body), nil
}

// leadspediaSucceeded reads the success flag, falling back to result.
// A body carrying neither is treated as a failure.
func leadspediaSucceeded(body map[string]any) bool {
	if ok, present := body["success"].(bool); present {
		return ok
	}
	if result, present := body["result"].(string); present {
		return strings.EqualFold(result, "success")
	}
	return false
}

func leadspediaMessage(body map[string]any) string {
	for _, key := range []string{"message", "error", "errorMessage"} {
		if msg := str(body[key]); msg != "" {
			return msg
		}
	}
	return "request was not successful"
}

// leadspediaRecords finds the record list under response.data, a bare
// response list, or top-level data.
func leadspediaRecords(body map[string]any) []map[string]any {
	if response, ok := body["response"].(map[string]any); ok {
		if list, ok := response["data"].([]any); ok {
			return toRecords(list)
		}
	}
	if list, ok := body["response"].([]any); ok {
		return toRecords(list)
	}
	if list, ok := body["data"].([]any); ok {
		return toRecords(list)
	}
	return nil
}

func toRecords(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func parseLeadspediaError(status int, payload []byte) error {
	apiErr := &APIError{Source: leadspediaSource, StatusCode: status, Payload: decodePayload(payload)}
	if apiErr.Payload != nil {
		apiErr.Message = leadspediaMessage(apiErr.Payload)
		apiErr.Code = str(apiErr.Payload["code"])
		return apiErr
	}
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
		apiErr.Message = trimmed
	}
	return apiErr
}

var _ DispositionSource = (*Leadspedia)(nil)
