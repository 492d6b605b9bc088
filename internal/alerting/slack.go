package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// slackMaxSections caps the alert sections in one webhook message.
const slackMaxSections = 10

// SlackChannel posts Block Kit messages to an incoming webhook.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewSlackChannel builds a Slack channel. A zero timeout means ten seconds.
func NewSlackChannel(webhookURL string, timeout time.Duration, logger zerolog.Logger) *SlackChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_slack").Logger(),
	}
}

func (c *SlackChannel) Name() string { return "slack" }
func (c *SlackChannel) IsConfigured() bool { return c.webhookURL != "" }

// Send posts one message for the whole batch.
func (c *SlackChannel) Send(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !c.IsConfigured() {
		return fmt.Errorf("slack: %w", ErrNotConfigured)
	}

	body, err := json.Marshal(buildSlackPayload(alerts))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	c.logger.Info().Int("alerts", len(alerts)).Msg("alerts sent (slack)")
	return nil
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

func buildSlackPayload(alerts []Alert) slackPayload {
	counts := CountBySeverity(alerts)

	var header string
	switch {
	case counts[SeverityCritical] > 0:
		header = fmt.Sprintf("🚨 %s: %d Critical Alert(s)", productName, counts[SeverityCritical])
	case counts[SeverityWarning] > 0:
		header = fmt.Sprintf("⚠️ %s: %d Warning(s)", productName, counts[SeverityWarning])
	default:
		header = fmt.Sprintf("ℹ️ %s: %d Info Alert(s)", productName, counts[SeverityInfo])
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: header, Emoji: true}},
		{Type: "divider"},
	}

	for i, a := range alerts {
		if i == slackMaxSections {
			break
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("%s *%s*\n%s", severityMark(a.Severity), a.Title, a.Message)},
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Campaign:*\n" + orDefault(a.CampaignName, "N/A")},
				{Type: "mrkdwn", Text: "*Time:*\n" + a.Timestamp.Format("15:04")},
			},
		})
	}

	if extra := len(alerts) - slackMaxSections; extra > 0 {
		blocks = append(blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("_...and %d more alerts_", extra)}},
		})
	}

	return slackPayload{Blocks: blocks}
}

var _ Channel = (*SlackChannel)(nil)
