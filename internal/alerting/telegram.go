package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// telegramMaxAlerts caps the alerts rendered into one message.
const telegramMaxAlerts = 20

// TelegramChannel pushes alerts through the Telegram Bot API.
type TelegramChannel struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramChannel builds a Telegram channel.
func NewTelegramChannel(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }
func (c *TelegramChannel) IsConfigured() bool { return c.botToken != "" && c.chatID != "" }

// Send calls sendMessage with a plain-text digest of the batch.
func (c *TelegramChannel) Send(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !c.IsConfigured() {
		return fmt.Errorf("telegram: %w", ErrNotConfigured)
	}

	payload := map[string]string{
		"chat_id": c.chatID,
		"text":    renderTelegram(alerts),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	c.logger.Info().Int("alerts", len(alerts)).Msg("alerts sent (telegram)")
	return nil
}

func renderTelegram(alerts []Alert) string {
	counts := CountBySeverity(alerts)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d alert(s): %d critical, %d warning\n",
		productName, len(alerts), counts[SeverityCritical], counts[SeverityWarning])
	for i, a := range alerts {
		if i == telegramMaxAlerts {
			fmt.Fprintf(&b, "...and %d more\n", len(alerts)-telegramMaxAlerts)
			break
		}
		fmt.Fprintf(&b, "\n%s %s\n%s\n", severityMark(a.Severity), a.Title, a.Message)
		if a.CampaignName != "" {
			fmt.Fprintf(&b, "Campaign: %s\n", a.CampaignName)
		}
		fmt.Fprintf(&b, "Time: %s UTC\n", a.Timestamp.UTC().Format(time.RFC3339))
	}
	return b.String()
}

var _ Channel = (*TelegramChannel)(nil)
