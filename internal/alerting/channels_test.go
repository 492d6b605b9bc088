package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackChannelPostsBlocks(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alerts := sampleAlerts(12)
	alerts[3].Severity = SeverityCritical
	ch := NewSlackChannel(srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, ch.Send(context.Background(), alerts))

	require.Len(t, got.Blocks, 2+10+1)
	assert.Equal(t, "header", got.Blocks[0].Type)
	assert.Equal(t, "🚨 Lead Recon: 1 Critical Alert(s)", got.Blocks[0].Text.Text)
	assert.Equal(t, "divider", got.Blocks[1].Type)
	assert.Equal(t, "*Campaign:*\nN/A", got.Blocks[2].Fields[0].Text)
	last := got.Blocks[len(got.Blocks)-1]
	assert.Equal(t, "context", last.Type)
	assert.Equal(t, "_...and 2 more alerts_", last.Elements[0].Text)
}

func TestSlackHeaderBySeverity(t *testing.T) {
	warn := buildSlackPayload(sampleAlerts(2))
	assert.Equal(t, "⚠️ Lead Recon: 2 Warning(s)", warn.Blocks[0].Text.Text)
	assert.Len(t, warn.Blocks, 4)

	info := sampleAlerts(1)
	info[0].Severity = SeverityInfo
	assert.Equal(t, "ℹ️ Lead Recon: 1 Info Alert(s)", buildSlackPayload(info).Blocks[0].Text.Text)
}

func TestSlackChannelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlackChannel(srv.URL, time.Second, zerolog.Nop()).Send(context.Background(), sampleAlerts(1))
	assert.Error(t, err)

	err = NewSlackChannel("", time.Second, zerolog.Nop()).Send(context.Background(), sampleAlerts(1))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTelegramChannelSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	ch := NewTelegramChannel("token", "chat", srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, ch.Send(context.Background(), sampleAlerts(2)))

	assert.Equal(t, "chat", received["chat_id"])
	assert.Contains(t, received["text"], "2 alert(s): 0 critical, 2 warning")
	assert.Contains(t, received["text"], "ROI 5.0% is below target 20%")
}

func TestTelegramChannelOKFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	err := NewTelegramChannel("token", "chat", srv.URL, time.Second, zerolog.Nop()).Send(context.Background(), sampleAlerts(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestEmailChannelConfiguration(t *testing.T) {
	ch := NewEmailChannel(EmailConfig{Host: "smtp.example.com", From: "a@example.com", To: " b@example.com, ,c@example.com "}, zerolog.Nop())
	assert.True(t, ch.IsConfigured())
	assert.Equal(t, []string{"b@example.com", "c@example.com"}, ch.recipients())
	assert.Equal(t, 587, ch.cfg.Port)

	assert.False(t, NewEmailChannel(EmailConfig{Host: "smtp.example.com", From: "a@example.com"}, zerolog.Nop()).IsConfigured())
	err := NewEmailChannel(EmailConfig{}, zerolog.Nop()).Send(context.Background(), sampleAlerts(1))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmailMessage(t *testing.T) {
	alerts := sampleAlerts(2)
	alerts[0].Severity = SeverityCritical
	alerts[0].CampaignName = "<Spring & Co>"

	msg, err := buildEmail("from@example.com", []string{"x@example.com", "y@example.com"}, alerts)
	require.NoError(t, err)
	body := string(msg)

	assert.Contains(t, body, "To: x@example.com, y@example.com\r\n")
	assert.Contains(t, body, "Subject: 🚨 CRITICAL: 1 critical alert(s) - Lead Recon\r\n")
	assert.Contains(t, body, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, body, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, body, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, body, "[CRITICAL] Low ROI")
	assert.Contains(t, body, "&lt;Spring &amp; Co&gt;")
	assert.Contains(t, body, "#dc3545")
}

func TestEmailSubject(t *testing.T) {
	assert.Equal(t, "⚠️ WARNING: 2 warning(s) - Lead Recon", emailSubject(sampleAlerts(2)))
	info := sampleAlerts(3)
	for i := range info {
		info[i].Severity = SeverityInfo
	}
	assert.Equal(t, "ℹ️ 3 alert(s) - Lead Recon", emailSubject(info))
	assert.True(t, strings.HasPrefix(emailText(info), "Lead Recon Alerts\n"))
}

func TestDashboardChannel(t *testing.T) {
	d := NewDashboardChannel(3)
	alerts := numbered(0, 5)
	alerts[4].Severity = SeverityCritical
	require.NoError(t, d.Send(context.Background(), alerts))

	stored := d.Alerts()
	require.Len(t, stored, 3)
	assert.Equal(t, "id-0004", stored[0].ID)
	assert.Equal(t, "id-0002", stored[2].ID)

	assert.Len(t, d.BySeverity(SeverityCritical), 1)
	assert.True(t, d.Acknowledge("id-0003"))
	assert.False(t, d.Acknowledge("id-0000"))
	assert.Len(t, d.Unacknowledged(), 2)

	d.Clear()
	assert.Empty(t, d.Alerts())
}
