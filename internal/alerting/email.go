package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// To is a comma separated recipient list.
	To      string
	UseTLS  bool
	Timeout time.Duration
}

// EmailChannel sends a multipart text and HTML digest over SMTP.
type EmailChannel struct {
	cfg    EmailConfig
	logger zerolog.Logger
}

// NewEmailChannel builds an email channel. Port defaults to 587.
func NewEmailChannel(cfg EmailConfig, logger zerolog.Logger) *EmailChannel {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EmailChannel{cfg: cfg, logger: logger.With().Str("component", "alert_email").Logger()}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) IsConfigured() bool {
	return c.cfg.Host != "" && c.cfg.From != "" && len(c.recipients()) > 0
}

func (c *EmailChannel) recipients() []string {
	var out []string
	for _, r := range strings.Split(c.cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Send delivers one message to every recipient.
func (c *EmailChannel) Send(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !c.IsConfigured() {
		return fmt.Errorf("email: %w", ErrNotConfigured)
	}

	recipients := c.recipients()
	msg, err := buildEmail(c.cfg.From, recipients, alerts)
	if err != nil {
		return err
	}

	if err := c.deliver(ctx, recipients, msg); err != nil {
		return err
	}
	c.logger.Info().Int("alerts", len(alerts)).Int("recipients", len(recipients)).Msg("alerts sent (email)")
	return nil
}

func (c *EmailChannel) deliver(ctx context.Context, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if c.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if c.cfg.Username != "" && c.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, r := range recipients {
		if err := client.Rcpt(r); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", r, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

func emailSubject(alerts []Alert) string {
	counts := CountBySeverity(alerts)
	switch {
	case counts[SeverityCritical] > 0:
		return fmt.Sprintf("🚨 CRITICAL: %d critical alert(s) - %s", counts[SeverityCritical], productName)
	case counts[SeverityWarning] > 0:
		return fmt.Sprintf("⚠️ WARNING: %d warning(s) - %s", counts[SeverityWarning], productName)
	default:
		return fmt.Sprintf("ℹ️ %d alert(s) - %s", len(alerts), productName)
	}
}

func buildEmail(from string, to []string, alerts []Alert) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		render      func(*bytes.Buffer) error
	}{
		{"text/plain; charset=utf-8", func(b *bytes.Buffer) error { b.WriteString(emailText(alerts)); return nil }},
		{"text/html; charset=utf-8", func(b *bytes.Buffer) error { return emailHTML.Execute(b, alerts) }},
	}
	for _, p := range parts {
		var buf bytes.Buffer
		if err := p.render(&buf); err != nil {
			return nil, fmt.Errorf("render email body: %w", err)
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("create email part: %w", err)
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("write email part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close email body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", emailSubject(alerts))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func emailText(alerts []Alert) string {
	var b strings.Builder
	b.WriteString(productName + " Alerts\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(a.Severity)), a.Title)
		fmt.Fprintf(&b, "  %s\n", a.Message)
		fmt.Fprintf(&b, "  Campaign: %s\n", orDefault(a.CampaignName, "N/A"))
		fmt.Fprintf(&b, "  Time: %s\n\n", a.Timestamp.Format("2006-01-02 15:04"))
	}
	return b.String()
}

var severityColors = map[Severity]string{
	SeverityCritical: "#dc3545",
	SeverityWarning:  "#ffc107",
	SeverityInfo:     "#17a2b8",
}

var emailHTML = template.Must(template.New("email").Funcs(template.FuncMap{
	"color": func(s Severity) string {
		if c, ok := severityColors[s]; ok {
			return c
		}
		return "#6c757d"
	},
	"upper":    func(s Severity) string { return strings.ToUpper(string(s)) },
	"stamp":    func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"campaign": func(v string) string { return orDefault(v, "-") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: Arial, sans-serif; }
table { border-collapse: collapse; width: 100%; }
th { background-color: #f8f9fa; padding: 12px 8px; text-align: left; border-bottom: 2px solid #dee2e6; }
td { padding: 8px; border-bottom: 1px solid #ddd; }
</style>
</head>
<body>
<h2>` + productName + ` Alerts</h2>
<p>The following alerts have been triggered:</p>
<table>
<tr><th>Severity</th><th>Alert</th><th>Details</th><th>Campaign</th><th>Time</th></tr>
{{- range .}}
<tr>
<td><span style="background-color: {{color .Severity}}; color: white; padding: 2px 8px; border-radius: 4px; font-size: 12px;">{{upper .Severity}}</span></td>
<td>{{.Title}}</td>
<td>{{.Message}}</td>
<td>{{campaign .CampaignName}}</td>
<td>{{stamp .Timestamp}}</td>
</tr>
{{- end}}
</table>
<p style="color: #6c757d; font-size: 12px; margin-top: 20px;">This is an automated message from ` + productName + `.</p>
</body>
</html>
`))

var _ Channel = (*EmailChannel)(nil)
