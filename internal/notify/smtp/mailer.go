// Package smtp emails report-created notices to the moderation inbox.
package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/tipline/videoreports/internal/report"
)

// Config locates the SMTP relay and addresses the notice.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends one plain-text message per persisted report.
type Mailer struct {
	cfg  Config
	send sendFunc
}

// New creates a Mailer using the standard library SMTP client.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Notify emails the report notice. The context is checked before the
// send since net/smtp has no context support; the dial itself is bounded
// by the relay's TCP timeouts.
func (m *Mailer) Notify(ctx context.Context, event report.CreatedEvent) error {
	if m.cfg.Host == "" || m.cfg.From == "" || len(m.cfg.To) == 0 {
		return fmt.Errorf("smtp mailer is not configured")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send canceled: %w", err)
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.port())
	msg := buildMessage(m.cfg.From, m.cfg.To, event)
	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}
	return nil
}

func (m *Mailer) port() int {
	if m.cfg.Port > 0 {
		return m.cfg.Port
	}
	return 587
}

func buildMessage(from string, to []string, event report.CreatedEvent) []byte {
	subject := fmt.Sprintf("New video report #%d: %s", event.Report.ID, event.CategoryLabel)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Video URL: %s\r\n", event.Report.VideoURL)
	fmt.Fprintf(&b, "Category: %s\r\n", event.CategoryLabel)
	if event.PageTitle != "" {
		fmt.Fprintf(&b, "Page title: %s\r\n", event.PageTitle)
	}
	if event.Report.Details != "" {
		fmt.Fprintf(&b, "Details: %s\r\n", event.Report.Details)
	}
	if event.Report.ScreenshotPath != "" {
		fmt.Fprintf(&b, "Screenshot: %s\r\n", event.Report.ScreenshotPath)
	}
	fmt.Fprintf(&b, "Submitted: %s\r\n", event.Report.Timestamp.Format(time.RFC3339))
	return []byte(b.String())
}
