// internal/app/system/mailer/mailer.go

// Package mailer sends transactional email over SMTP. Sending is
// best-effort throughout the app: callers log failures and carry on,
// so a down mail relay never blocks a workflow.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Email is one outbound message with both plain-text and HTML bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings. An empty Host disables sending.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends email through a single SMTP relay.
type Mailer struct {
	cfg Config
	log *zap.Logger
}

// New creates a Mailer. When cfg.Host is empty the mailer is disabled
// and Send becomes a logged no-op, which keeps local development and
// tests free of SMTP requirements.
func New(cfg Config, log *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// Enabled reports whether a relay is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// Send delivers one message. The HTML body is preferred; the text body
// rides along as the alternative part.
func (m *Mailer) Send(e Email) error {
	if !m.Enabled() {
		m.log.Debug("mailer disabled, dropping message",
			zap.String("to", e.To),
			zap.String("subject", e.Subject))
		return nil
	}
	if e.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	msg := buildMessage(m.cfg.From, e)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", e.To, err)
	}
	return nil
}

const altBoundary = "straywatch-alt-boundary"

func buildMessage(from string, e Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)

	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(e.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(e.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", altBoundary)
	return []byte(b.String())
}
