package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"soldi/internal/log"
)

// Sender delivers a plain-text email to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the settings for the SMTP sender.
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

// New returns an SMTP sender when addr and from are configured, and a
// log-only sender otherwise so alert and report runs still complete in
// environments without mail credentials.
func New(cfg SMTPConfig, logger *log.Logger) Sender {
	if cfg.Addr == "" || cfg.From == "" {
		logger.Info("SMTP not configured, emails will be logged only")
		return &logSender{logger: logger}
	}
	return &smtpSender{cfg: cfg, logger: logger}
}

type smtpSender struct {
	cfg    SMTPConfig
	logger *log.Logger
}

func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		host := s.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}

	if err := smtp.SendMail(s.cfg.Addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	s.logger.InfoContext(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

type logSender struct {
	logger *log.Logger
}

func (s *logSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "email suppressed, SMTP not configured",
		"to", to,
		"subject", subject,
		"body_length", len(body),
	)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
