package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/velostore/storefront-backend/pkg/config"
	"github.com/velostore/storefront-backend/pkg/logger"
)

// Mailer sends transactional mail. Implementations must never block the
// transaction that triggered them; callers invoke Send* after commit.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, toEmail string, orderID string, totalMinor int64, currency string) error
}

type smtpMailer struct {
	cfg  config.SMTPConfig
	logg *logger.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type noopMailer struct {
	logg *logger.Logger
}

// NewMailer returns an SMTP-backed mailer, or a logging no-op when SMTP is not
// configured so environments without mail credentials still work.
func NewMailer(cfg config.SMTPConfig, logg *logger.Logger) Mailer {
	if !cfg.Enabled() {
		return &noopMailer{logg: logg}
	}
	return &smtpMailer{cfg: cfg, logg: logg, send: smtp.SendMail}
}

func (m *smtpMailer) SendOrderConfirmation(ctx context.Context, toEmail string, orderID string, totalMinor int64, currency string) error {
	to := strings.TrimSpace(toEmail)
	if to == "" {
		return fmt.Errorf("recipient email required")
	}

	subject := fmt.Sprintf("Order %s confirmed", orderID)
	body := fmt.Sprintf(
		"Your payment of %d.%02d %s was received and order %s is now being processed.",
		totalMinor/100, totalMinor%100, currency, orderID,
	)
	msg := strings.Join([]string{
		"From: " + m.cfg.DefaultFrom,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.DefaultFrom, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send confirmation mail: %w", err)
	}
	return nil
}

func (m *noopMailer) SendOrderConfirmation(ctx context.Context, toEmail string, orderID string, totalMinor int64, currency string) error {
	if m.logg != nil {
		lctx := m.logg.WithFields(ctx, map[string]any{"order_id": orderID})
		m.logg.Info(lctx, "smtp not configured, skipping confirmation mail")
	}
	return nil
}
