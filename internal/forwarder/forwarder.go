package forwarder

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"inteliroute/internal/config"
)

// Forwarder sends a composed message to a resolved destination address.
// Fire-and-forget from the routing worker's perspective.
type Forwarder interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPForwarder implements Forwarder over plain SMTP.
type SMTPForwarder struct {
	cfg    config.SmtpConfig
	dialer *gomail.Dialer
}

func NewSMTPForwarder(cfg config.SmtpConfig) *SMTPForwarder {
	return &SMTPForwarder{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers one plain-text message. The context is consulted before
// dialing; gomail itself does not support cancellation mid-send.
func (f *SMTPForwarder) Send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if subject == "" {
		subject = "(no subject)"
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", f.cfg.FromAddress, f.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := f.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send to %s: %w", to, err)
	}
	return nil
}
