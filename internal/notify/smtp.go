package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/oakdental/frontdesk/internal/config"
)

// SMTPMailer delivers email through an SMTP relay.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

// NewSMTPMailer builds a mailer from the mail settings.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.Sender(),
		fromName: cfg.FromName,
	}
}

func (m *SMTPMailer) message(email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/html", email.HTML)
	return msg
}

// Send dials the relay and delivers email. gomail has no context support, so
// ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.message(email)); err != nil {
		return fmt.Errorf("send email to %s: %w", email.To, err)
	}
	return nil
}

// Verify dials and authenticates against the relay without sending anything.
func (m *SMTPMailer) Verify() error {
	sc, err := m.dialer.Dial()
	if err != nil {
		return fmt.Errorf("verify smtp %s:%d: %w", m.dialer.Host, m.dialer.Port, err)
	}
	return sc.Close()
}
