// Package notify delivers outbound email and SMS for the front desk. Email is
// sent over SMTP with gomail; SMS goes to an HTTP gateway. Both have logging
// fallbacks for development, where no provider is configured.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrSMSNotConfigured is returned by the fallback SMS sender.
var ErrSMSNotConfigured = errors.New("sms service not configured")

// Email is a single outbound HTML message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMSSender sends text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// LogMailer writes email to the logger instead of delivering it.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(_ context.Context, email Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not configured, email not delivered",
		"to", email.To,
		"subject", email.Subject,
	)
	return nil
}

// LogSMS logs text messages and reports them as undelivered.
type LogSMS struct {
	Logger *slog.Logger
}

func (s LogSMS) SendSMS(_ context.Context, phone, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sms not configured, message not delivered", "phone", phone, "text", text)
	return ErrSMSNotConfigured
}

// Recorder keeps every email and SMS in memory instead of delivering them.
type Recorder struct {
	mu     sync.Mutex
	emails []Email
	sms    []SMS

	// MailErr and SMSErr, when set, are returned instead of recording.
	MailErr error
	SMSErr  error
}

// SMS is a recorded text message.
type SMS struct {
	Phone string
	Text  string
}

func (r *Recorder) Send(_ context.Context, email Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MailErr != nil {
		return r.MailErr
	}
	r.emails = append(r.emails, email)
	return nil
}

func (r *Recorder) SendSMS(_ context.Context, phone, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SMSErr != nil {
		return r.SMSErr
	}
	r.sms = append(r.sms, SMS{Phone: phone, Text: text})
	return nil
}

// Emails returns a copy of the recorded email.
func (r *Recorder) Emails() []Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Email(nil), r.emails...)
}

// Texts returns a copy of the recorded SMS.
func (r *Recorder) Texts() []SMS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SMS(nil), r.sms...)
}
