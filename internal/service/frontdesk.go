package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oakdental/frontdesk/internal/model"
	"github.com/oakdental/frontdesk/internal/notify"
	"github.com/oakdental/frontdesk/internal/store"
)

// Appointment actions.
const (
	ActionAccept = "accept"
	ActionCancel = "cancel"
)

// FrontDesk takes submissions from the public site and lets admins moderate
// them.
type FrontDesk struct {
	store  *store.Store
	mailer notify.Mailer
	sms    notify.SMSSender
	logger *slog.Logger
}

// NewFrontDesk wires the submission service.
func NewFrontDesk(st *store.Store, mailer notify.Mailer, sms notify.SMSSender, logger *slog.Logger) *FrontDesk {
	return &FrontDesk{store: st, mailer: mailer, sms: sms, logger: logger}
}

// ---------------------------------------------------------------------------
// Public intake
// ---------------------------------------------------------------------------

// AppointmentInput is an appointment request from the public site.
type AppointmentInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Message string `json:"message"`
}

// SubmitAppointment stores a pending appointment request.
func (f *FrontDesk) SubmitAppointment(ctx context.Context, in AppointmentInput) (*model.Appointment, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Date = strings.TrimSpace(in.Date)
	if err := check(in, "All required fields must be provided"); err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Date:    in.Date,
		Message: strings.TrimSpace(in.Message),
		Status:  model.StatusPending,
	}
	if err := f.store.CreateAppointment(ctx, appt); err != nil {
		return nil, internalError("Failed to submit appointment", err)
	}
	f.logger.Info("appointment submitted", "appointment_id", appt.ID)
	return appt, nil
}

// MessageInput is a contact form submission.
type MessageInput struct {
	Name    string `json:"name"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// SubmitMessage stores a contact message. A blank name is saved as
// "Anonymous".
func (f *FrontDesk) SubmitMessage(ctx context.Context, in MessageInput) (*model.Message, error) {
	in.Email = normalizeEmail(in.Email)
	in.Message = strings.TrimSpace(in.Message)
	if err := check(in, "Email and message are required"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Anonymous"
	}
	msg := &model.Message{FullName: name, Email: in.Email, Message: in.Message}
	if err := f.store.CreateMessage(ctx, msg); err != nil {
		return nil, internalError("Failed to submit message", err)
	}
	return msg, nil
}

// Subscribe adds email to the newsletter list. Subscribing twice is not an
// error; already reports whether the email was on the list before.
func (f *FrontDesk) Subscribe(ctx context.Context, email string) (already bool, err error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, validationError("Email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return false, validationError("Invalid email address")
	}
	created, err := f.store.AddSubscriber(ctx, email)
	if err != nil {
		return false, internalError("Failed to submit subscription", err)
	}
	return !created, nil
}

// ---------------------------------------------------------------------------
// Moderation
// ---------------------------------------------------------------------------

// ActionInput accepts or cancels an appointment.
type ActionInput struct {
	ID     int64
	Action string
	Reason string
}

// ActionResult is the outcome of ActOnAppointment.
type ActionResult struct {
	Appointment *model.Appointment
	SMSSent     bool
}

// ActOnAppointment accepts or cancels an appointment and notifies the
// submitter. Cancelling requires a reason; accepting clears any old one.
func (f *FrontDesk) ActOnAppointment(ctx context.Context, in ActionInput) (*ActionResult, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	reason := strings.TrimSpace(in.Reason)
	if in.ID == 0 || action == "" || (action == ActionCancel && reason == "") {
		return nil, validationError("ID, action, and reason (for cancel) are required")
	}

	var status string
	var reasonPtr *string
	switch action {
	case ActionAccept:
		status = model.StatusAccepted
	case ActionCancel:
		status = model.StatusCancelled
		reasonPtr = &reason
	default:
		return nil, validationError("Invalid action")
	}

	appt, err := f.store.GetAppointment(ctx, in.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Appointment not found")
		}
		return nil, internalError("Failed to process appointment action", err)
	}

	if err := f.store.UpdateAppointmentStatus(ctx, appt.ID, status, reasonPtr); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Appointment not found")
		}
		return nil, internalError("Failed to process appointment action", err)
	}
	appt.Status = status
	appt.Reason = reasonPtr

	email, err := notify.AppointmentEmail(*appt)
	if err != nil {
		return nil, internalError("Failed to process appointment action", err)
	}
	if err := f.mailer.Send(ctx, email); err != nil {
		return nil, internalError("Failed to process appointment action", err)
	}

	result := &ActionResult{Appointment: appt}
	if appt.Phone != "" {
		if err := f.sms.SendSMS(ctx, appt.Phone, notify.AppointmentText(*appt)); err != nil {
			f.logger.Warn("appointment sms not sent", "appointment_id", appt.ID, "error", err)
		} else {
			result.SMSSent = true
		}
	}

	f.logger.Info("appointment updated", "appointment_id", appt.ID, "status", status)
	return result, nil
}

// ReplyToMessage emails a Markdown reply to the author of a contact message.
// The reply itself is not stored.
func (f *FrontDesk) ReplyToMessage(ctx context.Context, id int64, reply string) error {
	if id == 0 || strings.TrimSpace(reply) == "" {
		return validationError("ID and reply are required")
	}

	msg, err := f.store.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Message not found")
		}
		return internalError("Failed to send reply", err)
	}

	email, err := notify.ReplyEmail(*msg, reply)
	if err != nil {
		return internalError("Failed to send reply", err)
	}
	if err := f.mailer.Send(ctx, email); err != nil {
		return internalError("Failed to send reply", err)
	}
	return nil
}

// DeleteAppointment removes an appointment permanently.
func (f *FrontDesk) DeleteAppointment(ctx context.Context, id int64) error {
	if id == 0 {
		return validationError("ID is required")
	}
	if err := f.store.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Appointment not found")
		}
		return internalError("Failed to delete appointment", err)
	}
	return nil
}

// DeleteMessage removes a contact message permanently.
func (f *FrontDesk) DeleteMessage(ctx context.Context, id int64) error {
	if id == 0 {
		return validationError("ID is required")
	}
	if err := f.store.DeleteMessage(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Message not found")
		}
		return internalError("Failed to delete message", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// ListAppointments returns appointments newest first, optionally filtered by
// status.
func (f *FrontDesk) ListAppointments(ctx context.Context, status string) ([]model.Appointment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", model.StatusPending, model.StatusAccepted, model.StatusCancelled:
	default:
		return nil, validationError("Invalid status filter")
	}
	appts, err := f.store.ListAppointments(ctx, status)
	if err != nil {
		return nil, internalError("Failed to fetch appointments", err)
	}
	return appts, nil
}

// ListMessages returns contact messages newest first.
func (f *FrontDesk) ListMessages(ctx context.Context) ([]model.Message, error) {
	msgs, err := f.store.ListMessages(ctx)
	if err != nil {
		return nil, internalError("Failed to fetch messages", err)
	}
	return msgs, nil
}

// ListSubscribers returns newsletter subscribers newest first.
func (f *FrontDesk) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	subs, err := f.store.ListSubscribers(ctx)
	if err != nil {
		return nil, internalError("Failed to fetch subscribers", err)
	}
	return subs, nil
}
