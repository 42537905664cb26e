package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/oakdental/frontdesk/internal/model"
	"github.com/oakdental/frontdesk/internal/service"
)

// FrontDeskHandler serves the public submission forms and the admin
// moderation endpoints.
type FrontDeskHandler struct {
	desk   *service.FrontDesk
	logger *slog.Logger
}

// NewFrontDeskHandler creates a new FrontDeskHandler.
func NewFrontDeskHandler(desk *service.FrontDesk, logger *slog.Logger) *FrontDeskHandler {
	return &FrontDeskHandler{desk: desk, logger: logger}
}

// ---------------------------------------------------------------------------
// Public forms
// ---------------------------------------------------------------------------

type appointmentResponse struct {
	Message     string             `json:"message"`
	Appointment *model.Appointment `json:"appointment"`
}

// SubmitAppointment stores an appointment request.
// POST /api/appointments
func (h *FrontDeskHandler) SubmitAppointment(w http.ResponseWriter, r *http.Request) {
	var req service.AppointmentInput
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	appt, err := h.desk.SubmitAppointment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse{Message: "Appointment submitted successfully", Appointment: appt})
}

// SubmitMessage stores a contact message.
// POST /api/messages
func (h *FrontDeskHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req service.MessageInput
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if _, err := h.desk.SubmitMessage(r.Context(), req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Message submitted successfully")
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type subscribeResponse struct {
	Message           string `json:"message"`
	AlreadySubscribed bool   `json:"already_subscribed"`
}

// Subscribe adds an email to the newsletter list. Repeated calls succeed.
// POST /api/subscribers
func (h *FrontDeskHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	already, err := h.desk.Subscribe(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subscribeResponse{Message: "Subscription successful", AlreadySubscribed: already})
}

// ---------------------------------------------------------------------------
// Admin listings
// ---------------------------------------------------------------------------

// ListAppointments returns appointments newest first.
// GET /api/admin/appointments?status=pending
func (h *FrontDeskHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.desk.ListAppointments(r.Context(), queryString(r, "status"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

// ListMessages returns contact messages newest first.
// GET /api/admin/messages
func (h *FrontDeskHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.desk.ListMessages(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ListSubscribers returns newsletter subscribers newest first.
// GET /api/admin/subscribers
func (h *FrontDeskHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.desk.ListSubscribers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// ---------------------------------------------------------------------------
// Admin moderation
// ---------------------------------------------------------------------------

type actionRequest struct {
	ID     model.ID `json:"id"`
	Action string   `json:"action"`
	Reason string   `json:"reason"`
}

type actionResponse struct {
	Message string `json:"message"`
	SMSSent bool   `json:"sms_sent"`
}

// AppointmentAction accepts or cancels an appointment.
// POST /api/admin/appointment/action
func (h *FrontDeskHandler) AppointmentAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	res, err := h.desk.ActOnAppointment(r.Context(), service.ActionInput{
		ID:     req.ID.Int64(),
		Action: req.Action,
		Reason: req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		Message: fmt.Sprintf("Appointment %s successfully", res.Appointment.Status),
		SMSSent: res.SMSSent,
	})
}

type replyRequest struct {
	ID    model.ID `json:"id"`
	Reply string   `json:"reply"`
}

// ReplyMessage emails a reply to the author of a contact message.
// POST /api/admin/message/reply
func (h *FrontDeskHandler) ReplyMessage(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := h.desk.ReplyToMessage(r.Context(), req.ID.Int64(), req.Reply); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Reply sent successfully")
}

type deleteRequest struct {
	ID model.ID `json:"id"`
}

// DeleteAppointment removes an appointment.
// DELETE /api/admin/appointment/delete
func (h *FrontDeskHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := h.desk.DeleteAppointment(r.Context(), req.ID.Int64()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Appointment deleted successfully")
}

// DeleteMessage removes a contact message.
// DELETE /api/admin/message/delete
func (h *FrontDeskHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := h.desk.DeleteMessage(r.Context(), req.ID.Int64()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message deleted successfully")
}
