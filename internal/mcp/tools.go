package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/oakdental/frontdesk/internal/model"
	"github.com/oakdental/frontdesk/internal/service"
)

const defaultListLimit = 50

// registerTools registers all front desk tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Listing tools -----

	srv.AddTool(
		mcp.NewTool("frontdesk_list_appointments",
			mcp.WithDescription(
				"List appointment requests, newest first. Each appointment has an id, "+
					"the patient's name, email and phone, the requested date, an optional "+
					"message, and a status of pending, accepted or cancelled.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("status",
				mcp.Description("Only return appointments with this status"),
				mcp.Enum(model.StatusPending, model.StatusAccepted, model.StatusCancelled),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of appointments to return (default 50, max 500)"),
			),
		),
		s.handleListAppointments,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_list_messages",
			mcp.WithDescription("List contact form messages, newest first."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages to return (default 50, max 500)"),
			),
		),
		s.handleListMessages,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_list_subscribers",
			mcp.WithDescription("List newsletter subscribers, newest first."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListSubscribers,
	)

	// ----- Moderation tools -----

	srv.AddTool(
		mcp.NewTool("frontdesk_appointment_action",
			mcp.WithDescription(
				"Accept or cancel an appointment. The patient is emailed the outcome and, "+
					"when possible, sent a text message. Cancelling requires a reason, which "+
					"is included in the notification.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Appointment id"),
			),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description("What to do with the appointment"),
				mcp.Enum(service.ActionAccept, service.ActionCancel),
			),
			mcp.WithString("reason",
				mcp.Description("Why the appointment is cancelled (required for cancel)"),
			),
		),
		s.handleAppointmentAction,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_reply_message",
			mcp.WithDescription(
				"Email a reply to the author of a contact message. The reply may use "+
					"Markdown and is quoted together with the original message. Replies are not stored.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Message id"),
			),
			mcp.WithString("reply",
				mcp.Required(),
				mcp.Description("Reply text (Markdown)"),
			),
		),
		s.handleReplyMessage,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_delete_appointment",
			mcp.WithDescription("Permanently delete an appointment."),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Appointment id"),
			),
		),
		s.handleDeleteAppointment,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_delete_message",
			mcp.WithDescription("Permanently delete a contact message."),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Message id"),
			),
		),
		s.handleDeleteMessage,
	)
}

// --------------------------------------------------------------------------
// Tool handlers
// --------------------------------------------------------------------------

func (s *MCPServer) handleListAppointments(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	status := optionalString(request, "status")
	limit := clamp(optionalInt(request, "limit", defaultListLimit), 1, 500)

	appts, err := s.desk.ListAppointments(ctx, status)
	if err != nil {
		return s.serviceError("frontdesk_list_appointments", err)
	}
	if len(appts) > limit {
		appts = appts[:limit]
	}
	return successJSON(appts)
}

func (s *MCPServer) handleListMessages(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	limit := clamp(optionalInt(request, "limit", defaultListLimit), 1, 500)

	msgs, err := s.desk.ListMessages(ctx)
	if err != nil {
		return s.serviceError("frontdesk_list_messages", err)
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return successJSON(msgs)
}

func (s *MCPServer) handleListSubscribers(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	subs, err := s.desk.ListSubscribers(ctx)
	if err != nil {
		return s.serviceError("frontdesk_list_subscribers", err)
	}
	return successJSON(subs)
}

func (s *MCPServer) handleAppointmentAction(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	action, err := requireString(request, "action")
	if err != nil {
		return toolError("%v. Use %q or %q.", err, service.ActionAccept, service.ActionCancel)
	}

	res, err := s.desk.ActOnAppointment(ctx, service.ActionInput{
		ID:     id,
		Action: action,
		Reason: optionalString(request, "reason"),
	})
	if err != nil {
		return s.serviceError("frontdesk_appointment_action", err)
	}

	return successJSON(struct {
		Appointment *model.Appointment `json:"appointment"`
		SMSSent     bool               `json:"sms_sent"`
	}{res.Appointment, res.SMSSent})
}

func (s *MCPServer) handleReplyMessage(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	reply, err := requireString(request, "reply")
	if err != nil {
		return toolError("%v", err)
	}

	if err := s.desk.ReplyToMessage(ctx, id, reply); err != nil {
		return s.serviceError("frontdesk_reply_message", err)
	}
	return successJSON(model.MessageResponse{Message: "Reply sent successfully"})
}

func (s *MCPServer) handleDeleteAppointment(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	if err := s.desk.DeleteAppointment(ctx, id); err != nil {
		return s.serviceError("frontdesk_delete_appointment", err)
	}
	return successJSON(model.MessageResponse{Message: "Appointment deleted successfully"})
}

func (s *MCPServer) handleDeleteMessage(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	if err := s.desk.DeleteMessage(ctx, id); err != nil {
		return s.serviceError("frontdesk_delete_message", err)
	}
	return successJSON(model.MessageResponse{Message: "Message deleted successfully"})
}
