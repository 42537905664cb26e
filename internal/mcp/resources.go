package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const appointmentsURI = "frontdesk://appointments/"

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// frontdesk://messages: every contact message
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"frontdesk://messages",
			"Contact Messages",
			mcp.WithResourceDescription("All contact form messages, newest first."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleMessagesResource,
	)

	// -------------------------------------------------------------------
	// frontdesk://appointments/{status}: appointments by status (template)
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			appointmentsURI+"{status}",
			"Appointments by Status",
			mcp.WithTemplateDescription(
				"Appointment requests with the given status (pending, accepted or cancelled), newest first.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleAppointmentsResource,
	)
}

func (s *MCPServer) handleMessagesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	msgs, err := s.desk.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return jsonResource(request.Params.URI, msgs)
}

func (s *MCPServer) handleAppointmentsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	status := strings.TrimPrefix(uri, appointmentsURI)
	if status == "" || status == uri {
		return nil, fmt.Errorf("invalid appointments URI %q: expected %s{status}", uri, appointmentsURI)
	}

	appts, err := s.desk.ListAppointments(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s appointments: %w", status, err)
	}
	return jsonResource(uri, appts)
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
