// Package mcp exposes the front desk moderation tasks as MCP tools so an
// assistant can triage appointments and messages on behalf of an admin.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/oakdental/frontdesk/internal/server/middleware"
	"github.com/oakdental/frontdesk/internal/service"
)

// HTTPPath is where the Streamable HTTP transport is mounted.
const HTTPPath = "/mcp"

// MCPServer wraps the mcp-go server with the front desk tools and resources.
type MCPServer struct {
	desk   *service.FrontDesk
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all tools and resources.
// The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(desk *service.FrontDesk, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		desk:   desk,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"OAK Dental Front Desk",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin/stdout, for clients that launch the
// binary as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// HTTPHandler returns the Streamable HTTP transport behind the admin
// session guard: a request needs the same bearer token as /api/admin.
func (s *MCPServer) HTTPHandler(tokens *service.TokenVerifier) http.Handler {
	return middleware.RequireAdmin(tokens)(server.NewStreamableHTTPServer(s.server))
}

// ListenAndServe serves the guarded HTTP transport on addr
// (e.g. "127.0.0.1:3001") until SIGINT or SIGTERM.
func (s *MCPServer) ListenAndServe(addr string, tokens *service.TokenVerifier) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Handle(HTTPPath, s.HTTPHandler(tokens))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP HTTP server starting", "addr", addr, "path", HTTPPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("mcp listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func destructiveAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
