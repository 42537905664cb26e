// Package server wires the front desk handlers into a chi router and runs
// the HTTP listener.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oakdental/frontdesk/internal/config"
	"github.com/oakdental/frontdesk/internal/handler"
	"github.com/oakdental/frontdesk/internal/server/middleware"
	"github.com/oakdental/frontdesk/internal/service"
	"github.com/oakdental/frontdesk/internal/store"
	"github.com/oakdental/frontdesk/internal/ui"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	StaticDir       string // serve pages from here instead of the embedded site
	MaxBodySize     int64  // bytes, 0 for no limit
	AuthPerMinute   int    // per-IP limit on login and OTP routes, 0 disables
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3000,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
		AuthPerMinute:   10,
		Version:         "dev",
	}
}

// FromConfig derives the server settings from the application config.
func FromConfig(cfg config.Config, version string) Config {
	c := Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		StaticDir:       cfg.Server.StaticDir,
		MaxBodySize:     cfg.Server.MaxBodySize,
		Version:         version,
	}
	if cfg.RateLimit.Enabled {
		c.AuthPerMinute = cfg.RateLimit.AuthPerMinute
	}
	return c
}

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Server is the top-level HTTP server. It owns the chi router and the
// services the handlers call into.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	auth       *service.AuthService
	desk       *service.FrontDesk
	tokens     *service.TokenVerifier
	checks     map[string]CheckFunc
	site       fs.FS
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, auth *service.AuthService, desk *service.FrontDesk, tokens *service.TokenVerifier, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		auth:   auth,
		desk:   desk,
		tokens: tokens,
		checks: map[string]CheckFunc{"database": st.Ping},
		logger: logger,
	}
	if cfg.StaticDir != "" {
		s.site = os.DirFS(cfg.StaticDir)
	} else {
		s.site = ui.FS()
	}
	s.setupRouter()
	return s
}

// AddCheck registers an extra readiness check reported by /readyz.
func (s *Server) AddCheck(name string, check CheckFunc) {
	s.checks[name] = check
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.Version).ServeSpec)

	authH := handler.NewAuthHandler(s.auth, s.logger)
	deskH := handler.NewFrontDeskHandler(s.desk, s.logger)

	authLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.AuthPerMinute > 0 {
		authLimit = middleware.RateLimit(s.cfg.AuthPerMinute)
	}

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		// Public site forms
		r.Post("/appointments", deskH.SubmitAppointment)
		r.Post("/messages", deskH.SubmitMessage)
		r.Post("/subscribers", deskH.Subscribe)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.With(authLimit).Post("/login", authH.Login)
			r.With(authLimit).Post("/send-otp", authH.SendOTP)
			r.With(authLimit).Post("/verify-otp", authH.VerifyOTP)
			r.Post("/reset-password", authH.ResetPassword)

			// Everything else needs a session token
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(s.tokens))

				r.Get("/profile", authH.Profile)

				r.Get("/appointments", deskH.ListAppointments)
				r.Get("/messages", deskH.ListMessages)
				r.Get("/subscribers", deskH.ListSubscribers)

				r.Post("/appointment/action", deskH.AppointmentAction)
				r.Post("/message/reply", deskH.ReplyMessage)
				r.Delete("/appointment/delete", deskH.DeleteAppointment)
				r.Delete("/message/delete", deskH.DeleteMessage)
			})
		})
	})

	// --- Site pages ---
	r.Get("/admin", s.pageHandler("admin.html"))
	r.Get("/admin/*", s.pageHandler("admin.html"))

	r.NotFound(s.handleFallback)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	s.router = r
}

// handleFallback answers every unmatched request. API paths and non-GET
// requests get a JSON 404; files present in the site are served as is and
// anything else falls back to index.html.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" ||
		(r.Method != http.MethodGet && r.Method != http.MethodHead) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name != "" && name != "index.html" {
		if info, err := fs.Stat(s.site, name); err == nil && !info.IsDir() {
			s.serveFile(w, r, name)
			return
		}
	}
	s.serveFile(w, r, "index.html")
}

func (s *Server) pageHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveFile(w, r, name)
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := s.site.Open(name)
	if err != nil {
		http.Error(w, "Page not available", http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, "Page not available", http.StatusInternalServerError)
		return
	}
	content, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Page not available", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, name, stat.ModTime(), content)
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the database and every
// registered dependency answer, or 503 if any of them fails.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "error"
			status = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests. The caller closes the store afterwards.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
