package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/oakdental/frontdesk/internal/config"
	"github.com/oakdental/frontdesk/internal/notify"
	"github.com/oakdental/frontdesk/internal/ratelimit"
	"github.com/oakdental/frontdesk/internal/service"
	"github.com/oakdental/frontdesk/internal/store"
)

// newLogger builds the process logger from the log section. Output goes to w,
// which is stderr everywhere except MCP stdio mode where stdout is taken.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app bundles the services shared by the subcommands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	tokens  *service.TokenVerifier
	auth    *service.AuthService
	desk    *service.FrontDesk
	limiter *ratelimit.FixedWindowLimiter
}

// openApp loads the configuration, opens (and migrates) the database and
// wires the delivery channels. Close releases everything it opened.
func openApp(logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, logOut)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database ready", "driver", cfg.Database.Driver)

	var mailer notify.Mailer = notify.LogMailer{Logger: logger}
	if cfg.Mail.Enabled() {
		mailer = notify.NewSMTPMailer(cfg.Mail)
	} else {
		logger.Warn("mail not configured, outgoing email will only be logged")
	}

	var sms notify.SMSSender = notify.LogSMS{Logger: logger}
	if cfg.SMS.Enabled() {
		sms = notify.NewHTTPSMS(cfg.SMS)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		tokens: service.NewTokenVerifier(cfg.Auth.JWTSecret),
	}
	a.auth = service.NewAuthService(st, a.tokens, mailer, sms, cfg.Auth, logger)
	a.desk = service.NewFrontDesk(st, mailer, sms, logger)

	if cfg.RateLimit.Enabled && cfg.RateLimit.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RateLimit.RedisAddr,
			cfg.RateLimit.RedisPassword,
			ratelimit.DefaultPrefix,
			cfg.RateLimit.OTPPerWindow,
			cfg.RateLimit.OTPWindow,
		)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init otp rate limiter: %w", err)
		}
		a.limiter = limiter
		a.auth.WithLimiter(limiter)
	}

	return a, nil
}

func (a *app) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	a.store.Close()
}

// readPassword prompts on the terminal, twice when confirm is set.
func readPassword(prompt string, confirm bool) (string, error) {
	fmt.Print(prompt)
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()
	if !confirm {
		return string(pwBytes), nil
	}

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

// cmdCtx returns a background context for CLI operations.
func cmdCtx() context.Context {
	return context.Background()
}
