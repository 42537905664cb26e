// Package config builds the immutable runtime configuration of the front desk
// backend. A Config is assembled once at start-up and passed by value into
// every constructor; nothing in internal/ reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// devJWTSecret signs tokens when running with --dev and no secret configured.
const devJWTSecret = "frontdesk-dev-secret-change-me"

// Config is the complete runtime configuration.
type Config struct {
	Dev       bool
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Mail      MailConfig
	SMS       SMSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	StaticDir       string // optional directory overriding the embedded pages
	MaxBodySize     int64  // bytes
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// AuthConfig controls tokens, one-time codes and password hashing.
type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	OTPTTL        time.Duration
	ResetGrantTTL time.Duration
	BcryptCost    int
}

// MailConfig holds the SMTP relay settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Enabled reports whether outbound email can be sent over SMTP.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.Username != ""
}

// Sender returns the address used in the From header.
func (m MailConfig) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.Username
}

// SMSConfig holds the HTTP SMS gateway settings.
type SMSConfig struct {
	APIURL  string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// Enabled reports whether the SMS gateway is configured.
func (s SMSConfig) Enabled() bool {
	return s.APIURL != "" && s.APIKey != ""
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	Enabled       bool
	AuthPerMinute int
	RedisAddr     string
	RedisPassword string
	OTPPerWindow  int
	OTPWindow     time.Duration
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// Default returns a Config pre-filled with production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			MaxBodySize:     1 << 20,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "frontdesk.db",
			MaxOpenConns: 10,
		},
		Auth: AuthConfig{
			TokenTTL:      time.Hour,
			OTPTTL:        5 * time.Minute,
			ResetGrantTTL: 10 * time.Minute,
			BcryptCost:    10,
		},
		Mail: MailConfig{
			Host:     "smtp.gmail.com",
			Port:     587,
			FromName: "OAK Dental Clinic",
		},
		SMS: SMSConfig{
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			AuthPerMinute: 10,
			OTPPerWindow:  3,
			OTPWindow:     15 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// InferDriver guesses the database driver from a DSN when none is set.
// URL-style postgres DSNs select postgres, mysql:// selects mysql and
// everything else is treated as a SQLite file path.
func InferDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(lower, "mysql://"):
		return DriverMySQL
	default:
		return DriverSQLite
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported (sqlite, postgres, mysql)", c.Database.Driver))
	}
	if c.Database.Driver != DriverSQLite && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required for "+c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required (set OAK_AUTH_JWT_SECRET or JWT_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.OTPTTL <= 0 || c.Auth.ResetGrantTTL <= 0 {
		errs = append(errs, errors.New("auth token, otp and reset grant lifetimes must be positive"))
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d must be between 10 and 31", c.Auth.BcryptCost))
	}
	if c.RateLimit.Enabled && c.RateLimit.AuthPerMinute <= 0 {
		errs = append(errs, errors.New("rate_limit.auth_per_minute must be positive"))
	}
	if c.RateLimit.RedisAddr != "" && (c.RateLimit.OTPPerWindow <= 0 || c.RateLimit.OTPWindow < time.Millisecond) {
		errs = append(errs, errors.New("rate_limit.otp_per_window must be positive and rate_limit.otp_window at least 1ms"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy of c with secrets masked, suitable for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	c.Mail.Password = mask(c.Mail.Password)
	c.SMS.APIKey = mask(c.SMS.APIKey)
	c.RateLimit.RedisPassword = mask(c.RateLimit.RedisPassword)
	if c.Database.Driver != DriverSQLite && c.Database.DSN != "" {
		c.Database.DSN = maskDSNPassword(c.Database.DSN)
	}
	c.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return c
}

// maskDSNPassword hides the password component of a user:pass@host DSN.
func maskDSNPassword(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	head := dsn[:at]
	start := strings.Index(head, "://")
	if start >= 0 {
		start += 3
	} else {
		start = 0
	}
	colon := strings.Index(head[start:], ":")
	if colon < 0 {
		return dsn
	}
	return head[:start+colon+1] + "********" + dsn[at:]
}
