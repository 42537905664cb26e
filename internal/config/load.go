package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read through viper,
// e.g. OAK_SERVER_PORT for server.port.
const EnvPrefix = "OAK"

// legacyEnv maps config keys to the variable names used by earlier
// deployments of the clinic site. They are consulted after the prefixed name.
var legacyEnv = map[string]string{
	"database.dsn":    "DATABASE_URL",
	"server.port":     "PORT",
	"auth.jwt_secret": "JWT_SECRET",
	"mail.username":   "EMAIL_USER",
	"mail.password":   "EMAIL_PASS",
	"sms.api_key":     "SMS_API_KEY",
	"sms.api_url":     "SMS_API_URL",
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Setup registers defaults, the environment prefix and the legacy variable
// aliases on v.
func Setup(v *viper.Viper) {
	d := Default()

	v.SetDefault("dev", d.Dev)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.otp_ttl", d.Auth.OTPTTL)
	v.SetDefault("auth.reset_grant_ttl", d.Auth.ResetGrantTTL)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("mail.host", d.Mail.Host)
	v.SetDefault("mail.port", d.Mail.Port)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.from_name", d.Mail.FromName)
	v.SetDefault("sms.api_url", "")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.sender", "")
	v.SetDefault("sms.timeout", d.SMS.Timeout)
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.auth_per_minute", d.RateLimit.AuthPerMinute)
	v.SetDefault("rate_limit.redis_addr", "")
	v.SetDefault("rate_limit.redis_password", "")
	v.SetDefault("rate_limit.otp_per_window", d.RateLimit.OTPPerWindow)
	v.SetDefault("rate_limit.otp_window", d.RateLimit.OTPWindow)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// FromViper builds a validated Config from the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Dev: v.GetBool("dev"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
			StaticDir:       v.GetString("server.static_dir"),
			MaxBodySize:     v.GetInt64("server.max_body_size"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("database.driver")),
			DSN:          v.GetString("database.dsn"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("auth.jwt_secret"),
			TokenTTL:      v.GetDuration("auth.token_ttl"),
			OTPTTL:        v.GetDuration("auth.otp_ttl"),
			ResetGrantTTL: v.GetDuration("auth.reset_grant_ttl"),
			BcryptCost:    v.GetInt("auth.bcrypt_cost"),
		},
		Mail: MailConfig{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
			FromName: v.GetString("mail.from_name"),
		},
		SMS: SMSConfig{
			APIURL:  v.GetString("sms.api_url"),
			APIKey:  v.GetString("sms.api_key"),
			Sender:  v.GetString("sms.sender"),
			Timeout: v.GetDuration("sms.timeout"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("rate_limit.enabled"),
			AuthPerMinute: v.GetInt("rate_limit.auth_per_minute"),
			RedisAddr:     v.GetString("rate_limit.redis_addr"),
			RedisPassword: v.GetString("rate_limit.redis_password"),
			OTPPerWindow:  v.GetInt("rate_limit.otp_per_window"),
			OTPWindow:     v.GetDuration("rate_limit.otp_window"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = InferDriver(cfg.Database.DSN)
	}
	if cfg.Database.Driver == DriverMySQL {
		cfg.Database.DSN = strings.TrimPrefix(cfg.Database.DSN, "mysql://")
	}
	if cfg.Auth.JWTSecret == "" && cfg.Dev {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if cfg.Dev && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
