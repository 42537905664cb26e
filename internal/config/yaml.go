package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk shape of frontdesk.yaml. Durations are kept as
// strings so the file stays human-editable; viper parses them on load.
type fileDocument struct {
	Dev       bool         `yaml:"dev"`
	Server    serverYAML   `yaml:"server"`
	Database  databaseYAML `yaml:"database"`
	Auth      authYAML     `yaml:"auth"`
	Mail      mailYAML     `yaml:"mail"`
	SMS       smsYAML      `yaml:"sms"`
	RateLimit rateYAML     `yaml:"rate_limit"`
	Log       logYAML      `yaml:"log"`
}

type serverYAML struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
	StaticDir       string   `yaml:"static_dir"`
	MaxBodySize     int64    `yaml:"max_body_size"`
}

type databaseYAML struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type authYAML struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTL      string `yaml:"token_ttl"`
	OTPTTL        string `yaml:"otp_ttl"`
	ResetGrantTTL string `yaml:"reset_grant_ttl"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
}

type mailYAML struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

type smsYAML struct {
	APIURL  string `yaml:"api_url"`
	APIKey  string `yaml:"api_key"`
	Sender  string `yaml:"sender"`
	Timeout string `yaml:"timeout"`
}

type rateYAML struct {
	Enabled       bool   `yaml:"enabled"`
	AuthPerMinute int    `yaml:"auth_per_minute"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	OTPPerWindow  int    `yaml:"otp_per_window"`
	OTPWindow     string `yaml:"otp_window"`
}

type logYAML struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c Config) document() fileDocument {
	return fileDocument{
		Dev: c.Dev,
		Server: serverYAML{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ShutdownTimeout: c.Server.ShutdownTimeout.String(),
			CORSOrigins:     c.Server.CORSOrigins,
			StaticDir:       c.Server.StaticDir,
			MaxBodySize:     c.Server.MaxBodySize,
		},
		Database: databaseYAML{
			Driver:       c.Database.Driver,
			DSN:          c.Database.DSN,
			MaxOpenConns: c.Database.MaxOpenConns,
		},
		Auth: authYAML{
			JWTSecret:     c.Auth.JWTSecret,
			TokenTTL:      c.Auth.TokenTTL.String(),
			OTPTTL:        c.Auth.OTPTTL.String(),
			ResetGrantTTL: c.Auth.ResetGrantTTL.String(),
			BcryptCost:    c.Auth.BcryptCost,
		},
		Mail: mailYAML{
			Host:     c.Mail.Host,
			Port:     c.Mail.Port,
			Username: c.Mail.Username,
			Password: c.Mail.Password,
			From:     c.Mail.From,
			FromName: c.Mail.FromName,
		},
		SMS: smsYAML{
			APIURL:  c.SMS.APIURL,
			APIKey:  c.SMS.APIKey,
			Sender:  c.SMS.Sender,
			Timeout: c.SMS.Timeout.String(),
		},
		RateLimit: rateYAML{
			Enabled:       c.RateLimit.Enabled,
			AuthPerMinute: c.RateLimit.AuthPerMinute,
			RedisAddr:     c.RateLimit.RedisAddr,
			RedisPassword: c.RateLimit.RedisPassword,
			OTPPerWindow:  c.RateLimit.OTPPerWindow,
			OTPWindow:     c.RateLimit.OTPWindow.String(),
		},
		Log: logYAML{
			Level:  c.Log.Level,
			Format: c.Log.Format,
		},
	}
}

// YAML renders c in the frontdesk.yaml file format.
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.document())
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

const fileHeader = `# OAK Dental front desk configuration.
# Every key can be overridden with an OAK_ prefixed environment variable,
# e.g. OAK_SERVER_PORT or OAK_AUTH_JWT_SECRET.
`

// WriteDefaultFile writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefaultFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := Default().YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
