// Package config loads application configuration from the environment.
//
// A .env file in the working directory is read first (if present) so local
// development doesn't need exported variables. Real environment variables
// always win over .env values because godotenv never overwrites them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration of both binaries.
type Config struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	Port      int    `envconfig:"PORT" default:"3000"`
	PublicURL string `envconfig:"PUBLIC_URL"` // token issuer; derived from Port when empty
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DB    DatabaseConfig
	JWT   JWTConfig
	Mail  MailConfig
	Redis RedisConfig
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite | postgres
	Path   string `envconfig:"DB_PATH" default:"data/events.db"`
	URL    string `envconfig:"DATABASE_URL"`
}

// JWTConfig holds token signing settings. The secret is handed to the
// token service explicitly; nothing reads it from a global.
type JWTConfig struct {
	Secret     string        `envconfig:"JWT_SECRET" required:"true"`
	TTL        time.Duration `envconfig:"JWT_TTL" default:"1h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"10"`
}

// MailConfig holds SMTP settings. An empty Host means "log mail instead of sending".
type MailConfig struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	User     string `envconfig:"SMTP_USER"`
	Pass     string `envconfig:"SMTP_PASS"`
	From     string `envconfig:"MAIL_FROM" default:"noreply@localhost"`
	FromName string `envconfig:"MAIL_FROM_NAME" default:"VEM (Virtual Event Management)"`
}

// RedisConfig enables the asynchronous mail queue when Addr is set.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.URL == "" {
			return errors.New("config: DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DB.Driver)
	}
	return nil
}

// Development reports whether diagnostic detail may be exposed to clients.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// SlogLevel maps LOG_LEVEL onto a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != ""
}

// QueueEnabled reports whether mail should go through the Redis queue.
func (c *Config) QueueEnabled() bool {
	return c.Redis.Addr != ""
}
