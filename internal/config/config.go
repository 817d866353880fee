// Package config defines the global configuration structure for the DueWatch
// service. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, optionally seeded from a .env file for local development.
//
// Any missing required value or invalid format causes startup to fail
// immediately (fail fast).
package config

import (
	"time"

	"duewatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"duewatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server    ServerConfig
	Database  DatabaseConfig
	Email     EmailConfig
	Scheduler SchedulerConfig
	Security  SecurityConfig
}

// ServerConfig holds HTTP server configuration for the admin API.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// EmailConfig holds email delivery provider credentials and sender identity.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"billing@duewatch.io" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"DueWatch Billing"`

	// DispatchTimeout bounds a single reminder dispatch (all recipients of
	// one record). A timed-out dispatch is recorded as a failure and retried
	// on a later sweep.
	DispatchTimeout time.Duration `envconfig:"EMAIL_DISPATCH_TIMEOUT" default:"30s"`
}

// SchedulerConfig holds sweep and trigger-driver tuning.
type SchedulerConfig struct {
	// ReferenceTimezone is the single IANA zone in which "today" and the
	// trigger time-of-day are evaluated. Day-of-month comparisons in any
	// other zone risk off-by-one-day errors near midnight.
	ReferenceTimezone string `envconfig:"REFERENCE_TIMEZONE" default:"Asia/Bangkok" validate:"required"`

	// TickInterval is how often the trigger driver compares the clock
	// against the configured trigger time.
	TickInterval time.Duration `envconfig:"SCHEDULER_TICK_INTERVAL" default:"1m"`

	// SweepLockTTL is the lease duration of the sweep lock. A crashed
	// instance's lock expires after this long, letting another instance
	// take over.
	SweepLockTTL time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"15m"`
}

// SecurityConfig holds admin access and CORS settings.
type SecurityConfig struct {
	AdminAPIKey        SecretString `envconfig:"ADMIN_API_KEY" validate:"required"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}
