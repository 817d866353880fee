// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load a .env file via godotenv (non-fatal if absent).
//  2. Use envconfig to process struct tags and populate the Config struct.
//  3. Validate the struct using go-playground/validator.
//  4. Verify the reference timezone resolves to a real IANA location.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads configuration from the environment and validates it. It returns
// an error describing the first problem found; the caller should treat any
// error as fatal.
func Load() (*Config, error) {
	// Seed the environment from .env for local development. A missing file
	// is the normal case in deployed environments.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Scheduler.ReferenceTimezone); err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", cfg.Scheduler.ReferenceTimezone, err)
	}

	if cfg.Scheduler.TickInterval <= 0 {
		return nil, fmt.Errorf("SCHEDULER_TICK_INTERVAL must be positive, got %s", cfg.Scheduler.TickInterval)
	}

	return &cfg, nil
}

// Location resolves the configured reference timezone. Every date
// comparison in the scheduler hangs off this location, so an unresolvable
// timezone is fatal rather than something to paper over with UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", c.Scheduler.ReferenceTimezone, err)
	}
	return loc, nil
}
