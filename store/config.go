package store

import (
	"log/slog"
	"time"
)

// Config holds configuration for Entities.
type Config struct {
	// Logger receives debug logs for every store operation.
	// Default: slog.Default()
	Logger *slog.Logger

	// Clock supplies timeCreated and timeUpdated values.
	// Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns the configuration used when no overrides are needed.
func DefaultConfig() Config {
	return Config{
		Logger: slog.Default(),
		Clock:  time.Now,
	}
}

// validate fills unset values with their defaults.
func (c *Config) validate() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}
