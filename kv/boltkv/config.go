package boltkv

import "time"

// Config holds configuration for the bbolt-backed Store.
type Config struct {
	// Path is the database file. It is created if missing.
	// Default: "arbor.db"
	Path string

	// Timeout bounds how long Open waits for the file lock held by another
	// process. Zero waits forever.
	// Default: 1s
	Timeout time.Duration

	// BatchSize is the number of records a scan reads per read transaction.
	// Scans never hold a transaction open between batches, so callers may
	// write while iterating.
	// Default: 128
	// Max: 10000
	BatchSize int
}

// DefaultConfig returns a configuration for a database file in the working directory.
func DefaultConfig() Config {
	return Config{
		Path:      "arbor.db",
		Timeout:   time.Second,
		BatchSize: 128,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Path == "" {
		c.Path = "arbor.db"
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.BatchSize < 1 {
		c.BatchSize = 128
	}
	if c.BatchSize > 10000 {
		c.BatchSize = 10000
	}
}
