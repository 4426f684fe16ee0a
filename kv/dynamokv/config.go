package dynamokv

import "github.com/jacentio/arbor/internal/shard"

// Config holds configuration for the DynamoDB-backed Store.
type Config struct {
	// TablePrefix is prepended to a kind to form its table name.
	// Default: "arbor_"
	TablePrefix string

	// CounterTable is the name of the id counter table.
	// Default: "arbor_counters"
	CounterTable string

	// CounterShards is the number of counter items per kind. Every insert
	// increments one shard, so higher values raise insert throughput per kind.
	// Ids stay unique but are no longer dense or ordered by insertion.
	// Default: 1 (sequential ids)
	// Max: 256
	//
	// Per-shard limit: 1,000 writes/sec
	//
	// Examples:
	//   - CounterShards=1:  1,000 inserts/sec per kind
	//   - CounterShards=16: 16,000 inserts/sec per kind
	CounterShards int

	// ScanSegments is the number of parallel segments a scan is split into.
	// With more than one segment the scan reads every segment up front and
	// returns records ordered by id.
	// Default: 1 (lazy, page by page)
	// Max: 64
	ScanSegments int

	// ConsistentRead makes Get and Scan strongly consistent.
	// Default: true
	ConsistentRead bool
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		TablePrefix:    "arbor_",
		CounterTable:   "arbor_counters",
		CounterShards:  1,
		ScanSegments:   1,
		ConsistentRead: true,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "arbor_"
	}
	if c.CounterTable == "" {
		c.CounterTable = c.TablePrefix + "counters"
	}
	c.CounterShards = shard.Clamp(c.CounterShards)
	if c.ScanSegments < 1 {
		c.ScanSegments = 1
	}
	if c.ScanSegments > 64 {
		c.ScanSegments = 64
	}
}

// TableName returns the table holding records of kind.
func (c Config) TableName(kind string) string {
	return c.TablePrefix + kind
}
