// Package config stores application settings as records of a "config" entity.
//
// Each setting is a (name, value) pair where name is the natural key and value
// is any JSON-encodable value. Lookups are cached per name, including misses,
// until the name is written through Set or evicted with Invalidate.
package config

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jacentio/arbor/store"
)

// Well-known setting names.
const (
	BaseURL        = "base-url"
	Env            = "env"
	AllowedOrigins = "allowed-origins"
)

// EntityName is the kind config records are stored under.
const EntityName = "config"

// Options holds configuration for Config.
type Options struct {
	// CacheSize is the number of names whose lookups are cached.
	// Default: 128
	CacheSize int

	// Logger receives cache and write logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the options used when no overrides are needed.
func DefaultOptions() Options {
	return Options{CacheSize: 128, Logger: slog.Default()}
}

// validate fills unset values with their defaults.
func (o *Options) validate() {
	if o.CacheSize < 1 {
		o.CacheSize = 128
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Entry is one stored setting.
type Entry struct{ *store.Instance }

// cached is a lookup result; found is false for names with no record.
type cached struct {
	value any
	found bool
}

// Config is the settings repository.
type Config struct {
	*store.Repo[Entry]

	// NameField is the setting name: unique, read-only and the natural key.
	NameField *store.Field
	// ValueField is the JSON setting value; it is not indexed.
	ValueField *store.Field

	cache  *lru.Cache[string, cached]
	logger *slog.Logger
}

// New defines the config entity on es. It must be called before es.Load.
func New(es *store.Entities, opts Options) (*Config, error) {
	opts.validate()
	cache, err := lru.New[string, cached](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("config cache: %w", err)
	}

	repo := store.Define(es, EntityName, func(i *store.Instance) Entry { return Entry{i} })
	c := &Config{
		Repo:   repo,
		cache:  cache,
		logger: opts.Logger,
	}
	c.NameField = repo.AddField("name", store.String,
		store.Indexed(), store.Mandatory(), store.Unique(), store.ReadOnly())
	c.ValueField = repo.AddField("value", store.JSON, store.Mandatory())
	repo.SetNaturalKey(c.NameField)
	return c, nil
}

// Name returns the setting name of e.
func (e Entry) Name() string {
	return store.Get[string](e, e.Entity().NaturalKey()[0])
}

// Value returns the value stored under name, or nil when there is none.
func (c *Config) Value(ctx context.Context, name string) (any, error) {
	if hit, ok := c.cache.Get(name); ok {
		return hit.value, nil
	}
	entry, found, err := c.FindSingle(ctx, c.NameField.Eq(name))
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", name, err)
	}
	var v any
	if found {
		v = entry.Get(c.ValueField)
	}
	c.cache.Add(name, cached{value: v, found: found})
	c.logger.Debug("config cached", "name", name, "found", found)
	return v, nil
}

// GetString returns the string stored under name. It fails with
// store.ErrIllegalUsage when the setting is absent.
func (c *Config) GetString(ctx context.Context, name string) (string, error) {
	v, err := c.Value(ctx, name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("%w: config property %q has not been set", store.ErrIllegalUsage, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: config property %q is %T, not a string", store.ErrTypeMismatch, name, v)
	}
	return s, nil
}

// BaseURL returns the base-url setting.
func (c *Config) BaseURL(ctx context.Context) (string, error) {
	return c.GetString(ctx, BaseURL)
}

// Environment returns the env setting.
func (c *Config) Environment(ctx context.Context) (string, error) {
	return c.GetString(ctx, Env)
}

// AllowedOrigins returns the allowed-origins setting, or an empty list when
// it is absent.
func (c *Config) AllowedOrigins(ctx context.Context) ([]string, error) {
	v, err := c.Value(ctx, AllowedOrigins)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		origins := make([]string, 0, len(list))
		for _, o := range list {
			s, ok := o.(string)
			if !ok {
				return nil, fmt.Errorf("%w: allowed origin %v is %T, not a string", store.ErrTypeMismatch, o, o)
			}
			origins = append(origins, s)
		}
		return origins, nil
	}
	return nil, fmt.Errorf("%w: config property %q is %T, not a list", store.ErrTypeMismatch, AllowedOrigins, v)
}

// Set stores value under name, inserting or updating the record by its
// natural key. It reports whether anything was written.
func (c *Config) Set(ctx context.Context, name string, value any) (bool, error) {
	entry := c.New()
	if err := entry.Set(c.NameField, name); err != nil {
		return false, err
	}
	if err := entry.Set(c.ValueField, value); err != nil {
		return false, err
	}
	changed, err := c.Save(ctx, entry)
	c.cache.Remove(name)
	if err != nil {
		return false, fmt.Errorf("set config %q: %w", name, err)
	}
	c.logger.Info("config set", "name", name, "changed", changed)
	return changed, nil
}

// Unset deletes the setting stored under name. It reports whether a record
// existed.
func (c *Config) Unset(ctx context.Context, name string) (bool, error) {
	defer c.cache.Remove(name)
	entry, found, err := c.FindSingle(ctx, c.NameField.Eq(name))
	if err != nil || !found {
		return false, err
	}
	if err := c.Delete(ctx, entry); err != nil {
		return false, fmt.Errorf("unset config %q: %w", name, err)
	}
	return true, nil
}

// All returns every stored setting by name.
func (c *Config) All(ctx context.Context) (map[string]any, error) {
	res, err := c.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := res.All()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[store.Get[string](e, c.NameField)] = e.Get(c.ValueField)
	}
	return out, nil
}

// Invalidate evicts the cached lookup for name.
func (c *Config) Invalidate(name string) {
	if c.cache.Remove(name) {
		c.logger.Debug("config evicted", "name", name)
	}
}

// Purge evicts every cached lookup.
func (c *Config) Purge() {
	c.cache.Purge()
}
