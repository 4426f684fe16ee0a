// Package kv defines the minimal key-value store contract the schema layer is built on.
//
// A Store offers point lookups by key, puts, deletes and filtered scans over the
// records of one kind. It enforces no schema, uniqueness or referential integrity;
// those guarantees live in package store.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned by Get when no record exists for the key.
	ErrNotFound = errors.New("kv: record not found")

	// ErrIncompleteKey is returned when an operation needs a persisted key.
	ErrIncompleteKey = errors.New("kv: incomplete key")

	// ErrUnsupportedValue is returned when a property holds a non-native value.
	ErrUnsupportedValue = errors.New("kv: unsupported value type")
)

// Key identifies a record. An ID of zero marks an incomplete key (never persisted).
type Key struct {
	Kind string
	ID   int64
}

// Complete reports whether the key has a store-assigned identity.
func (k Key) Complete() bool {
	return k.ID > 0
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Kind, k.ID)
}

// Property is a stored value and whether scans may filter on it.
type Property struct {
	Value   any
	Indexed bool
}

// Record is one stored entry.
type Record struct {
	Key        Key
	Properties map[string]Property
}

// NewRecord returns an empty record with an incomplete key.
func NewRecord(kind string) *Record {
	return &Record{
		Key:        Key{Kind: kind},
		Properties: make(map[string]Property),
	}
}

// Get returns the value of the named property, or nil when absent.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	return r.Properties[name].Value
}

// Has reports whether the named property is present.
func (r *Record) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Properties[name]
	return ok
}

// Set stores a property value.
func (r *Record) Set(name string, value any, indexed bool) {
	r.Properties[name] = Property{Value: value, Indexed: indexed}
}

// Names returns the property names in sorted order.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.Properties))
	for name := range r.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Key:        r.Key,
		Properties: make(map[string]Property, len(r.Properties)),
	}
	for name, p := range r.Properties {
		c.Properties[name] = Property{Value: cloneValue(p.Value), Indexed: p.Indexed}
	}
	return c
}

// Validate checks that every property holds a native value.
func (r *Record) Validate() error {
	for name, p := range r.Properties {
		if !IsNative(p.Value) {
			return fmt.Errorf("property %q (%T): %w", name, p.Value, ErrUnsupportedValue)
		}
	}
	return nil
}

// Scan describes a filtered scan over one kind.
type Scan struct {
	// Predicates are combined with AND. Only indexed properties match.
	Predicates []Predicate

	// Limit is the maximum number of records to return (0 = no limit).
	Limit int
}

// Store is the contract the schema layer requires from a backend.
type Store interface {
	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key Key) (*Record, error)

	// Put writes the record. A record with an incomplete key is assigned a new
	// identity, which is returned; the identity is stable thereafter.
	Put(ctx context.Context, rec *Record) (Key, error)

	// Delete removes the records for keys. Absent keys are ignored.
	Delete(ctx context.Context, keys ...Key) error

	// Scan returns a lazy, forward-only cursor over the records of kind
	// matching every predicate.
	Scan(ctx context.Context, kind string, scan Scan) Cursor
}

// Cursor iterates scan results.
//
//	cur := s.Scan(ctx, "User", kv.Scan{})
//	defer cur.Close()
//	for cur.Next() {
//	    rec := cur.Record()
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor interface {
	Next() bool
	Record() *Record
	Err() error
	Close() error
}

// Collect drains a cursor into a slice and closes it.
func Collect(cur Cursor) ([]*Record, error) {
	defer cur.Close()
	var recs []*Record
	for cur.Next() {
		recs = append(recs, cur.Record())
	}
	return recs, cur.Err()
}
