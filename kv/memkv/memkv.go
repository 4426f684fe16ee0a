// Package memkv provides an in-memory kv.Store.
package memkv

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jacentio/arbor/kv"
)

// Store keeps records in process memory. Records are copied on the way in and
// out so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[int64]*kv.Record
	nextID  map[string]int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		records: make(map[string]map[int64]*kv.Record),
		nextID:  make(map[string]int64),
	}
}

var _ kv.Store = (*Store)(nil)

// Get returns a copy of the record for key.
func (s *Store) Get(_ context.Context, key kv.Key) (*kv.Record, error) {
	if !key.Complete() {
		return nil, kv.ErrIncompleteKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key.Kind][key.ID]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return rec.Clone(), nil
}

// Put stores a copy of rec, assigning the next sequential id to incomplete keys.
func (s *Store) Put(_ context.Context, rec *kv.Record) (kv.Key, error) {
	if err := rec.Validate(); err != nil {
		return kv.Key{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key
	if !key.Complete() {
		s.nextID[key.Kind]++
		key.ID = s.nextID[key.Kind]
	} else if key.ID > s.nextID[key.Kind] {
		s.nextID[key.Kind] = key.ID
	}

	stored := rec.Clone()
	stored.Key = key
	byID := s.records[key.Kind]
	if byID == nil {
		byID = make(map[int64]*kv.Record)
		s.records[key.Kind] = byID
	}
	byID[key.ID] = stored
	return key, nil
}

// Delete removes the records for keys.
func (s *Store) Delete(_ context.Context, keys ...kv.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if !key.Complete() {
			return fmt.Errorf("delete %s: %w", key, kv.ErrIncompleteKey)
		}
		delete(s.records[key.Kind], key.ID)
	}
	return nil
}

// Scan returns the matching records ordered by id. Matches are captured when
// Scan is called, so deleting while iterating is safe.
func (s *Store) Scan(ctx context.Context, kind string, scan kv.Scan) kv.Cursor {
	if err := ctx.Err(); err != nil {
		return kv.ErrCursor(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.records[kind]
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*kv.Record
	for _, id := range ids {
		rec := byID[id]
		if !kv.MatchesAll(rec, scan.Predicates) {
			continue
		}
		out = append(out, rec.Clone())
		if scan.Limit > 0 && len(out) >= scan.Limit {
			break
		}
	}
	return kv.NewSliceCursor(out)
}

// Len returns the number of records stored for kind.
func (s *Store) Len(kind string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[kind])
}
