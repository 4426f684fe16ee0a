// Package boltkv provides a kv.Store backed by a bbolt database file.
//
// Each kind is a top-level bucket keyed by the big-endian record id, so scans
// visit records in id order. Identities come from the bucket sequence. Records
// are stored as BSON documents.
package boltkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/jacentio/arbor/kv"
)

// Store is a kv.Store on a single bbolt file.
type Store struct {
	db     *bolt.DB
	config Config
}

var _ kv.Store = (*Store)(nil)

// Open opens or creates the database at config.Path.
func Open(config Config) (*Store, error) {
	config.validate()
	db, err := bolt.Open(config.Path, 0o600, &bolt.Options{Timeout: config.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Path, err)
	}
	return &Store{db: db, config: config}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Get returns the record for key.
func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Record, error) {
	if !key.Complete() {
		return nil, kv.ErrIncompleteKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *kv.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(key.Kind))
		if bucket == nil {
			return kv.ErrNotFound
		}
		data := bucket.Get(idKey(key.ID))
		if data == nil {
			return kv.ErrNotFound
		}
		var err error
		rec, err = decode(key, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Put writes rec, assigning the bucket's next sequence to incomplete keys.
func (s *Store) Put(ctx context.Context, rec *kv.Record) (kv.Key, error) {
	if err := rec.Validate(); err != nil {
		return kv.Key{}, err
	}
	if rec.Key.Kind == "" {
		return kv.Key{}, fmt.Errorf("put: empty kind: %w", kv.ErrIncompleteKey)
	}
	if err := ctx.Err(); err != nil {
		return kv.Key{}, err
	}
	key := rec.Key
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(key.Kind))
		if err != nil {
			return err
		}
		if !key.Complete() {
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			key.ID = int64(seq)
		} else if uint64(key.ID) > bucket.Sequence() {
			if err := bucket.SetSequence(uint64(key.ID)); err != nil {
				return err
			}
		}
		stored := *rec
		stored.Key = key
		data, err := encode(&stored)
		if err != nil {
			return err
		}
		return bucket.Put(idKey(key.ID), data)
	})
	if err != nil {
		return kv.Key{}, fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Delete removes the records for keys in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...kv.Key) error {
	for _, key := range keys {
		if !key.Complete() {
			return fmt.Errorf("delete %s: %w", key, kv.ErrIncompleteKey)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, key := range keys {
			bucket := tx.Bucket([]byte(key.Kind))
			if bucket == nil {
				continue
			}
			if err := bucket.Delete(idKey(key.ID)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// Scan returns a cursor reading matching records in id order, one batch per
// read transaction.
func (s *Store) Scan(ctx context.Context, kind string, scan kv.Scan) kv.Cursor {
	return &cursor{
		ctx:   ctx,
		store: s,
		kind:  kind,
		scan:  scan,
	}
}

type cursor struct {
	ctx   context.Context
	store *Store
	kind  string
	scan  kv.Scan

	after    []byte
	batch    []*kv.Record
	rec      *kv.Record
	returned int
	done     bool
	err      error
}

func (c *cursor) Next() bool {
	c.rec = nil
	if c.err != nil || (c.scan.Limit > 0 && c.returned >= c.scan.Limit) {
		return false
	}
	for len(c.batch) == 0 {
		if c.done {
			return false
		}
		if err := c.ctx.Err(); err != nil {
			c.err = err
			return false
		}
		if err := c.fill(); err != nil {
			c.err = err
			return false
		}
	}
	c.rec, c.batch = c.batch[0], c.batch[1:]
	c.returned++
	return true
}

// fill reads up to BatchSize matching records after the last key seen.
func (c *cursor) fill() error {
	return c.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(c.kind))
		if bucket == nil {
			c.done = true
			return nil
		}
		bc := bucket.Cursor()
		var k, v []byte
		if c.after == nil {
			k, v = bc.First()
		} else {
			k, v = bc.Seek(c.after)
			if k != nil && bytes.Equal(k, c.after) {
				k, v = bc.Next()
			}
		}
		read := 0
		for ; k != nil; k, v = bc.Next() {
			c.after = append(c.after[:0], k...)
			read++
			rec, err := decode(kv.Key{Kind: c.kind, ID: keyID(k)}, v)
			if err != nil {
				return err
			}
			if kv.MatchesAll(rec, c.scan.Predicates) {
				c.batch = append(c.batch, rec)
			}
			if read >= c.store.config.BatchSize {
				return nil
			}
		}
		c.done = true
		return nil
	})
}

func (c *cursor) Record() *kv.Record { return c.rec }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.done = true
	c.batch = nil
	return nil
}

// IsTimeout reports whether err is bbolt's lock timeout from Open.
func IsTimeout(err error) bool {
	return errors.Is(err, bolt.ErrTimeout)
}
