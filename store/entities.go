package store

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jacentio/arbor/kv"
)

// Entities is a schema: a set of entities sharing one kv.Store. Entities are
// defined first, then Load resolves foreign keys and natural keys, after which
// the schema is frozen and records can be read and written. Defining anything
// after Load panics.
type Entities struct {
	kv     kv.Store
	logger *slog.Logger
	clock  func() time.Time

	entities []*Entity
	byName   map[string]*Entity
	errs     []error
	loaded   bool
}

// NewEntities creates an empty schema over store.
func NewEntities(store kv.Store, config Config) *Entities {
	config.validate()
	return &Entities{
		kv:     store,
		logger: config.Logger,
		clock:  config.Clock,
		byName: make(map[string]*Entity),
	}
}

func (es *Entities) now() time.Time {
	return es.clock().UTC()
}

// Store returns the underlying key-value store.
func (es *Entities) Store() kv.Store { return es.kv }

// Entity returns the named entity.
func (es *Entities) Entity(name string) (*Entity, bool) {
	e, ok := es.byName[name]
	return e, ok
}

// All returns every entity in definition order.
func (es *Entities) All() []*Entity {
	return append([]*Entity(nil), es.entities...)
}

// DependenciesOf returns the foreign keys that reference the named entity.
func (es *Entities) DependenciesOf(name string) []Dependency {
	e, ok := es.byName[name]
	if !ok {
		return nil
	}
	return e.Dependencies()
}

// Loaded reports whether Load has succeeded.
func (es *Entities) Loaded() bool { return es.loaded }

func (es *Entities) define(name string, wrap func(*Instance) Record) *Entity {
	if es.loaded {
		panic(usagef("entity %s defined after the schema was loaded", name))
	}
	e := newEntity(es, name, wrap)
	switch {
	case name == "":
		es.errs = append(es.errs, usagef("entity name is empty"))
		return e
	case es.byName[name] != nil:
		es.errs = append(es.errs, usagef("entity %s already defined", name))
		return e
	}
	es.entities = append(es.entities, e)
	es.byName[name] = e
	return e
}

// Load validates every definition, resolves foreign key targets, registers
// dependencies and natural key constraints, and freezes the schema. All
// definition errors are reported together. Loading twice is an error.
func (es *Entities) Load() error {
	if es.loaded {
		return usagef("schema already loaded")
	}
	errs := append([]error(nil), es.errs...)
	for _, e := range es.entities {
		errs = append(errs, e.errs...)
		if err := e.loadNaturalKey(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range es.entities {
		for _, f := range e.fields {
			if !f.IsForeignKey() {
				continue
			}
			target, ok := es.byName[f.targetName]
			if !ok {
				errs = append(errs, usagef("foreign key %s references unknown entity %s", f, f.targetName))
				continue
			}
			f.target = target
			target.deps = append(target.deps, Dependency{Entity: e, Field: f})
		}
	}
	if err := errors.Join(errs...); err != nil {
		for _, e := range es.entities {
			e.deps = nil
		}
		return err
	}

	for _, e := range es.entities {
		e.loaded = true
		es.logger.Debug("entity loaded", "entity", e.name, "fields", len(e.fields),
			"dependencies", len(e.deps), "unique_constraints", len(e.uniques))
	}
	es.loaded = true
	es.logger.Info("schema loaded", "entities", len(es.entities))
	return nil
}

func (e *Entity) loadNaturalKey() error {
	switch len(e.naturalKey) {
	case 0:
		return nil
	case 1:
		f := e.naturalKey[0]
		if !e.owns(f) {
			return usagef("natural key field %s cannot be used in entity %s", f, e.name)
		}
		if !f.IsUnique() {
			return usagef("single-field natural key %s must be unique", f)
		}
		return nil
	}
	uc, err := e.newUniqueConstraint(e.naturalKey)
	if err != nil {
		return err
	}
	for _, existing := range e.uniques {
		if existing.Equal(uc) {
			return nil
		}
	}
	e.uniques = append(e.uniques, uc)
	return nil
}
