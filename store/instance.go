package store

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/jacentio/arbor/kv"
)

// Record is implemented by *Instance and by any type embedding *Instance, which
// lets typed records flow through Entity operations.
//
//	type User struct{ *store.Instance }
type Record interface {
	instance() *Instance
}

// Instance is one record of an entity: the last persisted snapshot plus an
// overlay of pending updates. Only fields whose value differs from the snapshot
// are kept in the overlay.
type Instance struct {
	entity  *Entity
	rec     *kv.Record
	updates map[*Field]any
}

func (i *Instance) instance() *Instance { return i }

// Self returns i. It is the constructor to pass to Define for untyped entities.
func Self(i *Instance) *Instance { return i }

// Entity returns the record's entity.
func (i *Instance) Entity() *Entity { return i.entity }

// Key returns the record's store key; it is incomplete until the record is persisted.
func (i *Instance) Key() kv.Key { return i.rec.Key }

// ID returns the generated identity, or 0 if the record has not been persisted.
func (i *Instance) ID() int64 { return i.rec.Key.ID }

// IsPersisted reports whether the record has a generated identity.
func (i *Instance) IsPersisted() bool { return i.rec.Key.Complete() }

// TimeCreated returns the creation time. Before insert it is the current time
// of the entity's clock.
func (i *Instance) TimeCreated() time.Time {
	t, _ := i.Get(i.entity.TimeCreated).(time.Time)
	return t
}

// TimeUpdated returns the last update time. Before insert it is the current
// time of the entity's clock.
func (i *Instance) TimeUpdated() time.Time {
	t, _ := i.Get(i.entity.TimeUpdated).(time.Time)
	return t
}

// Value returns the pending value of f if any, else the persisted value, else
// the field's default (which is not stored on the record).
func (i *Instance) Value(f *Field) (any, error) {
	if err := i.checkField(f); err != nil {
		return nil, err
	}
	if f == i.entity.ID {
		if !i.IsPersisted() {
			return nil, nil
		}
		return i.ID(), nil
	}
	v, err := i.current(f)
	if err != nil {
		return nil, err
	}
	if v == nil && f.def != nil {
		return f.normalize(f.def.Generate())
	}
	return v, nil
}

// Get is Value without the error; it returns nil when the value cannot be read.
func (i *Instance) Get(f *Field) any {
	v, _ := i.Value(f)
	return v
}

// Set assigns a value to f, validating type, mandatory, read-only and
// auto-generated constraints. Setting a field to its persisted value leaves no
// pending update behind.
func (i *Instance) Set(f *Field, value any) error {
	if err := i.checkField(f); err != nil {
		return err
	}
	if f == i.entity.ID {
		return fmt.Errorf("%w: cannot set identity field %s", ErrIllegalArgument, f)
	}
	v, err := f.normalize(value)
	if err != nil {
		return err
	}
	if v == nil && f.IsMandatory() {
		return fieldError(ErrMandatory, f, nil)
	}
	if i.IsPersisted() && f.IsReadOnly() {
		return fieldError(ErrReadOnly, f, v)
	}
	if f.IsAutoGenerated() {
		return fieldError(ErrAutoGenerated, f, v)
	}
	i.updates[f] = v
	return i.collapse(f)
}

// HasPendingUpdates reports whether any field differs from the persisted snapshot.
func (i *Instance) HasPendingUpdates() bool {
	return len(i.updates) > 0
}

// PendingFields returns the fields with pending updates in declaration order.
func (i *Instance) PendingFields() []*Field {
	var out []*Field
	for _, f := range i.entity.fields {
		if _, ok := i.updates[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// NaturalKeyAsQueryArgs returns equality arguments for the entity's natural key
// built from the record's current values.
func (i *Instance) NaturalKeyAsQueryArgs() ([]QueryArg, error) {
	if len(i.entity.naturalKey) == 0 {
		return nil, usagef("entity %s has no natural key", i.entity.name)
	}
	args := make([]QueryArg, len(i.entity.naturalKey))
	for n, f := range i.entity.naturalKey {
		v, err := i.Value(f)
		if err != nil {
			return nil, err
		}
		args[n] = f.Eq(v)
	}
	return args, nil
}

func (i *Instance) String() string {
	var sb strings.Builder
	sb.WriteString(i.entity.name)
	sb.WriteString(":")
	for _, f := range i.entity.fields {
		fmt.Fprintf(&sb, " [%s=%v]", f.name, i.Get(f))
	}
	return sb.String()
}

// current returns the overlay value or the persisted value, without defaults.
func (i *Instance) current(f *Field) (any, error) {
	if v, ok := i.updates[f]; ok {
		return v, nil
	}
	return f.ToObject(i.rec.Get(f.name))
}

func (i *Instance) snapshotValue(f *Field) any {
	if f == i.entity.ID {
		if !i.IsPersisted() {
			return nil
		}
		return i.ID()
	}
	v, _ := i.current(f)
	return v
}

// collapse drops the overlay entry for f when it equals the persisted value.
func (i *Instance) collapse(f *Field) error {
	v, ok := i.updates[f]
	if !ok {
		return nil
	}
	p, err := f.ToPrimitive(v)
	if err != nil {
		return err
	}
	if kv.Equal(p, i.rec.Get(f.name)) {
		delete(i.updates, f)
	}
	return nil
}

// commit writes value into the persisted snapshot and clears its overlay entry.
func (i *Instance) commit(f *Field, value any) error {
	p, err := f.ToPrimitive(value)
	if err != nil {
		return err
	}
	i.rec.Set(f.name, p, f.indexed)
	delete(i.updates, f)
	return nil
}

// checkpoint captures the snapshot and overlay. The returned func restores them
// when a write fails after values were committed.
func (i *Instance) checkpoint() (restore func()) {
	rec := i.rec.Clone()
	updates := maps.Clone(i.updates)
	return func() {
		i.rec = rec
		i.updates = updates
	}
}

// adoptOverlayFrom replaces the overlay with other's, dropping entries that equal
// this record's persisted values.
func (i *Instance) adoptOverlayFrom(other *Instance) error {
	i.updates = make(map[*Field]any, len(other.updates))
	for f, v := range other.updates {
		i.updates[f] = v
	}
	for f := range other.updates {
		if err := i.collapse(f); err != nil {
			return err
		}
	}
	return nil
}

// hydrate replaces the snapshot with rec and clears the overlay.
func (i *Instance) hydrate(rec *kv.Record) {
	i.rec = rec
	i.updates = make(map[*Field]any)
}

func (i *Instance) checkField(f *Field) error {
	if f == nil {
		return fmt.Errorf("%w: nil field", ErrIllegalArgument)
	}
	if !i.entity.owns(f) {
		return integrityf("field %s cannot be used in entity %s", f, i.entity.name)
	}
	return nil
}

// Get returns the value of f on r as T, or the zero T when unset or of another type.
//
//	email := store.Get[string](user, users.Email)
func Get[T any](r Record, f *Field) T {
	v, _ := r.instance().Get(f).(T)
	return v
}
