package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/arbor/kv"
)

// Entity is the schema and repository for one record type. Every record of the
// type is inserted, updated, saved, deleted and queried through its Entity,
// which enforces the constraints the underlying store does not.
type Entity struct {
	ents *Entities
	name string
	wrap func(*Instance) Record

	fields     []*Field
	byName     map[string]*Field
	naturalKey []*Field
	uniques    []*UniqueConstraint
	deps       []Dependency
	errs       []error
	loaded     bool

	// System fields present on every entity.
	ID          *Field
	TimeCreated *Field
	TimeUpdated *Field
}

func newEntity(es *Entities, name string, wrap func(*Instance) Record) *Entity {
	e := &Entity{
		ents:   es,
		name:   name,
		wrap:   wrap,
		byName: make(map[string]*Field),
	}
	now := Now(es.now)
	e.ID = e.addField("id", Int, false, Indexed(), Mandatory(), Unique(), AutoGenerated())
	e.TimeCreated = e.addField("timeCreated", Time, false, Indexed(), Mandatory(), ReadOnly(), DefaultFunc(now))
	e.TimeUpdated = e.addField("timeUpdated", Time, false, Indexed(), Mandatory(), ReadOnly(), DefaultFunc(now))
	return e
}

// Name returns the entity name, which is also the store kind.
func (e *Entity) Name() string { return e.name }

// Fields returns the fields in declaration order, system fields first.
func (e *Entity) Fields() []*Field { return append([]*Field(nil), e.fields...) }

// Field returns the named field.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.byName[name]
	return f, ok
}

// NaturalKey returns the natural key fields.
func (e *Entity) NaturalKey() []*Field { return append([]*Field(nil), e.naturalKey...) }

// UniqueConstraints returns the composite unique constraints, including the
// natural key once the schema is loaded.
func (e *Entity) UniqueConstraints() []*UniqueConstraint {
	return append([]*UniqueConstraint(nil), e.uniques...)
}

// Dependencies returns the foreign keys other entities hold into this one.
func (e *Entity) Dependencies() []Dependency { return append([]Dependency(nil), e.deps...) }

// Loaded reports whether the schema containing e has been loaded.
func (e *Entity) Loaded() bool { return e.loaded }

func (e *Entity) String() string { return e.name }

// AddField declares a field. Declaration errors are reported by Entities.Load;
// adding a field after Load panics.
func (e *Entity) AddField(name string, typ Type, opts ...FieldOption) *Field {
	return e.addField(name, typ, true, opts...)
}

// AddReference declares a foreign key into the named entity. Foreign keys are
// always indexed.
func (e *Entity) AddReference(name, target string, onDelete OnDelete, opts ...FieldOption) *Field {
	f := e.addField(name, Ref, true, append(opts, Indexed())...)
	f.targetName = target
	f.onDelete = onDelete
	if target == "" {
		e.fail(usagef("foreign key %s has no target entity", f))
	}
	if !onDelete.valid() {
		e.fail(integrityf("foreign key %s has unrecognized on-delete policy %s", f, onDelete))
	}
	if onDelete == SetNull && (f.IsMandatory() || f.IsReadOnly()) {
		e.fail(usagef("foreign key %s cannot be cleared on delete: it is mandatory or read-only", f))
	}
	return f
}

func (e *Entity) addField(name string, typ Type, user bool, opts ...FieldOption) *Field {
	f := &Field{entity: e, name: name, typ: typ}
	for _, opt := range opts {
		opt(f)
	}
	if e.loaded || e.ents.loaded {
		panic(usagef("field %s added after the schema was loaded", f))
	}
	switch {
	case name == "":
		e.fail(usagef("entity %s: field name is empty", e.name))
		return f
	case typ == nil:
		e.fail(usagef("field %s has no type", f))
		return f
	case e.byName[name] != nil:
		e.fail(usagef("field %s already exists", f))
		return f
	}
	if user && f.IsAutoGenerated() {
		e.fail(integrityf("field %s: only the identity field can be auto-generated", f))
	}
	if f.IsUnique() && !f.indexed {
		e.fail(usagef("unique field %s must be indexed", f))
	}
	e.fields = append(e.fields, f)
	e.byName[name] = f
	return f
}

// SetNaturalKey declares the fields that semantically identify a record. A
// single field must be UNIQUE; several fields become a UniqueConstraint when the
// schema is loaded.
func (e *Entity) SetNaturalKey(fields ...*Field) {
	if e.loaded {
		panic(usagef("natural key of %s set after the schema was loaded", e.name))
	}
	e.naturalKey = append([]*Field(nil), fields...)
}

// AddUniqueConstraint declares that the combined value of fields is unique.
func (e *Entity) AddUniqueConstraint(fields ...*Field) {
	if e.loaded {
		panic(usagef("unique constraint on %s added after the schema was loaded", e.name))
	}
	uc, err := e.newUniqueConstraint(fields)
	if err != nil {
		e.fail(err)
		return
	}
	for _, existing := range e.uniques {
		if existing.Equal(uc) {
			e.fail(usagef("entity %s: unique constraint %s already exists", e.name, uc))
			return
		}
	}
	e.uniques = append(e.uniques, uc)
}

func (e *Entity) newUniqueConstraint(fields []*Field) (*UniqueConstraint, error) {
	if len(fields) < 2 {
		if len(fields) == 1 && fields[0] != nil && fields[0].IsUnique() {
			return nil, usagef("field %s is unique, do not add it as a constraint", fields[0])
		}
		return nil, usagef("entity %s: unique constraints need more than one field (use Unique instead)", e.name)
	}
	seen := make(map[*Field]bool, len(fields))
	for _, f := range fields {
		if f == nil {
			return nil, usagef("entity %s: nil field in unique constraint", e.name)
		}
		if !e.owns(f) {
			return nil, usagef("field %s cannot be used in entity %s", f, e.name)
		}
		if seen[f] {
			return nil, usagef("entity %s: field %s repeated in unique constraint", e.name, f.name)
		}
		if !f.indexed {
			return nil, usagef("field %s must be indexed to take part in a unique constraint", f)
		}
		seen[f] = true
	}
	return &UniqueConstraint{fields: append([]*Field(nil), fields...)}, nil
}

func (e *Entity) fail(err error) {
	e.errs = append(e.errs, err)
}

func (e *Entity) owns(f *Field) bool {
	return f != nil && f.entity == e && e.byName[f.name] == f
}

// New returns a new transient record.
func (e *Entity) New() Record {
	return e.wrap(e.newInstance())
}

func (e *Entity) newInstance() *Instance {
	i := &Instance{entity: e}
	i.hydrate(kv.NewRecord(e.name))
	return i
}

func (e *Entity) hydrate(rec *kv.Record) *Instance {
	i := &Instance{entity: e}
	i.hydrate(rec)
	return i
}

// Query starts a query over the entity's records.
func (e *Entity) Query() *Query[Record] {
	return newQuery(e, e.wrap)
}

func (e *Entity) checkLoaded() error {
	if !e.loaded {
		return usagef("entity %s has not been loaded", e.name)
	}
	return nil
}

func (e *Entity) own(r Record) (*Instance, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrIllegalArgument)
	}
	i := r.instance()
	if i == nil {
		return nil, fmt.Errorf("%w: nil record", ErrIllegalArgument)
	}
	if i.entity != e {
		return nil, usagef("%s record passed to entity %s", i.entity.name, e.name)
	}
	if err := e.checkLoaded(); err != nil {
		return nil, err
	}
	return i, nil
}

// Insert validates and persists a new record. Defaults are applied to unset
// fields, then mandatory, unique and composite unique constraints are checked.
// Nothing is written unless every check passes. When the store write fails the
// record is left transient with its pending updates.
//
// Uniqueness is checked before the write and is not atomic with it: two
// concurrent inserts of the same value can both succeed.
func (e *Entity) Insert(ctx context.Context, r Record) error {
	i, err := e.own(r)
	if err != nil {
		return err
	}
	if i.IsPersisted() {
		return usagef("%s %d has already been persisted", e.name, i.ID())
	}
	changed := i.pendingSet()
	now := e.ents.now()

	values := make(map[*Field]any, len(e.fields))
	for _, f := range e.fields {
		if f == e.ID {
			continue
		}
		if f.IsAutoGenerated() {
			return integrityf("no generator for auto-generated field %s", f)
		}
		v, err := i.current(f)
		if err != nil {
			return err
		}
		switch {
		case v != nil:
		case f == e.TimeCreated || f == e.TimeUpdated:
			v = now
		case f.def != nil:
			if v, err = f.normalize(f.def.Generate()); err != nil {
				return err
			}
		}
		if v == nil && f.IsMandatory() {
			return fieldError(ErrMandatory, f, nil)
		}
		if v != nil && f.IsUnique() {
			if err := e.checkUnique(ctx, i, f, v); err != nil {
				return err
			}
		}
		values[f] = v
	}
	err = e.checkUniqueConstraints(ctx, i, changed, func(f *Field) any {
		if f == e.ID {
			return nil
		}
		return values[f]
	})
	if err != nil {
		return err
	}

	restore := i.checkpoint()
	for _, f := range e.fields {
		if f == e.ID {
			continue
		}
		if err := i.commit(f, values[f]); err != nil {
			restore()
			return err
		}
	}
	e.ents.logger.Debug("inserting record", "entity", e.name)
	if err := e.put(ctx, i); err != nil {
		restore()
		return err
	}
	e.ents.logger.Debug("record inserted", "entity", e.name, "id", i.ID())
	return nil
}

// Update persists the record's pending updates and refreshes timeUpdated. It
// returns false without writing when there is nothing pending. When the store
// write fails the pending updates are kept so the update can be retried.
func (e *Entity) Update(ctx context.Context, r Record) (bool, error) {
	i, err := e.own(r)
	if err != nil {
		return false, err
	}
	if !i.IsPersisted() {
		return false, usagef("%s record has not been persisted", e.name)
	}
	if !i.HasPendingUpdates() {
		return false, nil
	}
	changed := i.pendingSet()
	pending := i.PendingFields()

	for _, f := range pending {
		if v := i.updates[f]; v != nil && f.IsUnique() {
			if err := e.checkUnique(ctx, i, f, v); err != nil {
				return false, err
			}
		}
	}
	if err := e.checkUniqueConstraints(ctx, i, changed, i.snapshotValue); err != nil {
		return false, err
	}

	restore := i.checkpoint()
	for _, f := range pending {
		if err := i.commit(f, i.updates[f]); err != nil {
			restore()
			return false, err
		}
	}
	if err := i.commit(e.TimeUpdated, e.ents.now()); err != nil {
		restore()
		return false, err
	}
	e.ents.logger.Debug("updating record", "entity", e.name, "id", i.ID(), "fields", len(pending))
	if err := e.put(ctx, i); err != nil {
		restore()
		return false, err
	}
	return true, nil
}

// Save inserts the record, or updates the existing record with the same natural
// key. The existing record's identity and state are copied back onto r. It
// reports whether anything was written.
func (e *Entity) Save(ctx context.Context, r Record) (bool, error) {
	i, err := e.own(r)
	if err != nil {
		return false, err
	}
	args, err := i.NaturalKeyAsQueryArgs()
	if err != nil {
		return false, err
	}
	var existing *Instance
	if !hasNil(args) {
		found, err := e.findSingle(ctx, args)
		if err != nil {
			return false, err
		}
		existing = found
	}
	if existing == nil {
		if i.IsPersisted() {
			return e.Update(ctx, i)
		}
		if err := e.Insert(ctx, i); err != nil {
			return false, err
		}
		return true, nil
	}
	if i.IsPersisted() {
		return e.Update(ctx, i)
	}

	if err := existing.adoptOverlayFrom(i); err != nil {
		return false, err
	}
	updated, err := e.Update(ctx, existing)
	if err != nil {
		return false, err
	}
	i.hydrate(existing.rec.Clone())
	return updated, nil
}

// Delete removes the record after applying every dependency's on-delete policy:
// CASCADE deletes referencing records, RESTRICT aborts and SET_NULL clears the
// foreign key. RESTRICT dependents anywhere along the cascade are detected before
// anything is written. A store failure midway through a cascade leaves the
// records already processed deleted or updated.
func (e *Entity) Delete(ctx context.Context, r Record) error {
	i, err := e.own(r)
	if err != nil {
		return err
	}
	if !i.IsPersisted() {
		return usagef("%s record has not been persisted", e.name)
	}
	if err := e.preflightDelete(ctx, i, make(map[kv.Key]bool)); err != nil {
		return err
	}
	return e.delete(ctx, i, make(map[kv.Key]bool))
}

func (e *Entity) preflightDelete(ctx context.Context, i *Instance, seen map[kv.Key]bool) error {
	if seen[i.Key()] {
		return nil
	}
	seen[i.Key()] = true
	for _, d := range e.deps {
		related, err := d.related(ctx, i)
		if err != nil {
			return err
		}
		for _, rel := range related {
			switch d.Field.onDelete {
			case Cascade:
				if err := d.Entity.preflightDelete(ctx, rel, seen); err != nil {
					return err
				}
			case Restrict:
				return e.restricted(i, d, rel)
			case SetNull:
			default:
				return integrityf("unrecognized on-delete policy %s on %s", d.Field.onDelete, d.Field)
			}
		}
	}
	return nil
}

func (e *Entity) delete(ctx context.Context, i *Instance, seen map[kv.Key]bool) error {
	if seen[i.Key()] {
		return nil
	}
	seen[i.Key()] = true
	e.ents.logger.Debug("deleting record", "entity", e.name, "id", i.ID())

	for _, d := range e.deps {
		related, err := d.related(ctx, i)
		if err != nil {
			return err
		}
		e.ents.logger.Debug("processing dependency", "entity", e.name, "dependent", d.Entity.name,
			"field", d.Field.name, "records", len(related))
		for _, rel := range related {
			switch d.Field.onDelete {
			case Cascade:
				if err := d.Entity.delete(ctx, rel, seen); err != nil {
					return err
				}
			case Restrict:
				return e.restricted(i, d, rel)
			case SetNull:
				if seen[rel.Key()] {
					continue
				}
				if err := rel.Set(d.Field, nil); err != nil {
					return err
				}
				if _, err := d.Entity.Update(ctx, rel); err != nil {
					return err
				}
			default:
				return integrityf("unrecognized on-delete policy %s on %s", d.Field.onDelete, d.Field)
			}
		}
	}

	if err := e.ents.kv.Delete(ctx, i.Key()); err != nil {
		return fmt.Errorf("delete %s: %w", i.Key(), err)
	}
	return nil
}

func (e *Entity) restricted(i *Instance, d Dependency, rel *Instance) error {
	return &ReferentialError{
		Entity:    e.name,
		ID:        i.ID(),
		Related:   d.Entity.name,
		RelatedID: rel.ID(),
		Field:     d.Field.name,
	}
}

// BulkDeleteWhere deletes every record matching args and returns how many were
// deleted. It does not process dependencies: referencing records are neither
// cascaded, restricted nor cleared.
func (e *Entity) BulkDeleteWhere(ctx context.Context, args ...QueryArg) (int, error) {
	if err := e.checkLoaded(); err != nil {
		return 0, err
	}
	cur, err := e.run(ctx, args, 0)
	if err != nil {
		return 0, err
	}
	recs, err := kv.Collect(cur)
	if err != nil {
		return 0, err
	}
	keys := make([]kv.Key, len(recs))
	for n, rec := range recs {
		keys[n] = rec.Key
	}
	e.ents.logger.Debug("bulk deleting records", "entity", e.name, "args", len(args), "records", len(keys))
	if len(keys) == 0 {
		return 0, nil
	}
	if err := e.ents.kv.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("bulk delete %s: %w", e.name, err)
	}
	return len(keys), nil
}

// BulkDeleteAll deletes every record of the entity without processing dependencies.
func (e *Entity) BulkDeleteAll(ctx context.Context) (int, error) {
	return e.BulkDeleteWhere(ctx)
}

// Find returns the record with the given identity, or nil if there is none.
func (e *Entity) Find(ctx context.Context, id int64) (Record, error) {
	i, err := e.find(ctx, id)
	if err != nil || i == nil {
		return nil, err
	}
	return e.wrap(i), nil
}

func (e *Entity) find(ctx context.Context, id int64) (*Instance, error) {
	if err := e.checkLoaded(); err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, fmt.Errorf("%w: invalid id %d", ErrIllegalArgument, id)
	}
	e.ents.logger.Debug("finding record", "entity", e.name, "id", id)
	rec, err := e.ents.kv.Get(ctx, kv.Key{Kind: e.name, ID: id})
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", e.name, id, err)
	}
	return e.hydrate(rec), nil
}

// FindSingle returns the only record matching args, or nil if none does. More
// than one match is an integrity error: callers must only use it on arguments
// they know to be unique.
func (e *Entity) FindSingle(ctx context.Context, args ...QueryArg) (Record, error) {
	i, err := e.findSingle(ctx, args)
	if err != nil || i == nil {
		return nil, err
	}
	return e.wrap(i), nil
}

func (e *Entity) findSingle(ctx context.Context, args []QueryArg) (*Instance, error) {
	if err := e.checkLoaded(); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no query arguments", ErrIllegalArgument)
	}
	cur, err := e.run(ctx, args, 2)
	if err != nil {
		return nil, err
	}
	recs, err := kv.Collect(cur)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return e.hydrate(recs[0]), nil
	}
	return nil, integrityf("expected 1 %s matching %v, found more", e.name, args)
}

// FindWhere returns the records matching args.
func (e *Entity) FindWhere(ctx context.Context, args ...QueryArg) (*Results[Record], error) {
	return e.Query().Where(args...).Run(ctx)
}

// FindAll returns every record of the entity.
func (e *Entity) FindAll(ctx context.Context) (*Results[Record], error) {
	return e.FindWhere(ctx)
}

func (e *Entity) put(ctx context.Context, i *Instance) error {
	if i.HasPendingUpdates() {
		return integrityf("%s record committed with unresolved pending updates", e.name)
	}
	key, err := e.ents.kv.Put(ctx, i.rec)
	if err != nil {
		return fmt.Errorf("put %s: %w", e.name, err)
	}
	i.rec.Key = key
	return nil
}

func (e *Entity) checkUnique(ctx context.Context, i *Instance, f *Field, v any) error {
	cur, err := e.run(ctx, []QueryArg{f.Eq(v)}, 2)
	if err != nil {
		return err
	}
	recs, err := kv.Collect(cur)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if !i.IsPersisted() || rec.Key.ID != i.ID() {
			return fieldError(ErrUnique, f, v)
		}
	}
	return nil
}

// checkUniqueConstraints checks every composite constraint with a member in
// changed. Tuples with a nil member never conflict.
func (e *Entity) checkUniqueConstraints(ctx context.Context, i *Instance, changed map[*Field]bool, value func(*Field) any) error {
	for _, uc := range e.uniques {
		if !uc.touches(changed) {
			continue
		}
		args := make([]QueryArg, 0, len(uc.fields))
		tuple := make([]any, 0, len(uc.fields))
		for _, f := range uc.fields {
			v := value(f)
			if v == nil {
				args = nil
				break
			}
			args = append(args, f.Eq(v))
			tuple = append(tuple, v)
		}
		if args == nil {
			continue
		}
		cur, err := e.run(ctx, args, 2)
		if err != nil {
			return err
		}
		recs, err := kv.Collect(cur)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if !i.IsPersisted() || rec.Key.ID != i.ID() {
				return &ConstraintError{Kind: ErrUnique, Entity: e.name, Fields: uc.names(), Value: tuple}
			}
		}
	}
	return nil
}

func (i *Instance) pendingSet() map[*Field]bool {
	set := make(map[*Field]bool, len(i.updates))
	for f := range i.updates {
		set[f] = true
	}
	return set
}

func hasNil(args []QueryArg) bool {
	for _, a := range args {
		if a.Value == nil {
			return true
		}
	}
	return false
}
