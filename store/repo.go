package store

import "context"

// Repo is an Entity whose records are returned as R.
//
//	type User struct{ *store.Instance }
//
//	users := store.Define(es, "user", func(i *store.Instance) User { return User{i} })
type Repo[R Record] struct {
	*Entity
	ctor func(*Instance) R
}

// Define adds an entity named name to es. ctor wraps each record read or created
// through the returned Repo; pass Self for untyped records.
func Define[R Record](es *Entities, name string, ctor func(*Instance) R) *Repo[R] {
	e := es.define(name, func(i *Instance) Record { return ctor(i) })
	return &Repo[R]{Entity: e, ctor: ctor}
}

// New returns a new transient record.
func (r *Repo[R]) New() R {
	return r.ctor(r.newInstance())
}

// Query starts a query returning R.
func (r *Repo[R]) Query() *Query[R] {
	return newQuery(r.Entity, r.ctor)
}

// Find returns the record with identity id. ok is false when there is none.
func (r *Repo[R]) Find(ctx context.Context, id int64) (rec R, ok bool, err error) {
	i, err := r.find(ctx, id)
	if err != nil || i == nil {
		return rec, false, err
	}
	return r.ctor(i), true, nil
}

// FindSingle returns the only record matching args. ok is false when none does.
func (r *Repo[R]) FindSingle(ctx context.Context, args ...QueryArg) (rec R, ok bool, err error) {
	i, err := r.findSingle(ctx, args)
	if err != nil || i == nil {
		return rec, false, err
	}
	return r.ctor(i), true, nil
}

// FindWhere returns the records matching args.
func (r *Repo[R]) FindWhere(ctx context.Context, args ...QueryArg) (*Results[R], error) {
	return r.Query().Where(args...).Run(ctx)
}

// FindAll returns every record.
func (r *Repo[R]) FindAll(ctx context.Context) (*Results[R], error) {
	return r.FindWhere(ctx)
}
