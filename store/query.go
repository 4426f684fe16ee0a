package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/arbor/kv"
)

// Operator is a query comparison operator.
type Operator = kv.Operator

const (
	OpEqual          = kv.OpEqual
	OpNotEqual       = kv.OpNotEqual
	OpLessThan       = kv.OpLessThan
	OpLessOrEqual    = kv.OpLessOrEqual
	OpGreaterThan    = kv.OpGreaterThan
	OpGreaterOrEqual = kv.OpGreaterOrEqual
)

// QueryArg is a (field, operator, value) filter.
type QueryArg struct {
	Field *Field
	Op    Operator
	Value any
}

func (a QueryArg) String() string {
	return fmt.Sprintf("%s %s %v", a.Field, a.Op, a.Value)
}

// Query builds a filtered scan over one entity.
type Query[R Record] struct {
	entity *Entity
	wrap   func(*Instance) R
	args   []QueryArg
	limit  int
}

func newQuery[R Record](e *Entity, wrap func(*Instance) R) *Query[R] {
	return &Query[R]{entity: e, wrap: wrap}
}

// Where adds filter arguments. All arguments must hold.
func (q *Query[R]) Where(args ...QueryArg) *Query[R] {
	q.args = append(q.args, args...)
	return q
}

// Limit caps the number of results (0 = no limit).
func (q *Query[R]) Limit(n int) *Query[R] {
	q.limit = n
	return q
}

// Run executes the query. The results are lazy and forward-only; run the query
// again to iterate a second time.
func (q *Query[R]) Run(ctx context.Context) (*Results[R], error) {
	if err := q.entity.checkLoaded(); err != nil {
		return nil, err
	}
	cur, err := q.entity.run(ctx, q.args, q.limit)
	if err != nil {
		return nil, err
	}
	return &Results[R]{entity: q.entity, cur: cur, wrap: q.wrap}, nil
}

// Results iterates query matches as records.
//
//	res, err := users.FindWhere(ctx, name.Eq("ann"))
//	if err != nil { ... }
//	defer res.Close()
//	for res.Next() {
//	    u := res.Record()
//	}
//	if err := res.Err(); err != nil { ... }
type Results[R Record] struct {
	entity *Entity
	cur    kv.Cursor
	wrap   func(*Instance) R
	rec    R
}

// Next advances to the next record.
func (r *Results[R]) Next() bool {
	if !r.cur.Next() {
		var zero R
		r.rec = zero
		return false
	}
	r.rec = r.wrap(r.entity.hydrate(r.cur.Record()))
	return true
}

// Record returns the current record.
func (r *Results[R]) Record() R { return r.rec }

// Err returns the first error met while iterating.
func (r *Results[R]) Err() error { return r.cur.Err() }

// Close releases the underlying cursor.
func (r *Results[R]) Close() error { return r.cur.Close() }

// All drains the remaining results and closes them.
func (r *Results[R]) All() ([]R, error) {
	defer r.Close()
	var out []R
	for r.Next() {
		out = append(out, r.Record())
	}
	return out, r.Err()
}

// predicates validates args against e and converts them to store predicates.
// The identity argument, if any, is returned separately since stores cannot
// combine point lookups with filters.
func (e *Entity) predicates(args []QueryArg) (idArg *QueryArg, preds []kv.Predicate, err error) {
	for n := range args {
		arg := args[n]
		if arg.Field == nil {
			return nil, nil, fmt.Errorf("%w: nil query field", ErrIllegalArgument)
		}
		if !e.owns(arg.Field) {
			return nil, nil, integrityf("field %s cannot be used in entity %s", arg.Field, e.name)
		}
		if !arg.Op.Valid() {
			return nil, nil, fmt.Errorf("%w: unknown operator %d", ErrIllegalArgument, int(arg.Op))
		}
		if arg.Field == e.ID {
			if arg.Op != OpEqual {
				return nil, nil, usagef("identity can only be queried for equality")
			}
			if idArg != nil {
				return nil, nil, usagef("identity given more than once")
			}
			idArg = &args[n]
			continue
		}
		if !arg.Field.indexed {
			return nil, nil, usagef("field %s is not indexed", arg.Field)
		}
		v, err := arg.Field.normalize(arg.Value)
		if err != nil {
			return nil, nil, err
		}
		p, err := arg.Field.ToPrimitive(v)
		if err != nil {
			return nil, nil, err
		}
		preds = append(preds, kv.Predicate{Name: arg.Field.name, Op: arg.Op, Value: p})
	}
	return idArg, preds, nil
}

// run validates args and opens a cursor over matching records. An identity
// argument is resolved by point lookup and the remaining predicates are checked
// in memory.
func (e *Entity) run(ctx context.Context, args []QueryArg, limit int) (kv.Cursor, error) {
	idArg, preds, err := e.predicates(args)
	if err != nil {
		return nil, err
	}
	if idArg == nil {
		e.ents.logger.Debug("scanning records", "entity", e.name, "predicates", preds, "limit", limit)
		return e.ents.kv.Scan(ctx, e.name, kv.Scan{Predicates: preds, Limit: limit}), nil
	}

	v, err := e.ID.normalize(idArg.Value)
	if err != nil {
		return nil, err
	}
	id, _ := v.(int64)
	if id < 1 {
		return kv.NewSliceCursor(nil), nil
	}
	e.ents.logger.Debug("getting record", "entity", e.name, "id", id)
	rec, err := e.ents.kv.Get(ctx, kv.Key{Kind: e.name, ID: id})
	if errors.Is(err, kv.ErrNotFound) {
		return kv.NewSliceCursor(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", e.name, id, err)
	}
	if !kv.MatchesAll(rec, preds) {
		return kv.NewSliceCursor(nil), nil
	}
	return kv.NewSliceCursor([]*kv.Record{rec}), nil
}
