package store

import (
	"context"
	"strings"
)

// UniqueConstraint is an ordered set of two or more fields whose combined value
// must be unique across all records of an entity.
type UniqueConstraint struct {
	fields []*Field
}

// Fields returns the constraint's fields in declaration order.
func (uc *UniqueConstraint) Fields() []*Field {
	return append([]*Field(nil), uc.fields...)
}

// Equal reports whether both constraints cover the same field set.
func (uc *UniqueConstraint) Equal(other *UniqueConstraint) bool {
	if other == nil || len(uc.fields) != len(other.fields) {
		return false
	}
	for _, f := range uc.fields {
		if !other.has(f) {
			return false
		}
	}
	return true
}

func (uc *UniqueConstraint) has(f *Field) bool {
	for _, cf := range uc.fields {
		if cf == f {
			return true
		}
	}
	return false
}

// touches reports whether any member field is in changed.
func (uc *UniqueConstraint) touches(changed map[*Field]bool) bool {
	for _, f := range uc.fields {
		if changed[f] {
			return true
		}
	}
	return false
}

func (uc *UniqueConstraint) names() []string {
	names := make([]string, len(uc.fields))
	for i, f := range uc.fields {
		names[i] = f.name
	}
	return names
}

func (uc *UniqueConstraint) String() string {
	return "(" + strings.Join(uc.names(), ", ") + ")"
}

// Dependency records that Entity holds a foreign key (Field) into the entity
// that owns the dependency.
type Dependency struct {
	Entity *Entity
	Field  *Field
}

// related returns the dependent records that reference i.
func (d Dependency) related(ctx context.Context, i *Instance) ([]*Instance, error) {
	cur, err := d.Entity.run(ctx, []QueryArg{d.Field.Eq(i.ID())}, 0)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	var out []*Instance
	for cur.Next() {
		out = append(out, d.Entity.hydrate(cur.Record()))
	}
	return out, cur.Err()
}
