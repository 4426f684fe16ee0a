package store

import (
	"fmt"
	"strings"
)

// Constraint is a set of field constraints.
type Constraint uint8

const (
	// ConstraintMandatory forbids nil values.
	ConstraintMandatory Constraint = 1 << iota
	// ConstraintUnique forbids two records sharing a non-nil value.
	ConstraintUnique
	// ConstraintReadOnly freezes the field once the record is persisted.
	ConstraintReadOnly
	// ConstraintAutoGenerated marks values only the repository may assign.
	ConstraintAutoGenerated
)

func (c Constraint) String() string {
	var parts []string
	if c&ConstraintMandatory != 0 {
		parts = append(parts, "MANDATORY")
	}
	if c&ConstraintUnique != 0 {
		parts = append(parts, "UNIQUE")
	}
	if c&ConstraintReadOnly != 0 {
		parts = append(parts, "READ_ONLY")
	}
	if c&ConstraintAutoGenerated != 0 {
		parts = append(parts, "AUTO_GENERATED")
	}
	return strings.Join(parts, "|")
}

// OnDelete is the policy applied to referencing records when their target is deleted.
type OnDelete int

const (
	// Cascade deletes the referencing record.
	Cascade OnDelete = iota + 1
	// Restrict blocks the delete.
	Restrict
	// SetNull clears the foreign key on the referencing record.
	SetNull
)

func (o OnDelete) String() string {
	switch o {
	case Cascade:
		return "CASCADE"
	case Restrict:
		return "RESTRICT"
	case SetNull:
		return "SET_NULL"
	}
	return fmt.Sprintf("OnDelete(%d)", int(o))
}

func (o OnDelete) valid() bool {
	return o >= Cascade && o <= SetNull
}

// Field describes one typed column of an entity. Fields are immutable once added.
type Field struct {
	entity      *Entity
	name        string
	typ         Type
	indexed     bool
	constraints Constraint
	def         ValueGenerator

	targetName string
	target     *Entity
	onDelete   OnDelete
}

// FieldOption configures a field when it is added to an entity.
type FieldOption func(*Field)

// Indexed makes the field usable in scan filters.
func Indexed() FieldOption {
	return func(f *Field) { f.indexed = true }
}

// Mandatory adds ConstraintMandatory.
func Mandatory() FieldOption {
	return func(f *Field) { f.constraints |= ConstraintMandatory }
}

// Unique adds ConstraintUnique. Unique fields must also be indexed.
func Unique() FieldOption {
	return func(f *Field) { f.constraints |= ConstraintUnique }
}

// ReadOnly adds ConstraintReadOnly.
func ReadOnly() FieldOption {
	return func(f *Field) { f.constraints |= ConstraintReadOnly }
}

// AutoGenerated adds ConstraintAutoGenerated. Only the identity field supports
// generation; declaring it on any other field fails schema loading.
func AutoGenerated() FieldOption {
	return func(f *Field) { f.constraints |= ConstraintAutoGenerated }
}

// Default sets a constant default applied at insert when the field is unset.
func Default(v any) FieldOption {
	return func(f *Field) { f.def = Const(v) }
}

// DefaultFunc sets a generated default applied at insert when the field is unset.
func DefaultFunc(gen ValueGenerator) FieldOption {
	return func(f *Field) { f.def = gen }
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Entity returns the entity the field belongs to.
func (f *Field) Entity() *Entity { return f.entity }

// Type returns the field type.
func (f *Field) Type() Type { return f.typ }

// Constraints returns the field's constraint set.
func (f *Field) Constraints() Constraint { return f.constraints }

func (f *Field) IsIndexed() bool       { return f.indexed }
func (f *Field) IsMandatory() bool     { return f.constraints&ConstraintMandatory != 0 }
func (f *Field) IsUnique() bool        { return f.constraints&ConstraintUnique != 0 }
func (f *Field) IsReadOnly() bool      { return f.constraints&ConstraintReadOnly != 0 }
func (f *Field) IsAutoGenerated() bool { return f.constraints&ConstraintAutoGenerated != 0 }

// Default returns the default generator, or nil.
func (f *Field) Default() ValueGenerator { return f.def }

// IsForeignKey reports whether the field references another entity.
func (f *Field) IsForeignKey() bool { return f.targetName != "" }

// Target returns the referenced entity. It is nil until the schema is loaded.
func (f *Field) Target() *Entity { return f.target }

// OnDelete returns the foreign key's on-delete policy.
func (f *Field) OnDelete() OnDelete { return f.onDelete }

func (f *Field) String() string {
	if f.entity == nil {
		return f.name
	}
	return f.entity.name + "." + f.name
}

// ToPrimitive converts a field value to the store's native representation.
func (f *Field) ToPrimitive(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	p, err := f.typ.ToPrimitive(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f, err)
	}
	return p, nil
}

// ToObject converts a native value read from the store to the field's Go value.
func (f *Field) ToObject(p any) (any, error) {
	if p == nil {
		return nil, nil
	}
	v, err := f.typ.ToObject(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f, err)
	}
	return v, nil
}

// normalize converts a caller-supplied value to the field's canonical form.
func (f *Field) normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if r, ok := v.(Record); ok && f.target != nil {
		if i := r.instance(); i != nil && i.entity != f.target {
			return nil, fmt.Errorf("%s: %w: %s record is not a %s", f, ErrTypeMismatch, i.entity.name, f.target.name)
		}
	}
	n, err := f.typ.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f, err)
	}
	return n, nil
}

// Eq returns an equality argument on this field.
func (f *Field) Eq(v any) QueryArg {
	return QueryArg{Field: f, Op: OpEqual, Value: v}
}

// Arg returns an argument on this field with the given operator.
func (f *Field) Arg(op Operator, v any) QueryArg {
	return QueryArg{Field: f, Op: op, Value: v}
}
