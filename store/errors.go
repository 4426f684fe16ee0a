package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMandatory is returned when a mandatory field has no value at set or commit time.
	ErrMandatory = errors.New("arbor: mandatory constraint violated")

	// ErrUnique is returned when another record already holds a unique value or key tuple.
	ErrUnique = errors.New("arbor: unique constraint violated")

	// ErrReadOnly is returned when a read-only field of a persisted record is set.
	ErrReadOnly = errors.New("arbor: read-only constraint violated")

	// ErrAutoGenerated is returned when an auto-generated field is set directly.
	ErrAutoGenerated = errors.New("arbor: auto-generated constraint violated")

	// ErrReferentialRestriction is returned when a RESTRICT foreign key blocks a delete.
	ErrReferentialRestriction = errors.New("arbor: referential constraint violated")

	// ErrTypeMismatch is returned when a value does not match the field type.
	ErrTypeMismatch = errors.New("arbor: value does not match field type")

	// ErrIllegalArgument is returned for invalid arguments such as setting the identity.
	ErrIllegalArgument = errors.New("arbor: illegal argument")

	// ErrIllegalUsage is returned when an operation precondition is not met.
	ErrIllegalUsage = errors.New("arbor: illegal usage")

	// ErrIntegrity signals a broken internal invariant. It indicates a programming
	// or schema error and is never expected in correct usage.
	ErrIntegrity = errors.New("arbor: integrity error")
)

// ConstraintError describes a field or unique-constraint violation. It unwraps to
// one of the constraint sentinels (ErrMandatory, ErrUnique, ErrReadOnly, ErrAutoGenerated).
type ConstraintError struct {
	Kind   error
	Entity string
	Fields []string
	Value  any
}

func (e *ConstraintError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	sb.WriteString(": ")
	sb.WriteString(e.Entity)
	if len(e.Fields) == 1 {
		sb.WriteString(".")
		sb.WriteString(e.Fields[0])
	} else {
		sb.WriteString("(")
		sb.WriteString(strings.Join(e.Fields, ", "))
		sb.WriteString(")")
	}
	if e.Value != nil {
		fmt.Fprintf(&sb, " = %v", e.Value)
	}
	return sb.String()
}

func (e *ConstraintError) Unwrap() error { return e.Kind }

// ReferentialError reports the record that blocked a delete.
type ReferentialError struct {
	Entity    string
	ID        int64
	Related   string
	RelatedID int64
	Field     string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s: %s %d cannot be deleted because %s %d references it through %s",
		ErrReferentialRestriction, e.Entity, e.ID, e.Related, e.RelatedID, e.Field)
}

func (e *ReferentialError) Unwrap() error { return ErrReferentialRestriction }

func fieldError(kind error, f *Field, value any) error {
	return &ConstraintError{Kind: kind, Entity: f.entity.name, Fields: []string{f.name}, Value: value}
}

func integrityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalUsage, fmt.Sprintf(format, args...))
}
