package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Type maps a field's semantic Go value to the store's native representation and back.
// Implementations must round-trip losslessly: ToObject(ToPrimitive(v)) equals v.
type Type interface {
	// Name is the type name used in messages.
	Name() string

	// Normalize checks v and converts it to the canonical Go value for the type
	// (for example int to int64). nil is never passed.
	Normalize(v any) (any, error)

	// ToPrimitive converts a canonical value to a kv native value.
	ToPrimitive(v any) (any, error)

	// ToObject converts a kv native value back to the canonical value.
	ToObject(p any) (any, error)
}

// Built-in field types.
var (
	String     Type = stringType{}
	Int        Type = intType{}
	Float      Type = floatType{}
	Bool       Type = boolType{}
	Time       Type = timeType{}
	Bytes      Type = bytesType{}
	StringList Type = stringListType{}
	JSON       Type = jsonType{}

	// Ref holds the identity of a record of another entity. Values may be given
	// as integers or as persisted records.
	Ref Type = refType{}
)

func mismatch(t Type, v any) error {
	return fmt.Errorf("%w: %s cannot hold %T", ErrTypeMismatch, t.Name(), v)
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (t stringType) Normalize(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, mismatch(t, v)
}

func (t stringType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }
func (t stringType) ToObject(p any) (any, error)    { return t.Normalize(p) }

type intType struct{}

func (intType) Name() string { return "int" }

func (t intType) Normalize(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), nil
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	}
	return nil, mismatch(t, v)
}

func (t intType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }

func (t intType) ToObject(p any) (any, error) {
	if f, ok := p.(float64); ok && f == math.Trunc(f) {
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: %v overflows int64", ErrTypeMismatch, f)
		}
		return int64(f), nil
	}
	return t.Normalize(p)
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (t floatType) Normalize(v any) (any, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	}
	return nil, mismatch(t, v)
}

func (t floatType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }

func (t floatType) ToObject(p any) (any, error) {
	if n, ok := p.(int64); ok {
		return float64(n), nil
	}
	return t.Normalize(p)
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (t boolType) Normalize(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, mismatch(t, v)
}

func (t boolType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }
func (t boolType) ToObject(p any) (any, error)    { return t.Normalize(p) }

// timeType stores instants as unix nanoseconds. Values are normalized to UTC,
// so a round trip returns the normalized value.
type timeType struct{}

var (
	minTime = time.Unix(0, math.MinInt64)
	maxTime = time.Unix(0, math.MaxInt64)
)

func (timeType) Name() string { return "time" }

func (t timeType) Normalize(v any) (any, error) {
	tv, ok := v.(time.Time)
	if !ok {
		return nil, mismatch(t, v)
	}
	if tv.Before(minTime) || tv.After(maxTime) {
		return nil, fmt.Errorf("%w: time %s out of range", ErrTypeMismatch, tv)
	}
	return tv.UTC(), nil
}

func (t timeType) ToPrimitive(v any) (any, error) {
	n, err := t.Normalize(v)
	if err != nil {
		return nil, err
	}
	return n.(time.Time).UnixNano(), nil
}

func (t timeType) ToObject(p any) (any, error) {
	n, err := Int.ToObject(p)
	if err != nil {
		return nil, mismatch(t, p)
	}
	return time.Unix(0, n.(int64)).UTC(), nil
}

type bytesType struct{}

func (bytesType) Name() string { return "bytes" }

func (t bytesType) Normalize(v any) (any, error) {
	if b, ok := v.([]byte); ok {
		return bytes.Clone(b), nil
	}
	return nil, mismatch(t, v)
}

func (t bytesType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }
func (t bytesType) ToObject(p any) (any, error)    { return t.Normalize(p) }

type stringListType struct{}

func (stringListType) Name() string { return "string list" }

func (t stringListType) Normalize(v any) (any, error) {
	if l, ok := v.([]string); ok {
		if l == nil {
			return []string{}, nil
		}
		return slices.Clone(l), nil
	}
	return nil, mismatch(t, v)
}

func (t stringListType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }
func (t stringListType) ToObject(p any) (any, error)    { return t.Normalize(p) }

// jsonType holds any JSON-encodable value. Values are canonicalized to their
// decoded form (string, float64, bool, []any, map[string]any) so that a value
// reads the same before and after it is persisted.
type jsonType struct{}

func (jsonType) Name() string { return "json" }

func (t jsonType) Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrTypeMismatch, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrTypeMismatch, err)
	}
	return out, nil
}

func (t jsonType) ToPrimitive(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrTypeMismatch, err)
	}
	return string(b), nil
}

func (t jsonType) ToObject(p any) (any, error) {
	s, ok := p.(string)
	if !ok {
		return nil, mismatch(t, p)
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrTypeMismatch, err)
	}
	return out, nil
}

type refType struct{}

func (refType) Name() string { return "ref" }

func (t refType) Normalize(v any) (any, error) {
	if r, ok := v.(Record); ok {
		i := r.instance()
		if i == nil || !i.IsPersisted() {
			return nil, fmt.Errorf("%w: referenced record has not been persisted", ErrIllegalArgument)
		}
		return i.ID(), nil
	}
	n, err := Int.Normalize(v)
	if err != nil {
		return nil, mismatch(t, v)
	}
	if n.(int64) < 1 {
		return nil, fmt.Errorf("%w: invalid reference %d", ErrIllegalArgument, n)
	}
	return n, nil
}

func (t refType) ToPrimitive(v any) (any, error) { return t.Normalize(v) }

func (t refType) ToObject(p any) (any, error) {
	return Int.ToObject(p)
}
