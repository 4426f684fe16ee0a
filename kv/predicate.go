package kv

import "fmt"

// Operator is a scan comparison operator.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	return o >= OpEqual && o <= OpGreaterOrEqual
}

// Predicate is a (property, operator, value) filter.
type Predicate struct {
	Name  string
	Op    Operator
	Value any
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Name, p.Op, p.Value)
}

// Matches reports whether rec satisfies the predicate. Unindexed properties never
// match, mirroring stores that can only filter on indexed properties.
func (p Predicate) Matches(rec *Record) bool {
	prop, ok := rec.Properties[p.Name]
	if ok && !prop.Indexed {
		return false
	}
	return p.MatchesValue(prop.Value)
}

// MatchesValue evaluates the predicate against a single value. Missing and nil
// values only satisfy equality with nil (or inequality with a non-nil value).
func (p Predicate) MatchesValue(v any) bool {
	switch p.Op {
	case OpEqual:
		return Equal(v, p.Value)
	case OpNotEqual:
		return !Equal(v, p.Value)
	}
	if v == nil || p.Value == nil {
		return false
	}
	c, ok := Compare(v, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpLessThan:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	case OpGreaterThan:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	}
	return false
}

// MatchesAll reports whether rec satisfies every predicate.
func MatchesAll(rec *Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Matches(rec) {
			return false
		}
	}
	return true
}

// SliceCursor is a Cursor over records already in memory.
type SliceCursor struct {
	recs []*Record
	pos  int
	err  error
}

// NewSliceCursor returns a cursor over recs.
func NewSliceCursor(recs []*Record) *SliceCursor {
	return &SliceCursor{recs: recs, pos: -1}
}

// ErrCursor returns a cursor that yields nothing and reports err.
func ErrCursor(err error) *SliceCursor {
	return &SliceCursor{pos: -1, err: err}
}

func (c *SliceCursor) Next() bool {
	if c.err != nil || c.pos+1 >= len(c.recs) {
		c.pos = len(c.recs)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Record() *Record {
	if c.pos < 0 || c.pos >= len(c.recs) {
		return nil
	}
	return c.recs[c.pos]
}

func (c *SliceCursor) Err() error   { return c.err }
func (c *SliceCursor) Close() error { return nil }
