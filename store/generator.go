package store

import "time"

// ValueGenerator produces a field's default value at insert time.
type ValueGenerator interface {
	Generate() any
}

// GeneratorFunc adapts a function to ValueGenerator.
type GeneratorFunc func() any

func (f GeneratorFunc) Generate() any { return f() }

// Const always generates v.
func Const(v any) ValueGenerator {
	return GeneratorFunc(func() any { return v })
}

// Now generates the current time from clock, or time.Now when clock is nil.
func Now(clock func() time.Time) ValueGenerator {
	if clock == nil {
		clock = time.Now
	}
	return GeneratorFunc(func() any { return clock() })
}
