package kv

import (
	"bytes"
	"slices"
	"strings"
)

// IsNative reports whether v is one of the value types every Store must round-trip:
// nil, bool, int64, float64, string, []byte or []string.
func IsNative(v any) bool {
	switch v.(type) {
	case nil, bool, int64, float64, string, []byte, []string:
		return true
	}
	return false
}

// Equal compares two native values. Integral numbers compare equal across
// int64 and float64 since some backends do not keep the distinction.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int64, float64:
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(av, bv)
	}
	return false
}

// Compare orders two native values of the same family. The boolean result is
// false when the values are not comparable (different families, nil, lists).
func Compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64, float64:
		return compareNumbers(a, b)
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case []byte:
		bv, ok := b.([]byte)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func compareNumbers(a, b any) (int, bool) {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	}
	af, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	bf, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return bytes.Clone(t)
	case []string:
		return slices.Clone(t)
	}
	return v
}
