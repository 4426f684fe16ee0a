package store_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/jacentio/arbor/kv"
	"github.com/jacentio/arbor/store"
)

func TestTypes_RoundTrip(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.FixedZone("CEST", 2*60*60))

	tests := []struct {
		name  string
		typ   store.Type
		value any
		want  any
	}{
		{"string", store.String, "hello", "hello"},
		{"empty string", store.String, "", ""},
		{"int", store.Int, 42, int64(42)},
		{"negative int", store.Int, int64(-7), int64(-7)},
		{"max int", store.Int, int64(math.MaxInt64), int64(math.MaxInt64)},
		{"float", store.Float, 1.5, 1.5},
		{"float32", store.Float, float32(0.25), 0.25},
		{"bool", store.Bool, true, true},
		{"time", store.Time, when, when.UTC()},
		{"bytes", store.Bytes, []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"string list", store.StringList, []string{"a", "b"}, []string{"a", "b"}},
		{"nil string list", store.StringList, []string(nil), []string{}},
		{"json object", store.JSON, map[string]any{"a": 1, "b": []string{"x"}}, map[string]any{"a": 1.0, "b": []any{"x"}}},
		{"json string", store.JSON, "https://example.com", "https://example.com"},
		{"ref", store.Ref, 9, int64(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.typ.Normalize(tt.value)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			p, err := tt.typ.ToPrimitive(v)
			if err != nil {
				t.Fatalf("to primitive: %v", err)
			}
			if !kv.IsNative(p) {
				t.Fatalf("expected native primitive, got %T", p)
			}
			got, err := tt.typ.ToObject(p)
			if err != nil {
				t.Fatalf("to object: %v", err)
			}
			if tm, ok := tt.want.(time.Time); ok {
				if !tm.Equal(got.(time.Time)) || got.(time.Time).Location() != time.UTC {
					t.Errorf("expected %s in UTC, got %s", tm, got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestTypes_NumbersReadBackAcrossWidths(t *testing.T) {
	got, err := store.Float.ToObject(int64(3))
	if err != nil || got != 3.0 {
		t.Errorf("expected float 3, got %v (%v)", got, err)
	}
	got, err = store.Int.ToObject(4.0)
	if err != nil || got != int64(4) {
		t.Errorf("expected int 4, got %v (%v)", got, err)
	}
	if _, err := store.Int.ToObject(4.5); !errors.Is(err, store.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for fractional int, got %v", err)
	}
	for _, f := range []float64{1e19, -1e19, math.MaxInt64} {
		if _, err := store.Int.ToObject(f); !errors.Is(err, store.ErrTypeMismatch) {
			t.Errorf("expected ErrTypeMismatch for %v, got %v", f, err)
		}
	}
	got, err = store.Int.ToObject(float64(math.MinInt64))
	if err != nil || got != int64(math.MinInt64) {
		t.Errorf("expected min int64, got %v (%v)", got, err)
	}
}

func TestTypes_Mismatch(t *testing.T) {
	tests := []struct {
		name  string
		typ   store.Type
		value any
	}{
		{"string", store.String, 1},
		{"int", store.Int, "1"},
		{"int overflow", store.Int, uint64(math.MaxUint64)},
		{"float", store.Float, 1},
		{"bool", store.Bool, "true"},
		{"time", store.Time, "2024-01-01"},
		{"bytes", store.Bytes, "abc"},
		{"string list", store.StringList, []int{1}},
		{"json", store.JSON, make(chan int)},
		{"ref", store.Ref, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.typ.Normalize(tt.value); !errors.Is(err, store.ErrTypeMismatch) {
				t.Errorf("expected ErrTypeMismatch, got %v", err)
			}
		})
	}
}

func TestField_NilPassesThrough(t *testing.T) {
	s := newTestSchema(t)

	p, err := s.userAge.ToPrimitive(nil)
	if err != nil || p != nil {
		t.Errorf("expected nil primitive, got %v (%v)", p, err)
	}
	v, err := s.userAge.ToObject(nil)
	if err != nil || v != nil {
		t.Errorf("expected nil object, got %v (%v)", v, err)
	}
}

func TestField_Accessors(t *testing.T) {
	s := newTestSchema(t)

	if s.userEmail.String() != "user.email" {
		t.Errorf("expected 'user.email', got %q", s.userEmail.String())
	}
	if got := s.userEmail.Constraints().String(); got != "MANDATORY|UNIQUE|READ_ONLY" {
		t.Errorf("unexpected constraints %q", got)
	}
	if !s.userTeam.IsForeignKey() || s.userTeam.Target() != s.teams.Entity || s.userTeam.OnDelete() != store.Cascade {
		t.Error("expected user.team to reference team with CASCADE")
	}
	if s.userName.IsForeignKey() {
		t.Error("expected user.name not to be a foreign key")
	}
	if s.userRole.Default() == nil || s.userRole.Default().Generate() != "member" {
		t.Error("expected default generator for role")
	}
	if !s.users.ID.IsAutoGenerated() || !s.users.ID.IsUnique() {
		t.Error("expected identity to be auto-generated and unique")
	}
}

func TestTime_NormalizesToUTC(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 9, 1, time.FixedZone("CEST", 2*60*60))

	v, err := store.Time.Normalize(when)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if v.(time.Time).Location() != time.UTC {
		t.Errorf("expected UTC, got %s", v.(time.Time).Location())
	}
	p, err := store.Time.ToPrimitive(v)
	if err != nil {
		t.Fatalf("to primitive: %v", err)
	}
	got, err := store.Time.ToObject(p)
	if err != nil {
		t.Fatalf("to object: %v", err)
	}
	if got != v {
		t.Errorf("expected %v, got %v", v, got)
	}
}
