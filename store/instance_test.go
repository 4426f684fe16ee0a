package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jacentio/arbor/store"
)

func TestSet_Validation(t *testing.T) {
	s := newTestSchema(t)
	persisted := s.user(t, "ann@example.com", nil)

	tests := []struct {
		name    string
		rec     store.Record
		field   *store.Field
		value   any
		wantErr error
	}{
		{"foreign field", s.users.New(), s.teamName, "core", store.ErrIntegrity},
		{"nil field", s.users.New(), nil, "x", store.ErrIllegalArgument},
		{"identity", s.users.New(), s.users.ID, 7, store.ErrIllegalArgument},
		{"type mismatch", s.users.New(), s.userName, 42, store.ErrTypeMismatch},
		{"mandatory nil", s.users.New(), s.userEmail, nil, store.ErrMandatory},
		{"read-only once persisted", persisted, s.userEmail, "bob@example.com", store.ErrReadOnly},
		{"system read-only once persisted", persisted, s.users.TimeCreated, s.clock.t, store.ErrReadOnly},
		{"unpersisted reference", s.users.New(), s.userTeam, s.teams.New(), store.ErrIllegalArgument},
		{"reference below one", s.users.New(), s.userTeam, 0, store.ErrIllegalArgument},
		{"reference to another entity", s.users.New(), s.userTeam, persisted, store.ErrTypeMismatch},
		{"reference to another entity on a typed repo", s.badges.New(), s.badgeHolder, s.team(t, "ops"), store.ErrTypeMismatch},
		{"read-only before persisted", s.users.New(), s.userEmail, "bob@example.com", nil},
		{"optional nil", s.users.New(), s.userName, nil, nil},
		{"widened int", s.users.New(), s.userAge, int32(30), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := instanceOf(tt.rec)
			err := i.Set(tt.field, tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func instanceOf(r store.Record) *store.Instance {
	switch v := r.(type) {
	case User:
		return v.Instance
	case Team:
		return v.Instance
	case *store.Instance:
		return v
	}
	return nil
}

func TestSet_CheckOrder(t *testing.T) {
	s := newTestSchema(t)
	u := s.user(t, "ann@example.com", nil)

	// Type is checked before read-only.
	if err := u.Set(s.userEmail, 1); !errors.Is(err, store.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	// Mandatory is checked before read-only.
	if err := u.Set(s.userEmail, nil); !errors.Is(err, store.ErrMandatory) {
		t.Errorf("expected ErrMandatory, got %v", err)
	}
}

func TestSet_CollapsesToPersistedValue(t *testing.T) {
	s := newTestSchema(t)
	u := s.user(t, "ann@example.com", nil)

	mustSet(t, u, s.userName, "Ann")
	if !u.HasPendingUpdates() {
		t.Fatal("expected pending update")
	}
	mustSet(t, u, s.userName, nil)
	if u.HasPendingUpdates() {
		t.Error("expected setting back to the persisted nil to clear the update")
	}

	mustSet(t, u, s.userAge, 30)
	if _, err := s.users.Update(context.Background(), u); err != nil {
		t.Fatalf("update: %v", err)
	}
	mustSet(t, u, s.userAge, int64(30))
	if u.HasPendingUpdates() {
		t.Error("expected equal value of another int width to collapse")
	}
}

func TestPendingFields_DeclarationOrder(t *testing.T) {
	s := newTestSchema(t)
	u := s.user(t, "ann@example.com", nil)

	mustSet(t, u, s.userNotes, "hi")
	mustSet(t, u, s.userAge, 30)
	mustSet(t, u, s.userName, "Ann")

	var names []string
	for _, f := range u.PendingFields() {
		names = append(names, f.Name())
	}
	if got := strings.Join(names, ","); got != "name,age,notes" {
		t.Errorf("expected name,age,notes, got %s", got)
	}
}

func TestValue_DefaultNotMaterialized(t *testing.T) {
	s := newTestSchema(t)
	u := s.users.New()

	if got := store.Get[string](u, s.userRole); got != "member" {
		t.Errorf("expected default 'member', got %q", got)
	}
	if u.HasPendingUpdates() {
		t.Error("expected reading a default to leave nothing pending")
	}
	if v := u.Get(s.users.ID); v != nil {
		t.Errorf("expected nil identity before insert, got %v", v)
	}
}

func TestValue_Identity(t *testing.T) {
	s := newTestSchema(t)
	u := s.user(t, "ann@example.com", nil)

	if got := store.Get[int64](u, s.users.ID); got != u.ID() {
		t.Errorf("expected identity %d, got %d", u.ID(), got)
	}
}

func TestNaturalKeyAsQueryArgs(t *testing.T) {
	s := newTestSchema(t)

	seat := s.seats.New()
	mustSet(t, seat, s.seatRow, "A")
	mustSet(t, seat, s.seatNumber, 3)

	args, err := seat.NaturalKeyAsQueryArgs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if args[0].Field != s.seatRow || args[0].Value != "A" || args[0].Op != store.OpEqual {
		t.Errorf("unexpected first arg %s", args[0])
	}
	if args[1].Field != s.seatNumber || args[1].Value != int64(3) {
		t.Errorf("unexpected second arg %s", args[1])
	}

	if _, err := s.projects.New().NaturalKeyAsQueryArgs(); !errors.Is(err, store.ErrIllegalUsage) {
		t.Errorf("expected ErrIllegalUsage without natural key, got %v", err)
	}
}

func TestInstance_String(t *testing.T) {
	s := newTestSchema(t)
	tm := s.team(t, "core")

	got := tm.String()
	if !strings.HasPrefix(got, "team:") || !strings.Contains(got, "[name=core]") {
		t.Errorf("unexpected string %q", got)
	}
}

func TestTimestamps_BeforeInsert(t *testing.T) {
	s := newTestSchema(t)
	u := s.users.New()

	if !u.TimeCreated().Equal(s.clock.t) || !u.TimeUpdated().Equal(s.clock.t) {
		t.Errorf("expected clock time %s, got %s and %s", s.clock.t, u.TimeCreated(), u.TimeUpdated())
	}
	if u.HasPendingUpdates() {
		t.Error("expected reading timestamps to leave nothing pending")
	}
}
