package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jacentio/arbor/kv/memkv"
	"github.com/jacentio/arbor/store"
)

// --- Test Schema ---

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type Team struct{ *store.Instance }

type User struct{ *store.Instance }

type Project struct{ *store.Instance }

type Badge struct{ *store.Instance }

type Seat struct{ *store.Instance }

// testSchema wires a small schema exercising every on-delete policy:
//
//	team <-CASCADE- user <-RESTRICT- project
//	                user <-SET_NULL- badge
//	seat (row, number) composite natural key
//	node <-CASCADE- node (self reference)
type testSchema struct {
	kv    *memkv.Store
	es    *store.Entities
	clock *clock

	teams    *store.Repo[Team]
	teamName *store.Field

	users     *store.Repo[User]
	userEmail *store.Field
	userName  *store.Field
	userRole  *store.Field
	userAge   *store.Field
	userTeam  *store.Field
	userNotes *store.Field

	projects     *store.Repo[Project]
	projectTitle *store.Field
	projectOwner *store.Field

	badges      *store.Repo[Badge]
	badgeLabel  *store.Field
	badgeHolder *store.Field

	seats      *store.Repo[Seat]
	seatRow    *store.Field
	seatNumber *store.Field
	seatHolder *store.Field

	nodes      *store.Repo[*store.Instance]
	nodeParent *store.Field
}

func newTestSchema(t *testing.T) *testSchema {
	t.Helper()

	s := &testSchema{
		kv:    memkv.New(),
		clock: &clock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	cfg := store.DefaultConfig()
	cfg.Clock = s.clock.Now
	s.es = store.NewEntities(s.kv, cfg)

	s.teams = store.Define(s.es, "team", func(i *store.Instance) Team { return Team{i} })
	s.teamName = s.teams.AddField("name", store.String, store.Indexed(), store.Mandatory(), store.Unique())
	s.teams.SetNaturalKey(s.teamName)

	s.users = store.Define(s.es, "user", func(i *store.Instance) User { return User{i} })
	s.userEmail = s.users.AddField("email", store.String, store.Indexed(), store.Mandatory(), store.Unique(), store.ReadOnly())
	s.userName = s.users.AddField("name", store.String, store.Indexed())
	s.userRole = s.users.AddField("role", store.String, store.Indexed(), store.Mandatory(), store.Default("member"))
	s.userAge = s.users.AddField("age", store.Int, store.Indexed())
	s.userTeam = s.users.AddReference("team", "team", store.Cascade)
	s.userNotes = s.users.AddField("notes", store.String)
	s.users.SetNaturalKey(s.userEmail)

	s.projects = store.Define(s.es, "project", func(i *store.Instance) Project { return Project{i} })
	s.projectTitle = s.projects.AddField("title", store.String, store.Indexed(), store.Mandatory())
	s.projectOwner = s.projects.AddReference("owner", "user", store.Restrict, store.Mandatory())

	s.badges = store.Define(s.es, "badge", func(i *store.Instance) Badge { return Badge{i} })
	s.badgeLabel = s.badges.AddField("label", store.String, store.Indexed())
	s.badgeHolder = s.badges.AddReference("holder", "user", store.SetNull)

	s.seats = store.Define(s.es, "seat", func(i *store.Instance) Seat { return Seat{i} })
	s.seatRow = s.seats.AddField("row", store.String, store.Indexed(), store.Mandatory())
	s.seatNumber = s.seats.AddField("number", store.Int, store.Indexed())
	s.seatHolder = s.seats.AddField("holder", store.String, store.Indexed())
	s.seats.SetNaturalKey(s.seatRow, s.seatNumber)

	s.nodes = store.Define(s.es, "node", store.Self)
	s.nodeParent = s.nodes.AddReference("parent", "node", store.Cascade)

	if err := s.es.Load(); err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return s
}

func (s *testSchema) team(t *testing.T, name string) Team {
	t.Helper()
	tm := s.teams.New()
	mustSet(t, tm, s.teamName, name)
	if err := s.teams.Insert(context.Background(), tm); err != nil {
		t.Fatalf("insert team %q: %v", name, err)
	}
	return tm
}

func (s *testSchema) user(t *testing.T, email string, team store.Record) User {
	t.Helper()
	u := s.users.New()
	mustSet(t, u, s.userEmail, email)
	if team != nil {
		mustSet(t, u, s.userTeam, team)
	}
	if err := s.users.Insert(context.Background(), u); err != nil {
		t.Fatalf("insert user %q: %v", email, err)
	}
	return u
}

func (s *testSchema) project(t *testing.T, title string, owner store.Record) Project {
	t.Helper()
	p := s.projects.New()
	mustSet(t, p, s.projectTitle, title)
	mustSet(t, p, s.projectOwner, owner)
	if err := s.projects.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert project %q: %v", title, err)
	}
	return p
}

func (s *testSchema) badge(t *testing.T, label string, holder store.Record) Badge {
	t.Helper()
	b := s.badges.New()
	mustSet(t, b, s.badgeLabel, label)
	mustSet(t, b, s.badgeHolder, holder)
	if err := s.badges.Insert(context.Background(), b); err != nil {
		t.Fatalf("insert badge %q: %v", label, err)
	}
	return b
}

type setter interface {
	Set(f *store.Field, v any) error
}

func mustSet(t *testing.T, r setter, f *store.Field, v any) {
	t.Helper()
	if err := r.Set(f, v); err != nil {
		t.Fatalf("set %s: %v", f, err)
	}
}
