package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/place"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// ProfileSeeder is implemented by stores that can write public profiles.
type ProfileSeeder interface {
	PutProfile(ctx context.Context, p model.Profile) error
}

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
// The store must also implement ProfileSeeder.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	seeder, ok := s.(ProfileSeeder)
	if !ok {
		t.Fatalf("store %T does not implement ProfileSeeder", s)
	}

	// Unique test identifiers
	viewer := "u-" + uuid.New().String()
	near := "u-" + uuid.New().String()
	far := "u-" + uuid.New().String()
	stranger := "u-" + uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)
	day := place.DayKey(now)
	placeKey := "pk_" + uuid.New().String()[:8]
	otherPlace := "pk_" + uuid.New().String()[:8]

	for _, p := range []model.Profile{
		{ID: viewer, Username: "viewer", RelationshipGoals: []string{"friends", "dating"}},
		{ID: near, Username: "near", FullName: "Near Person", RelationshipGoals: []string{"friends"}},
		{ID: far, Username: "far", RelationshipGoals: []string{"networking"}},
		{ID: stranger, Username: "stranger"},
	} {
		if err := seeder.PutProfile(ctx, p); err != nil {
			t.Fatalf("PutProfile %s: %v", p.Username, err)
		}
	}

	// Visits
	visit := func(user, key string, at time.Time) {
		t.Helper()
		if err := s.Visits().Upsert(ctx, model.Visit{UserID: user, PlaceKey: key, DayKey: day, SeenAt: at, AddressLabel: "Main St • Springfield"}); err != nil {
			t.Fatalf("UpsertVisit %s: %v", user, err)
		}
	}
	visit(viewer, placeKey, now.Add(-3*time.Minute))
	visit(viewer, placeKey, now.Add(-2*time.Minute)) // idempotent on (user, day, place)
	visit(near, placeKey, now.Add(-time.Minute))
	visit(far, placeKey, now)
	visit(stranger, otherPlace, now)

	// Groups
	gs, err := s.Groups().List(ctx, viewer)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(gs) != 1 || gs[0].PlaceKey != placeKey || gs[0].DayKey != day {
		t.Fatalf("ListGroups: got=%+v", gs)
	}
	if d := gs[0].LastSeen.Sub(now); d < -time.Second || d > time.Second {
		t.Fatalf("ListGroups: last_seen=%v want≈%v", gs[0].LastSeen, now)
	}
	if gs, err := s.Groups().List(ctx, stranger); err != nil || len(gs) != 0 {
		t.Fatalf("ListGroups(stranger): n=%d err=%v", len(gs), err)
	}

	// People: shared intent outranks recency; pages do not overlap.
	q := model.PeopleQuery{DayKey: day, PlaceKey: placeKey, Limit: 1}
	p1, err := s.Groups().People(ctx, viewer, q)
	if err != nil || len(p1) != 1 {
		t.Fatalf("People page1: n=%d err=%v", len(p1), err)
	}
	if p1[0].UserID != near || !p1[0].SameIntent || p1[0].MatchPercent != 50 {
		t.Fatalf("People page1: got=%+v", p1[0])
	}
	c := p1[0].Cursor()
	q.Cursor = &c
	p2, err := s.Groups().People(ctx, viewer, q)
	if err != nil || len(p2) != 1 {
		t.Fatalf("People page2: n=%d err=%v", len(p2), err)
	}
	if p2[0].UserID != far || p2[0].SameIntent || p2[0].MatchPercent != 0 {
		t.Fatalf("People page2: got=%+v", p2[0])
	}
	c = p2[0].Cursor()
	q.Cursor = &c
	if p3, err := s.Groups().People(ctx, viewer, q); err != nil || len(p3) != 0 {
		t.Fatalf("People page3: n=%d err=%v", len(p3), err)
	}
	// A viewer who was not at the place sees nobody.
	if ps, err := s.Groups().People(ctx, stranger, model.PeopleQuery{DayKey: day, PlaceKey: placeKey, Limit: 10}); err != nil || len(ps) != 0 {
		t.Fatalf("People(stranger): n=%d err=%v", len(ps), err)
	}

	// Edges
	edge := model.Edge{UserID: viewer, CrossedUserID: near, AddressLabel: "Main St", AddressKey: placeKey, DayKey: day, SeenAt: now.Add(-time.Hour)}
	if err := s.Edges().Upsert(ctx, []model.Edge{edge}); err != nil {
		t.Fatalf("UpsertEdges: %v", err)
	}
	edge.SeenAt = now
	if err := s.Edges().Upsert(ctx, []model.Edge{edge}); err != nil {
		t.Fatalf("UpsertEdges again: %v", err)
	}
	es, err := s.Edges().ListSince(ctx, viewer, now.Add(-24*time.Hour))
	if err != nil || len(es) != 1 {
		t.Fatalf("ListEdges: n=%d err=%v", len(es), err)
	}
	if es[0].CrossedUserID != near || !es[0].SeenAt.Equal(now) {
		t.Fatalf("ListEdges: got=%+v", es[0])
	}
	if es, err := s.Edges().ListSince(ctx, viewer, now.Add(time.Hour)); err != nil || len(es) != 0 {
		t.Fatalf("ListEdges(future): n=%d err=%v", len(es), err)
	}
}
