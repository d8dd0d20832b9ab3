package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
	"github.com/crossedpaths/crossedpaths/server/internal/store/storetest"
)

func TestMemStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestOverlap(t *testing.T) {
	s, u := overlap([]string{"a", "b"}, []string{"b", "c", "c"})
	assert.Equal(t, 1, s)
	assert.Equal(t, 3, u)
	s, u = overlap(nil, nil)
	assert.Zero(t, s)
	assert.Zero(t, u)
}

func TestDrop_ClassifiesMissing(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Drop(store.TableVisits)
	s.Drop(store.RoutineGroups)

	err := s.Visits().Upsert(ctx, model.Visit{UserID: "u"})
	assert.Equal(t, store.SchemaMissing, store.ClassOf(err))
	_, err = s.Groups().List(ctx, "u")
	assert.Equal(t, store.RoutineMissing, store.ClassOf(err))

	s.Fail(store.TableVisits, nil)
	assert.NoError(t, s.Visits().Upsert(ctx, model.Visit{UserID: "u"}))
	assert.Equal(t, 1, s.VisitCount())
}

func TestFail_PropagatesGenuineErrors(t *testing.T) {
	s := New()
	boom := errors.New("permission denied")
	s.Fail(store.TableEdges, boom)
	_, err := s.Edges().ListSince(context.Background(), "u", time.Time{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.IsMissing(err))
}

func TestGroups_RetentionWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	old := now.Add(-8 * 24 * time.Hour)
	require.NoError(t, s.Visits().Upsert(ctx, model.Visit{UserID: "a", DayKey: "2025-03-02", PlaceKey: "pk_1", SeenAt: old}))
	require.NoError(t, s.Visits().Upsert(ctx, model.Visit{UserID: "b", DayKey: "2025-03-02", PlaceKey: "pk_1", SeenAt: old}))
	require.NoError(t, s.Visits().Upsert(ctx, model.Visit{UserID: "a", DayKey: "2025-03-10", PlaceKey: "pk_2", SeenAt: now}))
	require.NoError(t, s.Visits().Upsert(ctx, model.Visit{UserID: "b", DayKey: "2025-03-10", PlaceKey: "pk_2", SeenAt: now}))

	gs, err := s.Groups().List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, "pk_2", gs[0].PlaceKey)
}

func TestPeople_SkipsUsersWithoutProfiles(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.PutProfile(ctx, model.Profile{ID: "b", Username: "b"}))
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, s.Visits().Upsert(ctx, model.Visit{UserID: u, DayKey: "d", PlaceKey: "p", SeenAt: now}))
	}
	ps, err := s.Groups().People(ctx, "a", model.PeopleQuery{DayKey: "d", PlaceKey: "p", Limit: 10})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "b", ps[0].UserID)
	assert.NotNil(t, ps[0].RelationshipGoals)
}
