package crossedpaths

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// seedGroup puts the viewer and n others at one place. Goals and timestamps repeat so
// many rows tie on every field but user id.
func seedGroup(t *testing.T, f *fixture, day, placeKey string, n int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.remote.PutProfile(ctx, model.Profile{ID: "viewer", RelationshipGoals: []string{"friends", "dating"}}))
	require.NoError(t, f.remote.Visits().Upsert(ctx, model.Visit{UserID: "viewer", DayKey: day, PlaceKey: placeKey, SeenAt: testNow.Add(-time.Hour), AddressLabel: "Cafe"}))
	goals := [][]string{{"friends"}, {"dating", "friends"}, {"networking"}, nil}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%02d", i)
		require.NoError(t, f.remote.PutProfile(ctx, model.Profile{ID: id, Username: id, RelationshipGoals: goals[i%len(goals)]}))
		seenAt := testNow.Add(-time.Duration(i%3) * time.Minute)
		require.NoError(t, f.remote.Visits().Upsert(ctx, model.Visit{UserID: id, DayKey: day, PlaceKey: placeKey, SeenAt: seenAt, AddressLabel: "Cafe"}))
	}
}

func ids(ps []model.Person) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}

func TestPeople_PaginationIsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedGroup(t, f, "2024-03-01", "pk_1", 23)

	all, err := f.reader.People(ctx, "viewer", model.PeopleQuery{DayKey: "2024-03-01", PlaceKey: "pk_1", Limit: 100})
	require.NoError(t, err)
	require.Len(t, all.People, 23)
	assert.False(t, all.HasMore)
	assert.Nil(t, all.NextCursor)

	var chained []model.Person
	q := model.PeopleQuery{DayKey: "2024-03-01", PlaceKey: "pk_1", Limit: 5}
	for pages := 0; pages < 10; pages++ {
		page, err := f.reader.People(ctx, "viewer", q)
		require.NoError(t, err)
		chained = append(chained, page.People...)
		if !page.HasMore {
			break
		}
		require.NotNil(t, page.NextCursor)
		q.Cursor = page.NextCursor
	}
	assert.Equal(t, ids(all.People), ids(chained))

	// Rows arrive in cursor order.
	for i := 1; i < len(all.People); i++ {
		assert.True(t, all.People[i-1].Cursor().Less(all.People[i].Cursor()), "row %d out of order", i)
	}
	assert.Equal(t, 100, all.People[0].MatchPercent)
	assert.True(t, all.People[0].SameIntent)
}

func TestPeople_ExactMultipleEndsWithEmptyPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedGroup(t, f, "2024-03-01", "pk_1", 4)
	q := model.PeopleQuery{DayKey: "2024-03-01", PlaceKey: "pk_1", Limit: 4}
	page, err := f.reader.People(ctx, "viewer", q)
	require.NoError(t, err)
	require.True(t, page.HasMore)
	q.Cursor = page.NextCursor
	page, err = f.reader.People(ctx, "viewer", q)
	require.NoError(t, err)
	assert.Empty(t, page.People)
	assert.False(t, page.HasMore)
}

func TestPeople_LimitClamp(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 20, f.reader.ClampLimit(0))
	assert.Equal(t, 20, f.reader.ClampLimit(-3))
	assert.Equal(t, 7, f.reader.ClampLimit(7))
	assert.Equal(t, 100, f.reader.ClampLimit(1000))

	ctx := context.Background()
	seedGroup(t, f, "2024-03-01", "pk_1", 25)
	page, err := f.reader.People(ctx, "viewer", model.PeopleQuery{DayKey: "2024-03-01", PlaceKey: "pk_1"})
	require.NoError(t, err)
	assert.Len(t, page.People, 20)
	assert.True(t, page.HasMore)
}

func TestGroups_DegradeWhenMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Drop(store.RoutineGroups)
	gs, err := f.reader.Groups(ctx, "viewer")
	require.NoError(t, err)
	assert.NotNil(t, gs)
	assert.Empty(t, gs)

	f.remote.Fail(store.RoutineGroups, nil)
	f.remote.Drop(store.TableVisits)
	gs, err = f.reader.Groups(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, gs)
}

func TestGroups_GenuineErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("permission denied")
	f.remote.Fail(store.RoutineGroups, boom)
	_, err := f.reader.Groups(context.Background(), "viewer")
	assert.ErrorIs(t, err, boom)
}

func TestPeople_DegradeWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.remote.Drop(store.RoutinePeople)
	page, err := f.reader.People(context.Background(), "viewer", model.PeopleQuery{DayKey: "d", PlaceKey: "p", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, page.People)
	assert.False(t, page.HasMore)
}

func TestGroups_ListsSharedPlaces(t *testing.T) {
	f := newFixture(t)
	seedGroup(t, f, "2024-03-01", "pk_1", 2)
	gs, err := f.reader.Groups(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, "pk_1", gs[0].PlaceKey)
	assert.True(t, gs[0].LastSeen.Equal(testNow))
}

func TestCrossedPaths_RemoteFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.remote.Edges().Upsert(ctx, []model.Edge{
		{UserID: "u1", CrossedUserID: "u2", DayKey: "2024-02-29", AddressKey: "pk_1", SeenAt: testNow.Add(-24 * time.Hour)},
		{UserID: "u1", CrossedUserID: "u3", DayKey: "2024-02-20", AddressKey: "pk_1", SeenAt: testNow.Add(-10 * 24 * time.Hour)},
	}))
	rows, err := f.reader.CrossedPaths(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u2", rows[0].CrossedUserID)
}

func TestCrossedPaths_LocalFallbackFiltersOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Drop(store.TableEdges)
	require.NoError(t, f.cache.AppendEdges(ctx, "u1", []model.Edge{
		{UserID: "u1", CrossedUserID: "u2", DayKey: "2024-02-24", AddressKey: "pk_1", SeenAt: testNow.Add(-6 * 24 * time.Hour)},
	}))

	rows, err := f.reader.CrossedPaths(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	later := NewReader(f.remote, f.cache, Options{Now: func() time.Time { return testNow.Add(2 * 24 * time.Hour) }})
	rows, err = later.CrossedPaths(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCrossedPaths_GenuineErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("timeout")
	f.remote.Fail(store.TableEdges, boom)
	_, err := f.reader.CrossedPaths(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

// slowGroups counts concurrent People calls.
type slowGroups struct {
	store.Groups
	inFlight, peak atomic.Int32
	fail           map[string]bool
	mu             sync.Mutex
}

func (s *slowGroups) People(ctx context.Context, viewerID string, q model.PeopleQuery) ([]model.Person, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	s.mu.Lock()
	if n > s.peak.Load() {
		s.peak.Store(n)
	}
	fail := s.fail[q.PlaceKey]
	s.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	if fail {
		return nil, errors.New("boom")
	}
	return s.Groups.People(ctx, viewerID, q)
}

type wrappedStore struct {
	store.Store
	groups store.Groups
}

func (w wrappedStore) Groups() store.Groups { return w.groups }

func TestHistory_BoundedAndOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		seedGroup(t, f, "2024-03-01", fmt.Sprintf("pk_%d", i), 2)
	}
	sg := &slowGroups{Groups: f.remote.Groups(), fail: map[string]bool{"pk_3": true}}
	r := NewReader(wrappedStore{Store: f.remote, groups: sg}, f.cache, Options{Now: func() time.Time { return testNow }, Log: zerolog.Nop()})

	want, err := r.Groups(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, want, 8)

	hist := r.History(ctx, "viewer", 1)
	require.Len(t, hist, 8)
	for i, h := range hist {
		assert.Equal(t, want[i].PlaceKey, h.PlaceKey)
		if h.PlaceKey == "pk_3" {
			assert.Empty(t, h.People)
			assert.False(t, h.HasMore)
			continue
		}
		assert.Len(t, h.People, 1)
		assert.True(t, h.HasMore)
	}
	assert.LessOrEqual(t, sg.peak.Load(), int32(DefaultHistoryConcurrency))
	assert.Greater(t, sg.peak.Load(), int32(1))
}

func TestHistory_GroupsFailureIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.remote.Fail(store.RoutineGroups, errors.New("boom"))
	hist := f.reader.History(context.Background(), "viewer", 5)
	assert.NotNil(t, hist)
	assert.Empty(t, hist)
}

func TestGracefulDegradation_VisitReadableLocally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Drop(store.TableVisits)
	f.remote.Drop(store.RoutineGroups)

	require.Equal(t, Fallback, f.rec.RecordVisit(ctx, VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}))
	gs, err := f.reader.Groups(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, gs)
	rows, err := f.cache.Visits(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
