package crossedpaths

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossedpaths/crossedpaths/server/internal/localcache"
	"github.com/crossedpaths/crossedpaths/server/internal/localstate"
	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/place"
	"github.com/crossedpaths/crossedpaths/server/internal/seen"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
	"github.com/crossedpaths/crossedpaths/server/internal/store/memstore"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	remote *memstore.Store
	kv     *localstate.Memory
	cache  *localcache.Cache
	seen   *seen.Cache
	rec    *Recorder
	reader *Reader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	f := &fixture{
		remote: memstore.New(memstore.WithClock(clock)),
		kv:     localstate.NewMemory(),
	}
	f.cache = localcache.New(f.kv, localcache.WithClock(clock))
	f.seen = seen.New(f.cache, 0, zerolog.Nop())
	opts := Options{Location: time.UTC, Now: clock, Log: zerolog.Nop()}
	f.rec = NewRecorder(f.remote, f.cache, f.seen, opts)
	f.reader = NewReader(f.remote, f.cache, opts)
	return f
}

func at(h, m int) *time.Time {
	ts := time.Date(2024, 3, 1, h, m, 0, 0, time.UTC)
	return &ts
}

func evergreen() *model.Address {
	return &model.Address{StreetNumber: "742", Street: "Evergreen Terrace", City: "Springfield"}
}

func TestRecordVisit_EvergreenScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	label, ok := place.Label(evergreen())
	require.True(t, ok)
	require.Equal(t, "Evergreen Terrace (700 block) • Springfield", label)

	in := VisitInput{ViewerID: "u1", AddressLabel: label, Address: evergreen(), SeenAt: at(9, 0)}
	assert.Equal(t, Recorded, f.rec.RecordVisit(ctx, in))
	in.SeenAt = at(9, 5)
	assert.Equal(t, Recorded, f.rec.RecordVisit(ctx, in))

	require.Equal(t, 1, f.remote.VisitCount())
	v, ok := f.remote.Visit("u1", "2024-03-01", place.Key(label, evergreen(), nil))
	require.True(t, ok)
	assert.True(t, v.SeenAt.Equal(*at(9, 5)))
	assert.Equal(t, label, v.AddressLabel)
}

func TestRecordVisit_SkipsUnusableInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, Skipped, f.rec.RecordVisit(ctx, VisitInput{ViewerID: "u1", AddressLabel: "   "}))
	assert.Equal(t, Skipped, f.rec.RecordVisit(ctx, VisitInput{ViewerID: "", AddressLabel: "Cafe"}))
	assert.Zero(t, f.remote.VisitCount())
}

func TestRecordVisit_DefaultsToNowInConfiguredZone(t *testing.T) {
	f := newFixture(t)
	tokyo := time.FixedZone("JST", 9*3600)
	late := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC) // 05:00 next day in Tokyo
	rec := NewRecorder(f.remote, f.cache, f.seen, Options{Location: tokyo, Now: func() time.Time { return late }})
	require.Equal(t, Recorded, rec.RecordVisit(context.Background(), VisitInput{ViewerID: "u1", AddressLabel: "Cafe"}))
	_, ok := f.remote.Visit("u1", "2024-03-02", place.Key("Cafe", nil, nil))
	assert.True(t, ok)
}

func TestRecordVisit_FallbackOnlyWhenTableMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Drop(store.TableVisits)

	in := VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}
	assert.Equal(t, Fallback, f.rec.RecordVisit(ctx, in))
	in.SeenAt = at(9, 5)
	assert.Equal(t, Fallback, f.rec.RecordVisit(ctx, in))

	rows, err := f.cache.Visits(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].SeenAt.Equal(*at(9, 5)))
}

func TestRecordVisit_GenuineErrorDrops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Fail(store.TableVisits, &store.Error{Class: store.Other, Code: "42501", Resource: store.TableVisits, Err: errors.New("permission denied")})
	assert.Equal(t, Dropped, f.rec.RecordVisit(ctx, VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}))
	rows, err := f.cache.Visits(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecordVisit_RoutineMissingIsNotFallback(t *testing.T) {
	f := newFixture(t)
	f.remote.Fail(store.TableVisits, &store.Error{Class: store.RoutineMissing, Resource: store.TableVisits, Err: errors.New("x")})
	assert.Equal(t, Dropped, f.rec.RecordVisit(context.Background(), VisitInput{ViewerID: "u1", AddressLabel: "Cafe"}))
}

func TestRecordCrossedPaths_ExcludesSelfAndSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CrossedPathsInput{
		VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)},
		ProfileIDs: []string{"u1", "u2", "u3", "u2", ""},
	}
	assert.Equal(t, Recorded, f.rec.RecordCrossedPaths(ctx, in))

	edges, err := f.remote.Edges().ListSince(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.NotEqual(t, e.UserID, e.CrossedUserID)
		assert.Equal(t, place.Key("Cafe", nil, nil), e.AddressKey)
		assert.Equal(t, "2024-03-01", e.DayKey)
	}

	// The same feed refresh writes nothing new.
	assert.Equal(t, Skipped, f.rec.RecordCrossedPaths(ctx, in))
	in.ProfileIDs = append(in.ProfileIDs, "u4")
	assert.Equal(t, Recorded, f.rec.RecordCrossedPaths(ctx, in))
	assert.Equal(t, 3, f.remote.EdgeCount())
}

func TestRecordCrossedPaths_SkipsEmptyInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, Skipped, f.rec.RecordCrossedPaths(ctx, CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe"}}))
	assert.Equal(t, Skipped, f.rec.RecordCrossedPaths(ctx, CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1"}, ProfileIDs: []string{"u2"}}))
	assert.Equal(t, Skipped, f.rec.RecordCrossedPaths(ctx, CrossedPathsInput{VisitInput: VisitInput{AddressLabel: "Cafe"}, ProfileIDs: []string{"u2"}}))
	assert.Equal(t, Skipped, f.rec.RecordCrossedPaths(ctx, CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe"}, ProfileIDs: []string{"u1"}}))
	assert.Zero(t, f.remote.EdgeCount())
}

func TestRecordCrossedPaths_CapsNewProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, fmt.Sprintf("p%03d", i))
	}
	in := CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}, ProfileIDs: ids}
	assert.Equal(t, Recorded, f.rec.RecordCrossedPaths(ctx, in))
	assert.Equal(t, 80, f.remote.EdgeCount())
	// The remainder goes out on the next refresh.
	assert.Equal(t, Recorded, f.rec.RecordCrossedPaths(ctx, in))
	assert.Equal(t, 100, f.remote.EdgeCount())
}

func TestRecordCrossedPaths_FallbackAppendsLocally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Drop(store.TableEdges)
	in := CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}, ProfileIDs: []string{"u2", "u3"}}
	assert.Equal(t, Fallback, f.rec.RecordCrossedPaths(ctx, in))
	assert.Equal(t, Fallback, f.rec.RecordCrossedPaths(ctx, in))

	rows, err := f.cache.Edges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRecordCrossedPaths_GenuineErrorWritesNowhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.Fail(store.TableEdges, errors.New("network unreachable"))
	in := CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}, ProfileIDs: []string{"u2"}}
	assert.Equal(t, Dropped, f.rec.RecordCrossedPaths(ctx, in))

	rows, err := f.cache.Edges(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Nothing was marked seen, so the profile is retried once the store recovers.
	f.remote.Fail(store.TableEdges, nil)
	assert.Equal(t, Recorded, f.rec.RecordCrossedPaths(ctx, in))
}

func TestRecordCrossedPaths_SeenSurvivesProcessRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CrossedPathsInput{VisitInput: VisitInput{ViewerID: "u1", AddressLabel: "Cafe", SeenAt: at(9, 0)}, ProfileIDs: []string{"u2"}}
	require.Equal(t, Recorded, f.rec.RecordCrossedPaths(ctx, in))

	// A fresh seen cache over the same local storage hydrates the persisted ids.
	fresh := NewRecorder(f.remote, f.cache, seen.New(f.cache, 0, zerolog.Nop()), Options{Location: time.UTC})
	assert.Equal(t, Skipped, fresh.RecordCrossedPaths(ctx, in))
}
