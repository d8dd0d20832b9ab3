// Package memstore is an in-process store.Store used by the local build target and tests.
// It evaluates the grouping and people routines the same way the SQL routines do.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/retention"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

var errNotDeployed = errors.New("not deployed")

type visitKey struct{ user, day, place string }

type edgeKey struct{ user, crossed, day, address string }

// Store keeps all rows in memory. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	visits   map[visitKey]model.Visit
	edges    map[edgeKey]model.Edge
	profiles map[string]model.Profile
	faults   map[string]error
	now      func() time.Time
	window   retention.Window
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for the retention window.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithRetention overrides the retention window applied by the routines.
func WithRetention(w retention.Window) Option { return func(s *Store) { s.window = w } }

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		visits:   make(map[visitKey]model.Visit),
		edges:    make(map[edgeKey]model.Edge),
		profiles: make(map[string]model.Profile),
		faults:   make(map[string]error),
		now:      time.Now,
		window:   retention.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Visits() store.Visits { return (*visits)(s) }
func (s *Store) Edges() store.Edges   { return (*edges)(s) }
func (s *Store) Groups() store.Groups { return (*groups)(s) }

// HealthPing always succeeds.
func (s *Store) HealthPing(context.Context) error { return nil }

// PutProfile upserts a public profile.
func (s *Store) PutProfile(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.RelationshipGoals = append([]string(nil), p.RelationshipGoals...)
	s.profiles[p.ID] = p
	return nil
}

// Fail makes every call touching resource return err until cleared with Fail(resource, nil).
// resource is one of the store.Table*/store.Routine* names.
func (s *Store) Fail(resource string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, resource)
		return
	}
	s.faults[resource] = err
}

// Drop simulates an undeployed table or routine.
func (s *Store) Drop(resource string) {
	class := store.SchemaMissing
	if resource == store.RoutineGroups || resource == store.RoutinePeople {
		class = store.RoutineMissing
	}
	s.Fail(resource, &store.Error{Class: class, Resource: resource, Err: errNotDeployed})
}

// VisitCount returns the number of stored visit rows.
func (s *Store) VisitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.visits)
}

// Visit returns the stored visit for (user, day, place).
func (s *Store) Visit(userID, dayKey, placeKey string) (model.Visit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[visitKey{userID, dayKey, placeKey}]
	return v, ok
}

// EdgeCount returns the number of stored edge rows.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

func (s *Store) fault(resource string) error { return s.faults[resource] }

func (s *Store) cutoff() time.Time { return s.window.Cutoff(s.now()) }

// --- Visits ---
type visits Store

func (v *visits) Upsert(ctx context.Context, in model.Visit) error {
	s := (*Store)(v)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(store.TableVisits); err != nil {
		return err
	}
	s.visits[visitKey{in.UserID, in.DayKey, in.PlaceKey}] = in
	return nil
}

// --- Edges ---
type edges Store

func (e *edges) Upsert(ctx context.Context, rows []model.Edge) error {
	s := (*Store)(e)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(store.TableEdges); err != nil {
		return err
	}
	for _, r := range rows {
		s.edges[edgeKey{r.UserID, r.CrossedUserID, r.DayKey, r.AddressKey}] = r
	}
	return nil
}

func (e *edges) ListSince(ctx context.Context, userID string, since time.Time) ([]model.Edge, error) {
	s := (*Store)(e)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(store.TableEdges); err != nil {
		return nil, err
	}
	var out []model.Edge
	for _, r := range s.edges {
		if r.UserID == userID && !r.SeenAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeenAt.After(out[j].SeenAt) })
	return out, nil
}

// --- Groups ---
type groups Store

func (g *groups) List(ctx context.Context, viewerID string) ([]model.Group, error) {
	s := (*Store)(g)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(store.RoutineGroups); err != nil {
		return nil, err
	}
	if err := s.fault(store.TableVisits); err != nil {
		return nil, err
	}
	cutoff := s.cutoff()
	byKey := make(map[visitKey]*model.Group)
	for k, mine := range s.visits {
		if k.user != viewerID || mine.SeenAt.Before(cutoff) {
			continue
		}
		for ok, other := range s.visits {
			if ok.user == viewerID || ok.day != k.day || ok.place != k.place || other.SeenAt.Before(cutoff) {
				continue
			}
			gr := byKey[k]
			if gr == nil {
				gr = &model.Group{DayKey: k.day, PlaceKey: k.place, AddressLabel: mine.AddressLabel}
				byKey[k] = gr
			}
			if other.SeenAt.After(gr.LastSeen) {
				gr.LastSeen = other.SeenAt
			}
		}
	}
	out := make([]model.Group, 0, len(byKey))
	for _, gr := range byKey {
		out = append(out, *gr)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayKey != b.DayKey {
			return a.DayKey > b.DayKey
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.PlaceKey < b.PlaceKey
	})
	return out, nil
}

func (g *groups) People(ctx context.Context, viewerID string, q model.PeopleQuery) ([]model.Person, error) {
	s := (*Store)(g)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(store.RoutinePeople); err != nil {
		return nil, err
	}
	if err := s.fault(store.TableVisits); err != nil {
		return nil, err
	}
	if _, ok := s.visits[visitKey{viewerID, q.DayKey, q.PlaceKey}]; !ok {
		return nil, nil
	}
	cutoff := s.cutoff()
	mine := s.profiles[viewerID].RelationshipGoals

	var rows []model.Person
	for k, v := range s.visits {
		if k.user == viewerID || k.day != q.DayKey || k.place != q.PlaceKey || v.SeenAt.Before(cutoff) {
			continue
		}
		p, ok := s.profiles[k.user]
		if !ok {
			continue
		}
		shared, union := overlap(p.RelationshipGoals, mine)
		pct, intent := 0, 0
		if union > 0 {
			pct = 100 * shared / union
		}
		if shared > 0 {
			intent = 1
		}
		rows = append(rows, model.Person{
			UserID:            p.ID,
			Username:          p.Username,
			FullName:          p.FullName,
			AvatarURL:         p.AvatarURL,
			IsVerified:        p.IsVerified,
			RelationshipGoals: append([]string{}, p.RelationshipGoals...),
			MatchPercent:      pct,
			SameIntent:        intent == 1,
			LastSeen:          v.SeenAt,
			CursorIntent:      intent,
			CursorMatch:       pct,
			CursorSeenAt:      v.SeenAt,
			CursorUserID:      p.ID,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Cursor().Less(rows[j].Cursor()) })

	out := make([]model.Person, 0, q.Limit)
	for _, r := range rows {
		if q.Cursor != nil && !q.Cursor.Less(r.Cursor()) {
			continue
		}
		if len(out) == q.Limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

// overlap returns the sizes of the intersection and union of two goal sets.
func overlap(a, b []string) (shared, union int) {
	inA := make(map[string]bool, len(a))
	for _, x := range a {
		inA[x] = true
	}
	all := make(map[string]bool, len(a)+len(b))
	for k := range inA {
		all[k] = true
	}
	seen := make(map[string]bool, len(b))
	for _, x := range b {
		if seen[x] {
			continue
		}
		seen[x] = true
		all[x] = true
		if inA[x] {
			shared++
		}
	}
	return shared, len(all)
}
