package crossedpaths

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crossedpaths/crossedpaths/server/internal/localcache"
	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/retention"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// Reader serves the grouped history and the legacy edge list.
// Undeployed tables or routines read as empty results.
type Reader struct {
	store store.Store
	cache *localcache.Cache
	opts  Options
}

// NewReader wires a reader.
func NewReader(s store.Store, cache *localcache.Cache, opts Options) *Reader {
	return &Reader{store: s, cache: cache, opts: opts.withDefaults()}
}

// result labels a read for metrics and reports whether err should reach the caller.
func (r *Reader) result(op string, err error) error {
	switch {
	case err == nil:
		r.opts.Metrics.Read(op, "ok")
		return nil
	case store.IsMissing(err):
		r.opts.Metrics.Read(op, "missing")
		r.opts.Log.Debug().Str("op", op).Err(err).Msg("backend object missing; returning empty result")
		return nil
	default:
		r.opts.Metrics.Read(op, "error")
		return err
	}
}

// Groups lists the viewer's (day, place) groups, newest day first.
func (r *Reader) Groups(ctx context.Context, viewerID string) ([]model.Group, error) {
	if viewerID == "" {
		return []model.Group{}, nil
	}
	gs, err := r.store.Groups().List(ctx, viewerID)
	if err := r.result("groups", err); err != nil {
		return nil, err
	}
	if gs == nil {
		gs = []model.Group{}
	}
	return gs, nil
}

// ClampLimit applies the default and maximum page size.
func (r *Reader) ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return r.opts.DefaultPageSize
	case limit > r.opts.MaxPageSize:
		return r.opts.MaxPageSize
	default:
		return limit
	}
}

// People returns one page of a group's people strictly after q.Cursor.
// A full page sets HasMore and NextCursor to its last row.
func (r *Reader) People(ctx context.Context, viewerID string, q model.PeopleQuery) (model.Page, error) {
	q.Limit = r.ClampLimit(q.Limit)
	page := model.Page{People: []model.Person{}}
	if viewerID == "" {
		return page, nil
	}
	ps, err := r.store.Groups().People(ctx, viewerID, q)
	if err := r.result("people", err); err != nil {
		return page, err
	}
	if len(ps) > q.Limit {
		ps = ps[:q.Limit]
	}
	if len(ps) > 0 {
		page.People = ps
	}
	if len(ps) == q.Limit {
		page.HasMore = true
		c := ps[len(ps)-1].Cursor()
		page.NextCursor = &c
	}
	return page, nil
}

// CrossedPaths returns the viewer's legacy edges inside the retention window, from the
// remote table or, when it is not deployed, from the local cache.
func (r *Reader) CrossedPaths(ctx context.Context, viewerID string) ([]model.Edge, error) {
	if viewerID == "" {
		return []model.Edge{}, nil
	}
	now := r.opts.Now()
	rows, err := r.store.Edges().ListSince(ctx, viewerID, r.opts.Window.Cutoff(now))
	switch {
	case err == nil:
		r.opts.Metrics.Read("crossed_paths", "ok")
	case store.ClassOf(err) == store.SchemaMissing:
		r.opts.Metrics.Read("crossed_paths", "fallback")
		rows, err = r.cache.Edges(ctx, viewerID)
		if err != nil {
			return nil, err
		}
	default:
		r.opts.Metrics.Read("crossed_paths", "error")
		return nil, err
	}
	return retention.Prune(r.opts.Window, rows, func(e model.Edge) time.Time { return e.SeenAt }, now), nil
}

// History loads the groups and the first page of people of each, fetching at most
// HistoryConcurrency groups at once. Group order is preserved. Failures are logged and
// leave the affected part empty.
func (r *Reader) History(ctx context.Context, viewerID string, perGroup int) []model.GroupWithPeople {
	groups, err := r.Groups(ctx, viewerID)
	if err != nil {
		r.opts.Log.Warn().Str("viewer", viewerID).Err(err).Msg("history: groups fetch failed")
		return []model.GroupWithPeople{}
	}

	out := make([]model.GroupWithPeople, len(groups))
	var g errgroup.Group
	g.SetLimit(r.opts.HistoryConcurrency)
	for i, gr := range groups {
		i, gr := i, gr
		out[i] = model.GroupWithPeople{Group: gr, People: []model.Person{}}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			page, err := r.People(ctx, viewerID, model.PeopleQuery{DayKey: gr.DayKey, PlaceKey: gr.PlaceKey, Limit: perGroup})
			if err != nil {
				r.opts.Log.Warn().Str("viewer", viewerID).Str("place_key", gr.PlaceKey).Str("day_key", gr.DayKey).Err(err).Msg("history: people fetch failed")
				return nil
			}
			out[i].People = page.People
			out[i].HasMore = page.HasMore
			return nil
		})
	}
	_ = g.Wait()
	r.opts.Metrics.Read("history", "ok")
	return out
}
