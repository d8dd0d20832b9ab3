// Package localcache is the per-user on-device fallback for rows the remote store could not
// take because its schema is not deployed. Every write prunes rows outside the retention
// window and every read filters them again.
package localcache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crossedpaths/crossedpaths/server/internal/localstate"
	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/retention"
)

const (
	visitsPrefix = "crossed_paths:visits:v1:"
	edgesPrefix  = "crossed_paths:edges:v1:"
	seenPrefix   = "crossed_paths:seen:v1:"
)

// VisitsKey is the KV key of userID's fallback visits.
func VisitsKey(userID string) string { return visitsPrefix + userID }

// EdgesKey is the KV key of userID's fallback edges.
func EdgesKey(userID string) string { return edgesPrefix + userID }

// SeenKey is the KV key of the seen ids for a "viewer|day|place" key.
func SeenKey(key string) string { return seenPrefix + key }

const lockStripes = 64

// Cache reads and writes the fallback lists. Read-modify-write cycles for one user are
// serialized.
type Cache struct {
	kv     localstate.KV
	window retention.Window
	now    func() time.Time
	log    zerolog.Logger
	locks  [lockStripes]sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithWindow overrides the retention window.
func WithWindow(w retention.Window) Option { return func(c *Cache) { c.window = w } }

// WithLogger sets the logger used for undecodable entries.
func WithLogger(l zerolog.Logger) Option { return func(c *Cache) { c.log = l } }

// New returns a cache over kv.
func New(kv localstate.KV, opts ...Option) *Cache {
	c := &Cache{kv: kv, window: retention.Default(), now: time.Now, log: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) lock(userID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	mu := &c.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// PutVisit stores v, replacing the row with the same (user, day, place) signature.
func (c *Cache) PutVisit(ctx context.Context, v model.Visit) error {
	defer c.lock(v.UserID)()
	key := VisitsKey(v.UserID)
	var rows []model.Visit
	if err := c.load(ctx, key, &rows); err != nil {
		return err
	}
	replaced := false
	for i := range rows {
		if rows[i].UserID == v.UserID && rows[i].DayKey == v.DayKey && rows[i].PlaceKey == v.PlaceKey {
			rows[i].SeenAt = v.SeenAt
			rows[i].AddressLabel = v.AddressLabel
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, v)
	}
	rows = retention.Prune(c.window, rows, visitSeenAt, c.now())
	return c.store(ctx, key, rows)
}

// Visits returns userID's fallback visits inside the retention window.
func (c *Cache) Visits(ctx context.Context, userID string) ([]model.Visit, error) {
	var rows []model.Visit
	if err := c.load(ctx, VisitsKey(userID), &rows); err != nil {
		return nil, err
	}
	return retention.Prune(c.window, rows, visitSeenAt, c.now()), nil
}

// AppendEdges adds edges to userID's list. Rows whose (crossed user, day, address) already
// exist are skipped.
func (c *Cache) AppendEdges(ctx context.Context, userID string, edges []model.Edge) error {
	defer c.lock(userID)()
	key := EdgesKey(userID)
	var rows []model.Edge
	if err := c.load(ctx, key, &rows); err != nil {
		return err
	}
	type sig struct{ crossed, day, address string }
	have := make(map[sig]bool, len(rows)+len(edges))
	for _, r := range rows {
		have[sig{r.CrossedUserID, r.DayKey, r.AddressKey}] = true
	}
	for _, e := range edges {
		s := sig{e.CrossedUserID, e.DayKey, e.AddressKey}
		if have[s] {
			continue
		}
		have[s] = true
		rows = append(rows, e)
	}
	rows = retention.Prune(c.window, rows, edgeSeenAt, c.now())
	return c.store(ctx, key, rows)
}

// Edges returns userID's fallback edges inside the retention window.
func (c *Cache) Edges(ctx context.Context, userID string) ([]model.Edge, error) {
	var rows []model.Edge
	if err := c.load(ctx, EdgesKey(userID), &rows); err != nil {
		return nil, err
	}
	return retention.Prune(c.window, rows, edgeSeenAt, c.now()), nil
}

// SeenIDs returns the persisted seen ids of a "viewer|day|place" key.
func (c *Cache) SeenIDs(ctx context.Context, key string) ([]string, error) {
	var ids []string
	if err := c.load(ctx, SeenKey(key), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveSeenIDs replaces the persisted seen ids of a "viewer|day|place" key.
func (c *Cache) SaveSeenIDs(ctx context.Context, key string, ids []string) error {
	return c.store(ctx, SeenKey(key), ids)
}

// load decodes the JSON value at key into dst. Missing keys leave dst untouched.
// An undecodable value is treated as empty so the next write replaces it.
func (c *Cache) load(ctx context.Context, key string, dst any) error {
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("discarding undecodable local cache entry")
	}
	return nil
}

func (c *Cache) store(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, key, string(b))
}

func visitSeenAt(v model.Visit) time.Time { return v.SeenAt }
func edgeSeenAt(e model.Edge) time.Time   { return e.SeenAt }
