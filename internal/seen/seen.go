// Package seen remembers which co-located profiles were already recorded for a
// (viewer, day, place) key so repeated feed refreshes do not rewrite them.
package seen

import (
	"container/list"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxKeys bounds the number of keys held in memory.
const DefaultMaxKeys = 1024

// Store persists seen ids per key. localcache.Cache implements it.
type Store interface {
	SeenIDs(ctx context.Context, key string) ([]string, error)
	SaveSeenIDs(ctx context.Context, key string, ids []string) error
}

// Key builds the "viewer|day|place" cache key.
func Key(viewerID, dayKey, placeKey string) string {
	return viewerID + "|" + dayKey + "|" + placeKey
}

type entry struct {
	key string
	ids map[string]struct{}
	// loaded is false until the persisted set has been merged in. Unloaded entries are
	// never written back, so a failed load cannot truncate the stored set.
	loaded bool
}

// Cache is an in-memory set per key, hydrated from Store on first use and evicted
// least-recently-used once more than maxKeys keys are held. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	store   Store
	maxKeys int
	order   *list.List
	byKey   map[string]*list.Element
	log     zerolog.Logger
}

// New returns an empty cache. store may be nil for a purely in-memory cache.
func New(store Store, maxKeys int, log zerolog.Logger) *Cache {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Cache{
		store:   store,
		maxKeys: maxKeys,
		order:   list.New(),
		byKey:   make(map[string]*list.Element),
		log:     log,
	}
}

// Unseen returns the ids not yet seen under key, deduplicated, in input order.
func (c *Cache) Unseen(ctx context.Context, key string, ids []string) []string {
	e := c.acquire(ctx, key)
	defer c.mu.Unlock()
	out := make([]string, 0, len(ids))
	picked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := e.ids[id]; ok {
			continue
		}
		if _, ok := picked[id]; ok {
			continue
		}
		picked[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Mark adds ids to key and persists the full set. Persistence failures are logged and
// the in-memory set keeps the ids.
func (c *Cache) Mark(ctx context.Context, key string, ids []string) {
	if len(ids) == 0 {
		return
	}
	e := c.acquire(ctx, key)
	for _, id := range ids {
		e.ids[id] = struct{}{}
	}
	if !e.loaded {
		c.mu.Unlock()
		c.log.Debug().Str("key", key).Msg("seen ids kept in memory only; stored set not loaded")
		return
	}
	snapshot := make([]string, 0, len(e.ids))
	for id := range e.ids {
		snapshot = append(snapshot, id)
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.SaveSeenIDs(ctx, key, snapshot); err != nil {
		c.log.Debug().Str("key", key).Err(err).Msg("persist seen ids failed")
	}
}

// Len returns the number of keys held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Reset drops every in-memory key. Persisted ids are rehydrated on next use.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.byKey = make(map[string]*list.Element)
}

// acquire returns the entry for key with c.mu held. On a miss, or while the entry is
// still unloaded, the store is read without the lock and merged in afterwards.
func (c *Cache) acquire(ctx context.Context, key string) *entry {
	c.mu.Lock()
	if el, ok := c.byKey[key]; ok && el.Value.(*entry).loaded {
		c.order.MoveToFront(el)
		return el.Value.(*entry)
	}
	c.mu.Unlock()

	var (
		stored []string
		err    error
	)
	if c.store != nil {
		stored, err = c.store.SeenIDs(ctx, key)
		if err != nil {
			c.log.Debug().Str("key", key).Err(err).Msg("hydrate seen ids failed")
		}
	}

	c.mu.Lock()
	e := c.entry(key)
	if err == nil && !e.loaded {
		for _, id := range stored {
			e.ids[id] = struct{}{}
		}
		e.loaded = true
	}
	return e
}

// entry returns the entry for key, inserting an empty one on a miss. c.mu must be held.
func (c *Cache) entry(key string) *entry {
	if el, ok := c.byKey[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry)
	}
	e := &entry{key: key, ids: make(map[string]struct{})}
	c.byKey[key] = c.order.PushFront(e)
	for c.order.Len() > c.maxKeys {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.byKey, last.Value.(*entry).key)
	}
	return e
}
