// Package pebblekv is a localstate.KV driver on an embedded Pebble store.
package pebblekv

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
)

// KV implements localstate.KV on Pebble.
type KV struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble store in dir.
func Open(dir string) (*KV, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &KV{db: db}, nil
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// val is only valid until closer is closed
	out := string(val)
	_ = closer.Close()
	return out, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Set([]byte(key), []byte(value), pebble.Sync)
}

// HealthPing implements health.HealthPinger.
func (s *KV) HealthPing(ctx context.Context) error {
	_, _, err := s.Get(ctx, "__health_check__")
	return err
}

func (s *KV) Close() error { return s.db.Close() }
