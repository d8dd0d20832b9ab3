// Package rediskv is a localstate.KV driver for deployments that share the fallback
// caches between service replicas.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Options configures the Redis driver.
type Options struct {
	Addr   string
	Prefix string
	// TTL expires keys that have not been written for this long. Zero keeps them forever.
	TTL time.Duration
}

// KV implements localstate.KV on Redis strings.
type KV struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// Open connects to Redis and verifies connectivity.
func Open(ctx context.Context, opts Options) (*KV, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, opts), nil
}

// NewWithClient wires an existing client.
func NewWithClient(rdb *goredis.Client, opts Options) *KV {
	return &KV{rdb: rdb, prefix: opts.Prefix, ttl: opts.TTL}
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

// HealthPing implements health.HealthPinger.
func (s *KV) HealthPing(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *KV) Close() error { return s.rdb.Close() }
