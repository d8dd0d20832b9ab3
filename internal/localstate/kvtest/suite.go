// Package kvtest is a compliance suite for localstate.KV drivers.
package kvtest

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/crossedpaths/crossedpaths/server/internal/localstate"
)

// Run exercises a KV implementation. makeKV must return a clean, isolated store.
func Run(t *testing.T, makeKV func(t *testing.T) localstate.KV) {
	t.Helper()

	kv := makeKV(t)
	defer func() { _ = kv.Close() }()
	ctx := context.Background()

	key := "kvtest:" + uuid.New().String()

	if _, ok, err := kv.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, key, `["a","b"]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := kv.Get(ctx, key); err != nil || !ok || v != `["a","b"]` {
		t.Fatalf("Get after Set: v=%q ok=%v err=%v", v, ok, err)
	}

	// Overwrite
	if err := kv.Set(ctx, key, "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if v, _, err := kv.Get(ctx, key); err != nil || v != "second" {
		t.Fatalf("Get after overwrite: v=%q err=%v", v, err)
	}

	// Empty values are values, not absence
	if err := kv.Set(ctx, key, ""); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if v, ok, err := kv.Get(ctx, key); err != nil || !ok || v != "" {
		t.Fatalf("Get empty: v=%q ok=%v err=%v", v, ok, err)
	}

	// Keys sharing a prefix stay independent
	other := key + ":suffix"
	big := strings.Repeat("x", 64*1024)
	if err := kv.Set(ctx, other, big); err != nil {
		t.Fatalf("Set large: %v", err)
	}
	if v, _, err := kv.Get(ctx, other); err != nil || v != big {
		t.Fatalf("Get large: len=%d err=%v", len(v), err)
	}
	if v, _, err := kv.Get(ctx, key); err != nil || v != "" {
		t.Fatalf("prefix key clobbered: v=%q err=%v", v, err)
	}
}
