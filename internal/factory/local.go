package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/config"
	"github.com/crossedpaths/crossedpaths/server/internal/localstate"
	"github.com/crossedpaths/crossedpaths/server/internal/localstate/pebblekv"
	"github.com/crossedpaths/crossedpaths/server/internal/localstate/rediskv"
	"github.com/crossedpaths/crossedpaths/server/internal/localstate/sqlitekv"
)

// NewLocalKV returns the local fallback KV selected by cfg.LocalDriver.
func NewLocalKV(ctx context.Context, cfg *config.Config) (localstate.KV, error) {
	switch cfg.LocalDriver {
	case config.LocalMemory:
		return localstate.NewMemory(), nil
	case config.LocalSQLite:
		path, err := resolvePath(cfg.LocalPath, localstate.DBPath)
		if err != nil {
			return nil, err
		}
		return sqlitekv.New(path)
	case config.LocalPebble:
		path, err := resolvePath(cfg.PebblePath, localstate.PebblePath)
		if err != nil {
			return nil, err
		}
		return pebblekv.Open(path)
	case config.LocalRedis:
		// Keys outlive the retention window by a day so pruning still sees expired rows.
		ttl := time.Duration(cfg.RetentionDays+1) * 24 * time.Hour
		return rediskv.Open(ctx, rediskv.Options{Addr: cfg.RedisAddr, Prefix: cfg.RedisPrefix, TTL: ttl})
	default:
		return nil, fmt.Errorf("unknown LOCAL_DRIVER: %s", cfg.LocalDriver)
	}
}

func resolvePath(explicit string, fallback func() (string, error)) (string, error) {
	if explicit == "" {
		return fallback()
	}
	if err := os.MkdirAll(filepath.Dir(explicit), 0o700); err != nil {
		return "", err
	}
	return explicit, nil
}
