package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crossedpaths/crossedpaths/server/internal/config"
	storepkg "github.com/crossedpaths/crossedpaths/server/internal/store"
	"github.com/crossedpaths/crossedpaths/server/internal/store/memstore"
	storepg "github.com/crossedpaths/crossedpaths/server/internal/store/postgres"
	"github.com/crossedpaths/crossedpaths/server/internal/store/rest"
)

// NewStore returns the remote store.Store selected by cfg.RemoteDriver.
// For postgres it launches an async bootstrap check and returns immediately for fast startup.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.RemoteDriver {
	case config.RemoteMemory:
		return memstore.New(), nil
	case config.RemoteREST:
		return rest.New(rest.Options{
			BaseURL: cfg.RESTURL,
			APIKey:  cfg.RESTAPIKey,
			Timeout: time.Duration(cfg.RESTTimeoutSeconds) * time.Second,
		})
	case config.RemotePostgres:
		return newPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown REMOTE_DRIVER: %s", cfg.RemoteDriver)
	}
}

func newPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	dsn := cfg.PostgresDSN
	if dsn == "" {
		return nil, fmt.Errorf("%s_POSTGRES_DSN is required when REMOTE_DRIVER=postgres", config.EnvPrefix)
	}

	// Open connection synchronously since health checks need it immediately
	db, err := storepg.Open(dsn)
	if err != nil {
		return nil, err
	}

	// Async bootstrap check with configurable timeout; don't block startup
	go func() {
		bootstrapTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
		bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()

		if err := storepg.Bootstrap(bootstrapCtx, dsn, cfg.PostgresAutoMigrate); err != nil {
			log.Warn().Err(err).Str("driver", cfg.RemoteDriver).Msg("store bootstrap check failed")
		} else {
			log.Debug().Str("driver", cfg.RemoteDriver).Bool("migrate", cfg.PostgresAutoMigrate).Msg("store bootstrap check completed")
		}
	}()

	return storepg.NewWithDB(db), nil
}
