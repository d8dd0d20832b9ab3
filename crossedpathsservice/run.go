package crossedpathsservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/crossedpaths/crossedpaths/server/internal/api"
	"github.com/crossedpaths/crossedpaths/server/internal/config"
	"github.com/crossedpaths/crossedpaths/server/internal/crossedpaths"
	"github.com/crossedpaths/crossedpaths/server/internal/factory"
	"github.com/crossedpaths/crossedpaths/server/internal/health"
	"github.com/crossedpaths/crossedpaths/server/internal/localcache"
	"github.com/crossedpaths/crossedpaths/server/internal/localstate"
	"github.com/crossedpaths/crossedpaths/server/internal/logger"
	"github.com/crossedpaths/crossedpaths/server/internal/metrics"
	"github.com/crossedpaths/crossedpaths/server/internal/retention"
	"github.com/crossedpaths/crossedpaths/server/internal/seen"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// Run starts the crossed-paths HTTP server and blocks until shutdown or error.
func Run(cfg *config.Config) error {
	log := logger.New("crossed-paths-service").Level(logger.ParseLevel(cfg.LogLevel))

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("remote_driver", cfg.RemoteDriver).
		Str("local_driver", cfg.LocalDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Crossed paths service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)

	svcHealth := startHealthCheckers(ctx, cfg, log, deps)

	router := api.NewRouter(api.Deps{
		Recorder: deps.recorder,
		Reader:   deps.reader,
		Health:   func() (bool, []string) { return svcHealth.IsHealthy(), svcHealth.Down() },
		Metrics:  deps.metrics,
		Log:      log,
	})

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

type dependencies struct {
	remote   store.Store
	kv       localstate.KV
	recorder *crossedpaths.Recorder
	reader   *crossedpaths.Reader
	metrics  *metrics.Metrics
}

func (d *dependencies) close(log zerolog.Logger) {
	if c, ok := d.remote.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("closing remote store")
		}
	}
	if err := d.kv.Close(); err != nil {
		log.Warn().Err(err).Msg("closing local state")
	}
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	remote, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}
	kv, err := factory.NewLocalKV(ctx, cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Local state unavailable")
		if c, ok := remote.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}

	window := retention.Window{Days: cfg.RetentionDays}
	if window.Days <= 0 {
		window = retention.Default()
	}
	m := metrics.New()
	cache := localcache.New(kv, localcache.WithWindow(window), localcache.WithLogger(log))
	opts := crossedpaths.Options{
		Location:           loc,
		Window:             window,
		MaxProfiles:        cfg.MaxCrossedProfiles,
		DefaultPageSize:    cfg.DefaultPageSize,
		MaxPageSize:        cfg.MaxPageSize,
		HistoryConcurrency: cfg.HistoryConcurrency,
		Log:                log,
		Metrics:            m,
	}
	seenCache := seen.New(cache, cfg.SeenCacheKeys, log)
	return &dependencies{
		remote:   remote,
		kv:       kv,
		recorder: crossedpaths.NewRecorder(remote, cache, seenCache, opts),
		reader:   crossedpaths.NewReader(remote, cache, opts),
		metrics:  m,
	}, nil
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, d *dependencies) *health.ServiceHealthChecker {
	var checkers []health.HealthChecker
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(d.remote, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	if p, ok := d.kv.(health.HealthPinger); ok {
		kvChecker := health.NewPingChecker("localstate", p, log, probeTimeout)
		go kvChecker.Start(ctx, interval)
		checkers = append(checkers, kvChecker)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

// newHTTPServer leaves BaseContext unset: request contexts must outlive the signal
// context so Shutdown can drain in-flight requests.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
