package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Remote store drivers.
const (
	RemoteMemory   = "memory"
	RemotePostgres = "postgres"
	RemoteREST     = "rest"
)

// Local KV drivers.
const (
	LocalMemory = "memory"
	LocalSQLite = "sqlite"
	LocalPebble = "pebble"
	LocalRedis  = "redis"
)

// EnvPrefix is the prefix of every environment variable read by New.
const EnvPrefix = "CROSSED_PATHS"

// Config holds the configuration for the crossed-paths service
// Environment variables are automatically parsed from CROSSED_PATHS_ prefix
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override drivers
	RemoteDriver string `envconfig:"REMOTE_DRIVER" default:"auto"`
	LocalDriver  string `envconfig:"LOCAL_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN         string `envconfig:"POSTGRES_DSN" default:""`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE" default:"false"`

	// REST backend Configuration
	RESTURL            string `envconfig:"REST_URL" default:""`
	RESTAPIKey         string `envconfig:"REST_API_KEY" default:""`
	RESTTimeoutSeconds int    `envconfig:"REST_TIMEOUT_SECONDS" default:"10"`

	// Local storage Configuration; empty paths resolve under localstate.DataDir.
	LocalPath   string `envconfig:"LOCAL_PATH" default:""`
	PebblePath  string `envconfig:"PEBBLE_PATH" default:""`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:""`

	// Crossed-paths behaviour
	TimeZone           string `envconfig:"TIME_ZONE" default:"Local"`
	RetentionDays      int    `envconfig:"RETENTION_DAYS" default:"7"`
	MaxCrossedProfiles int    `envconfig:"MAX_CROSSED_PROFILES" default:"80"`
	HistoryConcurrency int    `envconfig:"HISTORY_CONCURRENCY" default:"3"`
	DefaultPageSize    int    `envconfig:"DEFAULT_PAGE_SIZE" default:"20"`
	MaxPageSize        int    `envconfig:"MAX_PAGE_SIZE" default:"100"`
	SeenCacheKeys      int    `envconfig:"SEEN_CACHE_KEYS" default:"1024"`

	// Health checks
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"10"`
}

// ResolveDefaults validates BuildTarget and derives RemoteDriver and LocalDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultRemote, defaultLocal string

	switch c.BuildTarget {
	case "local":
		defaultRemote, defaultLocal = RemoteMemory, LocalSQLite
	case "cloud-dev":
		defaultRemote, defaultLocal = RemotePostgres, LocalSQLite
	case "cloud":
		defaultRemote, defaultLocal = RemoteREST, LocalPebble
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.RemoteDriver == "" || c.RemoteDriver == "auto" {
		c.RemoteDriver = defaultRemote
	}
	if c.LocalDriver == "" || c.LocalDriver == "auto" {
		c.LocalDriver = defaultLocal
	}

	allowedRemote := map[string]bool{RemoteMemory: true, RemotePostgres: true, RemoteREST: true}
	if !allowedRemote[c.RemoteDriver] {
		return fmt.Errorf("unsupported REMOTE_DRIVER: %s", c.RemoteDriver)
	}
	allowedLocal := map[string]bool{LocalMemory: true, LocalSQLite: true, LocalPebble: true, LocalRedis: true}
	if !allowedLocal[c.LocalDriver] {
		return fmt.Errorf("unsupported LOCAL_DRIVER: %s", c.LocalDriver)
	}
	if c.MaxPageSize <= 0 || c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("invalid page sizes: default=%d max=%d", c.DefaultPageSize, c.MaxPageSize)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with CROSSED_PATHS_
// Example: CROSSED_PATHS_BUILD_TARGET, CROSSED_PATHS_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("remote_driver", cfg.RemoteDriver).
		Str("local_driver", cfg.LocalDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("rest_url", cfg.RESTURL).
		Str("time_zone", cfg.TimeZone).
		Int("retention_days", cfg.RetentionDays).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		BuildTarget:               "local",
		RemoteDriver:              RemoteMemory,
		LocalDriver:               LocalMemory,
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  8080,
		RESTTimeoutSeconds:        10,
		TimeZone:                  "UTC",
		RetentionDays:             7,
		MaxCrossedProfiles:        80,
		HistoryConcurrency:        3,
		DefaultPageSize:           20,
		MaxPageSize:               100,
		SeenCacheKeys:             1024,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		BootstrapTimeoutSeconds:   5,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Location loads TimeZone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
