// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"os"
	"time"
)

// Cache backends selectable via LIBRARY_CACHE_BACKEND.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config carries everything the serve command needs to wire the service.
// Instances are built once at startup and treated as immutable afterwards.
type Config struct {
	Addr string

	// DatabaseDriver is "pgx" (Postgres) or "sqlite3".
	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string

	CacheBackend string
	CacheTTL     time.Duration

	JWTSecret string
	AccessTTL time.Duration
}

// Default returns the development defaults: SQLite on disk, Redis on
// localhost, one-hour tokens and the one-hour catalog cache.
func Default() Config {
	return Config{
		Addr:           ":3001",
		DatabaseDriver: "sqlite3",
		DatabaseDSN:    "file:library.db?_busy_timeout=5000&_foreign_keys=1",
		RedisAddr:      "localhost:6379",
		CacheBackend:   CacheBackendRedis,
		CacheTTL:       time.Hour,
		AccessTTL:      time.Hour,
	}
}

// FromEnv overlays LIBRARY_* environment variables on the defaults.
// LIBRARY_JWT_SECRET is required; everything else falls back.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.Addr = envOr("LIBRARY_ADDR", cfg.Addr)
	cfg.DatabaseDriver = envOr("LIBRARY_DB_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseDSN = envOr("LIBRARY_DB_DSN", cfg.DatabaseDSN)
	cfg.RedisAddr = envOr("LIBRARY_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr("LIBRARY_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.CacheBackend = envOr("LIBRARY_CACHE_BACKEND", cfg.CacheBackend)
	cfg.JWTSecret = os.Getenv("LIBRARY_JWT_SECRET")

	var err error
	if cfg.CacheTTL, err = envDuration("LIBRARY_CACHE_TTL", cfg.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL, err = envDuration("LIBRARY_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the serve command cannot run with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: LIBRARY_JWT_SECRET is required")
	}
	if c.DatabaseDriver != "pgx" && c.DatabaseDriver != "sqlite3" {
		return errors.New("config: LIBRARY_DB_DRIVER must be pgx or sqlite3")
	}
	if c.CacheBackend != CacheBackendRedis && c.CacheBackend != CacheBackendMemory {
		return errors.New("config: LIBRARY_CACHE_BACKEND must be redis or memory")
	}
	if c.CacheTTL <= 0 || c.AccessTTL <= 0 {
		return errors.New("config: TTLs must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New("config: invalid duration in " + key)
	}
	return d, nil
}
