// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"lidacacau/feed-service/internal/geo"
)

// Dismissal persistence backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all runtime configuration for the feed service.
type Config struct {
	Port             string `validate:"required,numeric"`
	GRPCPort         string `validate:"required,numeric"`
	DatabaseURL      string `validate:"required"`
	PostgresMaxConns int32  `validate:"gte=1"`
	RedisURL         string `validate:"required_if=DismissalBackend redis"`
	DismissalBackend string `validate:"oneof=redis sqlite"`
	SQLitePath       string `validate:"required_if=DismissalBackend sqlite"`
	SnapshotInterval int    `validate:"gte=1"` // minutes between candidate refreshes
	UpstreamTimeout  time.Duration
	FallbackLocation geo.Coordinate
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("FEED_PORT", "8083"),
		GRPCPort:         getEnv("FEED_GRPC_PORT", "9083"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		DismissalBackend: getEnv("DISMISSAL_BACKEND", BackendRedis),
		SQLitePath:       getEnv("SQLITE_PATH", "dismissals.db"),
		SnapshotInterval: 5,
		PostgresMaxConns: 8,
		UpstreamTimeout:  3 * time.Second,
		FallbackLocation: geo.FallbackLocation,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DismissalBackend == BackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when DISMISSAL_BACKEND=redis")
	}

	if s := os.Getenv("SNAPSHOT_INTERVAL_MINUTES"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SNAPSHOT_INTERVAL_MINUTES must be a positive integer, got %q", s)
		}
		cfg.SnapshotInterval = v
	}

	if s := os.Getenv("PG_MAX_CONNS"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("PG_MAX_CONNS must be a positive integer, got %q", s)
		}
		cfg.PostgresMaxConns = int32(v)
	}

	if s := os.Getenv("UPSTREAM_TIMEOUT_MS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("UPSTREAM_TIMEOUT_MS must be a positive integer, got %q", s)
		}
		cfg.UpstreamTimeout = time.Duration(v) * time.Millisecond
	}

	lat, err := getFloat("FALLBACK_LAT", cfg.FallbackLocation.Latitude, -90, 90)
	if err != nil {
		return nil, err
	}
	lng, err := getFloat("FALLBACK_LNG", cfg.FallbackLocation.Longitude, -180, 180)
	if err != nil {
		return nil, err
	}
	cfg.FallbackLocation = geo.Coordinate{Latitude: lat, Longitude: lng}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloat(key string, def, lo, hi float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be a number in [%g, %g], got %q", key, lo, hi, s)
	}
	return v, nil
}
