// Package config reads the process configuration from the environment.
// Nothing here is persisted: all gatekeeper state is volatile and lives for
// the lifetime of the process.
package config

import (
	"time"

	"gatekeeper/internal/support"
)

const (
	DefaultPort             = 8081
	DefaultSweepInterval    = 5 * time.Minute
	DefaultLookupRateLimit  = 30
	DefaultLookupRateWindow = time.Minute
	DefaultGeoAPIBaseURL    = "https://ipapi.co"
)

type Config struct {
	Port              int
	SweepInterval     time.Duration
	LookupRateLimit   int
	LookupRateWindow  time.Duration
	GeoAPIBaseURL     string
	GeoIPDatabasePath string
	RedisURL          string
}

// Load builds the configuration from the environment, falling back to the
// defaults for anything unset or invalid.
func Load() Config {
	cfg := Config{
		Port:              support.GetEnvInt("PORT", DefaultPort),
		SweepInterval:     time.Duration(support.GetEnvInt("SWEEP_INTERVAL_MINUTES", 5)) * time.Minute,
		LookupRateLimit:   support.GetEnvInt("LOOKUP_RATE_LIMIT", DefaultLookupRateLimit),
		LookupRateWindow:  time.Duration(support.GetEnvInt("LOOKUP_RATE_WINDOW_SECONDS", 60)) * time.Second,
		GeoAPIBaseURL:     support.GetEnv("GEO_API_URL", DefaultGeoAPIBaseURL),
		GeoIPDatabasePath: support.GetEnv("GEOIP_DB_PATH", ""),
		RedisURL:          support.GetEnv("REDIS_URL", ""),
	}

	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.LookupRateLimit <= 0 {
		cfg.LookupRateLimit = DefaultLookupRateLimit
	}
	if cfg.LookupRateWindow <= 0 {
		cfg.LookupRateWindow = DefaultLookupRateWindow
	}
	return cfg
}
