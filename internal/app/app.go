package app

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"gatekeeper/internal/app/server"
	"gatekeeper/internal/attemptlog"
	"gatekeeper/internal/config"
	"gatekeeper/internal/filter"
	"gatekeeper/internal/geo"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/registry"
	"gatekeeper/internal/support"
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	portFlag := flag.Int("port", config.DefaultPort, "Port for the gatekeeper API")
	flag.Parse()

	cfg := config.Load()
	cfg.Port = resolvePort(*portFlag)

	m := metrics.New()
	defer m.Close()

	reg := registry.New()
	attempts := attemptlog.New()

	resolver := geo.NewResolver(cfg.GeoAPIBaseURL)
	defer resolver.Close()
	resolver.OnUnresolved = m.ResolverFailures.Inc
	if cfg.GeoIPDatabasePath != "" {
		if err := resolver.UseLocalDatabase(cfg.GeoIPDatabasePath); err != nil {
			log.Warn("Local GeoLite database unavailable", "path", cfg.GeoIPDatabasePath, "error", err)
		}
	}

	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := support.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, using in-memory rate limit counters", "error", err)
		} else {
			defer client.Close()
			store = ratelimit.NewRedisStore(client)
		}
	}
	limiter := ratelimit.New(store, cfg.LookupRateLimit, cfg.LookupRateWindow)

	requestFilter := filter.New(reg, resolver, attempts)
	requestFilter.OnDeny = func(code string) {
		m.DeniedRequests.WithLabelValues(code).Inc()
	}

	sweeper := registry.NewSweeper(reg, cfg.SweepInterval)
	sweeper.OnEvict = func(string) { m.SweepEvictions.Inc() }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	api := server.New(reg, attempts, requestFilter, resolver, limiter, m)
	err := api.ListenAndServe(ctx, cfg.Port)

	stop()
	<-sweepDone
	return err
}

// resolvePort prefers the PORT environment variable over the flag value.
func resolvePort(flagPort int) int {
	raw := os.Getenv("PORT")
	if raw == "" {
		return flagPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", "PORT", "value", raw)
		return flagPort
	}
	return port
}
