package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatekeeper/internal/attemptlog"
	"gatekeeper/internal/filter"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/registry"
)

// Geolocation is the slice of the geo client the API uses directly. The
// request filter carries its own resolver.
type Geolocation interface {
	ResolveName(ctx context.Context, ip string) string
	Lookup(ctx context.Context, ip string) ([]byte, error)
}

// API wires the management routes to the gatekeeper state.
type API struct {
	registry *registry.Registry
	attempts *attemptlog.Log
	filter   *filter.Filter
	geo      Geolocation
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
}

func New(reg *registry.Registry, attempts *attemptlog.Log, requestFilter *filter.Filter, geo Geolocation, limiter *ratelimit.Limiter, m *metrics.Metrics) *API {
	return &API{
		registry: reg,
		attempts: attempts,
		filter:   requestFilter,
		geo:      geo,
		limiter:  limiter,
		metrics:  m,
	}
}

// exemptPaths bypass the country filter so blocked callers can still see why
// they are blocked, and scrapes keep working during an incident.
var exemptPaths = map[string]struct{}{
	"/check":                 {},
	"/logs/blocked-attempts": {},
	"/metrics":               {},
}

func (a *API) Routes() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("GET /blocked", a.listBlocked)
	router.HandleFunc("POST /block", a.blockCountry)
	router.HandleFunc("DELETE /unblock/{code}", a.unblockCountry)
	router.HandleFunc("POST /countries/temporal-block", a.temporalBlock)
	router.HandleFunc("GET /check", a.checkRequest)
	router.HandleFunc("GET /lookup", a.lookupIP)
	router.HandleFunc("GET /logs/blocked-attempts", a.listAttempts)
	router.HandleFunc("DELETE /logs/blocked-attempts/{id}", a.deleteAttempt)
	router.Handle("GET /metrics", promhttp.Handler())

	return enableCORS(a.filter.Middleware(exemptPaths, router))
}

// ListenAndServe runs the API until ctx is canceled, then drains in-flight
// requests.
func (a *API) ListenAndServe(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: a.Routes(),
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Warn("error shutting down api server", "error", err)
		}
	}()

	log.Infof("Starting gatekeeper API on port :%d", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// parsePagination reads pageNumber and pageSize with the defaults 1 and 10.
// Out-of-range values are caller errors, never clamped.
func parsePagination(r *http.Request) (page, pageSize int, err error) {
	page, pageSize = 1, 10

	if raw := r.URL.Query().Get("pageNumber"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, registry.ErrPageNumber
		}
	}
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 || pageSize > registry.MaxPageSize {
			return 0, 0, registry.ErrPageSize
		}
	}
	return page, pageSize, nil
}
