// Package filter runs the per-request country decision pipeline.
package filter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"gatekeeper/internal/attemptlog"
	"gatekeeper/internal/domain"
	"gatekeeper/internal/registry"
)

// CountryResolver is the slice of the geolocation client the filter needs.
type CountryResolver interface {
	ResolveCode(ctx context.Context, ip string) string
}

// Decision is the outcome of running one request through the filter.
type Decision struct {
	Allowed     bool
	CountryCode string
}

// Filter classifies requests by the country their client IP resolves to,
// recording every denial in the attempt log.
type Filter struct {
	registry *registry.Registry
	resolver CountryResolver
	attempts *attemptlog.Log

	// OnDeny, when set, is called with the country code of each denial.
	// Set before serving.
	OnDeny func(code string)
}

func New(reg *registry.Registry, resolver CountryResolver, attempts *attemptlog.Log) *Filter {
	return &Filter{
		registry: reg,
		resolver: resolver,
		attempts: attempts,
	}
}

// Check resolves ip and consults the block registry. Resolution failures
// fail open: UNKNOWN never matches a blocked code.
func (f *Filter) Check(ctx context.Context, ip string) Decision {
	code := f.resolver.ResolveCode(ctx, ip)
	if !f.registry.Contains(code) {
		return Decision{Allowed: true, CountryCode: code}
	}

	attempt := f.attempts.Append(ip, code, domain.StatusBlocked)
	if f.OnDeny != nil {
		f.OnDeny(code)
	}
	log.Info("Blocked request", "ip", ip, "country", code, "attempt_id", attempt.ID)
	return Decision{Allowed: false, CountryCode: code}
}

// Middleware rejects requests from blocked countries before they reach next.
// Paths in exempt always pass through, so a blocked caller can still reach
// the endpoints that tell them why.
func (f *Filter) Middleware(exempt map[string]struct{}, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := exempt[strings.ToLower(r.URL.Path)]; ok {
			next.ServeHTTP(w, r)
			return
		}

		decision := f.Check(r.Context(), ClientIP(r))
		if !decision.Allowed {
			http.Error(w, fmt.Sprintf("Access from %s is blocked", decision.CountryCode), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
