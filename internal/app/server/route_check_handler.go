package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"gatekeeper/internal/filter"
	"gatekeeper/internal/geo"
)

// checkRequest is exempt from the blocking middleware so a blocked caller can
// always learn which country their request resolved to.
func (a *API) checkRequest(w http.ResponseWriter, r *http.Request) {
	ip := filter.ClientIP(r)
	if ip == "" {
		writeError(w, "Could not determine client IP address.", http.StatusBadRequest)
		return
	}

	decision := a.filter.Check(r.Context(), ip)
	if !decision.Allowed {
		writeError(w, fmt.Sprintf("Access from %s is not allowed", decision.CountryCode), http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"countryCode": decision.CountryCode})
}

func (a *API) lookupIP(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if net.ParseIP(ip) == nil {
		writeError(w, "Invalid IP address format", http.StatusBadRequest)
		return
	}

	if !a.limiter.Allow(r.Context(), filter.ClientIP(r)) {
		if a.metrics != nil {
			a.metrics.LookupRejections.Inc()
		}
		writeError(w, "API rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	payload, err := a.geo.Lookup(r.Context(), ip)
	if err != nil {
		if errors.Is(err, geo.ErrRateLimited) {
			writeError(w, "API rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		status := http.StatusInternalServerError
		var lookupErr *geo.LookupError
		if errors.As(err, &lookupErr) && lookupErr.Status != 0 {
			status = lookupErr.Status
		}
		log.Warn("IP lookup failed", "ip", ip, "error", err)
		writeError(w, "IP Lookup Failed", status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (a *API) listAttempts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, a.attempts.List(page, pageSize))
}

func (a *API) deleteAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, "Invalid attempt id", http.StatusBadRequest)
		return
	}

	if !a.attempts.Delete(id) {
		writeError(w, fmt.Sprintf("Attempt with id %d not found.", id), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Attempt with id %d has been deleted.", id),
	})
}
