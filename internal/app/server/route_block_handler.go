package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/filter"
	"gatekeeper/internal/registry"
)

func (a *API) listBlocked(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))

	countries, err := a.registry.List(search, page, pageSize)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, countries)
}

func (a *API) blockCountry(w http.ResponseWriter, r *http.Request) {
	var country domain.Country
	if err := json.NewDecoder(r.Body).Decode(&country); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.registry.AddPermanent(country); err != nil {
		code := domain.NormalizeCode(country.Code)
		switch {
		case errors.Is(err, registry.ErrInvalidCountryCode):
			writeError(w, "Invalid Country Code", http.StatusBadRequest)
		case errors.Is(err, registry.ErrAlreadyBlocked):
			writeError(w, fmt.Sprintf("Country with code %s already exists.", code), http.StatusConflict)
		default:
			log.Error("error blocking country", "code", code, "error", err)
			writeError(w, "Failed to block country", http.StatusInternalServerError)
		}
		return
	}

	log.Info("Country blocked", "code", domain.NormalizeCode(country.Code))
	w.WriteHeader(http.StatusCreated)
}

func (a *API) unblockCountry(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeCode(r.PathValue("code"))

	if !a.registry.Remove(code) {
		writeError(w, fmt.Sprintf("Country with code %s not found.", code), http.StatusNotFound)
		return
	}

	log.Info("Country unblocked", "code", code)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Country with code %s has been unblocked.", code),
	})
}

func (a *API) temporalBlock(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if !domain.ValidCountryCode(code) {
		writeError(w, "Invalid Country Code", http.StatusBadRequest)
		return
	}

	durationMinutes := 1
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "Invalid duration", http.StatusBadRequest)
			return
		}
		durationMinutes = parsed
	}
	if durationMinutes < 1 || durationMinutes > 1440 {
		writeError(w, "Duration must be between 1 and 1440 minutes.", http.StatusBadRequest)
		return
	}

	// The caller's own country name is recorded as display metadata, the
	// way the admin UI shows who asked for the block.
	name := a.geo.ResolveName(r.Context(), filter.ClientIP(r))

	entry, err := a.registry.AddTemporal(code, name, time.Duration(durationMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, registry.ErrAlreadyBlocked) {
			writeError(w, fmt.Sprintf("Country with code %s is already blocked.", domain.NormalizeCode(code)), http.StatusConflict)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Info("Country temporally blocked", "code", entry.Code, "expires_at", entry.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("%s Blocked", entry.Code),
		"expiresAt": entry.ExpiresAt,
	})
}
