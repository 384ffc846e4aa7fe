// Package geo resolves IP addresses to countries through an external
// geolocation service, with an optional local GeoLite2 fallback.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
	"golang.org/x/sync/singleflight"
)

// UnknownCountry is returned whenever an IP cannot be resolved. Block entries
// always carry explicit two-letter codes, so UNKNOWN never matches one and an
// unresolvable request is allowed through.
const UnknownCountry = "UNKNOWN"

const (
	defaultBaseURL   = "https://ipapi.co"
	userAgent        = "gatekeeper/1.0"
	maxResponseBytes = 1 << 20
)

// ErrRateLimited reports that the upstream geolocation service returned 429.
var ErrRateLimited = errors.New("geolocation API rate limit exceeded")

// LookupError wraps a failed raw lookup, carrying the upstream HTTP status
// when one was received. Status is zero for transport-level failures.
type LookupError struct {
	Status int
	Err    error
}

func (e *LookupError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ip lookup failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("ip lookup failed: %v", e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Resolver is the boundary around the external geolocation capability. Every
// failure on the resolution paths degrades to UnknownCountry; nothing is
// propagated to callers of ResolveCode or ResolveName.
type Resolver struct {
	baseURL string
	client  *http.Client
	local   *geoip2.Reader
	group   singleflight.Group

	// OnUnresolved, when set, is called each time an external resolution
	// degrades to UnknownCountry. Set before serving.
	OnUnresolved func()
}

func NewResolver(baseURL string) *Resolver {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// UseLocalDatabase attaches a GeoLite2-Country database consulted when the
// external service cannot answer, before degrading to UnknownCountry.
func (r *Resolver) UseLocalDatabase(path string) error {
	reader, err := geoip2.Open(path)
	if err != nil {
		return fmt.Errorf("open geolite database: %w", err)
	}
	r.local = reader
	log.Info("Local GeoLite fallback enabled", "path", path)
	return nil
}

func (r *Resolver) Close() error {
	if r.local != nil {
		return r.local.Close()
	}
	return nil
}

// ResolveCode returns the normalized two-letter country code for ip, or
// UnknownCountry. Concurrent resolutions of the same IP are collapsed into a
// single upstream call.
func (r *Resolver) ResolveCode(ctx context.Context, ip string) string {
	if ip == "" {
		return UnknownCountry
	}

	// The flight is shared across callers, so it must not inherit the
	// leader's cancellation. The client timeout still bounds it.
	result, _, _ := r.group.Do("code:"+ip, func() (any, error) {
		return r.fetchField(context.WithoutCancel(ctx), ip, "country_code"), nil
	})

	code := strings.ToUpper(result.(string))
	if code != UnknownCountry {
		return code
	}
	if local := r.localCode(ip); local != "" {
		return local
	}
	if r.OnUnresolved != nil {
		r.OnUnresolved()
	}
	return UnknownCountry
}

// ResolveName returns the country name for ip, used only as display metadata
// when recording a temporal block.
func (r *Resolver) ResolveName(ctx context.Context, ip string) string {
	if ip == "" {
		return UnknownCountry
	}

	result, _, _ := r.group.Do("name:"+ip, func() (any, error) {
		return r.fetchField(context.WithoutCancel(ctx), ip, "country_name"), nil
	})

	name := result.(string)
	if name != UnknownCountry {
		return name
	}
	if local := r.localName(ip); local != "" {
		return local
	}
	return UnknownCountry
}

// Lookup proxies a full geolocation query and returns the raw JSON payload.
// Unlike the resolution paths, failures here surface to the caller: 429 maps
// to ErrRateLimited, everything else to a LookupError.
func (r *Resolver) Lookup(ctx context.Context, ip string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", r.baseURL, ip), nil)
	if err != nil {
		return nil, &LookupError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &LookupError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &LookupError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &LookupError{Err: fmt.Errorf("read response: %w", err)}
	}
	return payload, nil
}

func (r *Resolver) fetchField(ctx context.Context, ip, field string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s/", r.baseURL, ip, field), nil)
	if err != nil {
		return UnknownCountry
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		log.Warn("Geolocation request failed", "ip", ip, "field", field, "error", err)
		return UnknownCountry
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Geolocation request rejected", "ip", ip, "field", field, "status", resp.StatusCode)
		return UnknownCountry
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return UnknownCountry
	}

	value := strings.TrimSpace(string(body))
	if value == "" {
		return UnknownCountry
	}
	return value
}

func (r *Resolver) localCode(ip string) string {
	record := r.localCountry(ip)
	if record == nil {
		return ""
	}
	return strings.ToUpper(record.Country.IsoCode)
}

func (r *Resolver) localName(ip string) string {
	record := r.localCountry(ip)
	if record == nil {
		return ""
	}
	return record.Country.Names["en"]
}

func (r *Resolver) localCountry(ip string) *geoip2.Country {
	if r.local == nil {
		return nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	record, err := r.local.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return nil
	}
	return record
}
