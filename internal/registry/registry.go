package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gatekeeper/internal/domain"
)

const (
	MinBlockDuration = 1 * time.Minute
	MaxBlockDuration = 1440 * time.Minute

	MaxPageSize = 100
)

var (
	ErrAlreadyBlocked     = errors.New("country is already blocked")
	ErrInvalidCountryCode = errors.New("invalid country code")
	ErrDurationRange      = errors.New("duration must be between 1 and 1440 minutes")
	ErrPageNumber         = errors.New("pageNumber must be 1 or greater")
	ErrPageSize           = errors.New("pageSize must be between 1 and 100")
)

// Registry is the process-wide registry of blocked countries, keyed by the
// normalized two-letter code. Values are immutable *domain.BlockedCountry
// snapshots, so a reader never observes a partially built entry and the
// sweeper can remove conditionally by comparing the exact snapshot it saw.
type Registry struct {
	entries sync.Map // code -> *domain.BlockedCountry
}

func New() *Registry {
	return &Registry{}
}

// AddPermanent inserts a permanent block for country. The code must be a
// known ISO-3166 alpha-2 code and must not already be blocked.
func (r *Registry) AddPermanent(country domain.Country) error {
	if !domain.ValidCountryCode(country.Code) {
		return fmt.Errorf("%w: %q", ErrInvalidCountryCode, country.Code)
	}

	code := domain.NormalizeCode(country.Code)
	entry := &domain.BlockedCountry{
		Country: domain.Country{Code: code, Name: country.Name},
		Kind:    domain.BlockPermanent,
	}
	if _, loaded := r.entries.LoadOrStore(code, entry); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyBlocked, code)
	}
	return nil
}

// AddTemporal inserts a block for code that expires duration from now.
// name is display metadata recorded alongside the entry.
func (r *Registry) AddTemporal(code, name string, duration time.Duration) (*domain.BlockedCountry, error) {
	if !domain.ValidCountryCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCountryCode, code)
	}
	if duration < MinBlockDuration || duration > MaxBlockDuration {
		return nil, ErrDurationRange
	}

	normalized := domain.NormalizeCode(code)
	entry := &domain.BlockedCountry{
		Country:   domain.Country{Code: normalized, Name: name},
		Kind:      domain.BlockTemporal,
		ExpiresAt: time.Now().UTC().Add(duration),
	}
	if _, loaded := r.entries.LoadOrStore(normalized, entry); loaded {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyBlocked, normalized)
	}
	return entry, nil
}

// Remove deletes the entry for code regardless of kind and reports whether
// anything was removed. Safe to call for codes that were never blocked.
func (r *Registry) Remove(code string) bool {
	_, loaded := r.entries.LoadAndDelete(domain.NormalizeCode(code))
	return loaded
}

// Contains is the request-path membership test.
func (r *Registry) Contains(code string) bool {
	_, ok := r.entries.Load(domain.NormalizeCode(code))
	return ok
}

// Get returns the current entry for code, if any.
func (r *Registry) Get(code string) (*domain.BlockedCountry, bool) {
	value, ok := r.entries.Load(domain.NormalizeCode(code))
	if !ok {
		return nil, false
	}
	return value.(*domain.BlockedCountry), true
}

// Len counts the live entries.
func (r *Registry) Len() int {
	count := 0
	r.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// List returns one page of blocked countries ordered by code. When search is
// non-empty, entries are filtered by case-insensitive substring match on code
// or name. Pages are 1-based; out-of-range paging parameters are an error.
func (r *Registry) List(search string, page, pageSize int) ([]domain.Country, error) {
	if page < 1 {
		return nil, ErrPageNumber
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, ErrPageSize
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	countries := make([]domain.Country, 0)
	r.entries.Range(func(_, value any) bool {
		entry := value.(*domain.BlockedCountry)
		if needle != "" &&
			!strings.Contains(strings.ToLower(entry.Code), needle) &&
			!strings.Contains(strings.ToLower(entry.Name), needle) {
			return true
		}
		countries = append(countries, entry.Country)
		return true
	})
	sort.Slice(countries, func(i, j int) bool {
		return countries[i].Code < countries[j].Code
	})

	start := (page - 1) * pageSize
	if start >= len(countries) {
		return []domain.Country{}, nil
	}
	end := start + pageSize
	if end > len(countries) {
		end = len(countries)
	}
	return countries[start:end], nil
}

// ExpiredCodes returns the codes of temporal entries whose expiry has passed.
func (r *Registry) ExpiredCodes(now time.Time) []string {
	codes := make([]string, 0)
	for code := range r.expiredEntries(now) {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RemoveExpired evicts every temporal entry expired at now. An entry that was
// replaced or removed between the scan and the delete is skipped; it is not
// an error. Returns the codes actually evicted.
func (r *Registry) RemoveExpired(now time.Time) []string {
	var removed []string
	for code, entry := range r.expiredEntries(now) {
		if r.entries.CompareAndDelete(code, entry) {
			removed = append(removed, code)
		}
	}
	sort.Strings(removed)
	return removed
}

func (r *Registry) expiredEntries(now time.Time) map[string]*domain.BlockedCountry {
	expired := make(map[string]*domain.BlockedCountry)
	r.entries.Range(func(key, value any) bool {
		entry := value.(*domain.BlockedCountry)
		if entry.Expired(now) {
			expired[key.(string)] = entry
		}
		return true
	})
	return expired
}
