package domain

import (
	"strings"
	"time"
)

// BlockKind distinguishes permanent blocks from self-expiring ones.
type BlockKind string

const (
	BlockPermanent BlockKind = "permanent"
	BlockTemporal  BlockKind = "temporal"
)

// StatusBlocked is the status recorded on a denied attempt.
const StatusBlocked = "Blocked"

// Country identifies a blocked country. Code is the registry key; Name is
// display metadata only and never participates in identity.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// BlockedCountry is an immutable registry entry. Updates replace the whole
// value, they never mutate it in place.
type BlockedCountry struct {
	Country
	Kind      BlockKind `json:"kind"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Expired reports whether a temporal block has passed its expiry. Permanent
// blocks never expire.
func (b *BlockedCountry) Expired(now time.Time) bool {
	return b.Kind == BlockTemporal && !b.ExpiresAt.After(now)
}

// NormalizeCode trims and uppercases a country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCountryCode reports whether code is a known ISO-3166 alpha-2 code.
func ValidCountryCode(code string) bool {
	normalized := NormalizeCode(code)
	if len(normalized) != 2 {
		return false
	}
	_, ok := validCountryCodes[normalized]
	return ok
}
