package domain

import "time"

// BlockedAttempt records one denied request for auditing.
type BlockedAttempt struct {
	ID          int       `json:"id"`
	IPAddress   string    `json:"ipAddress"`
	CountryCode string    `json:"countryCode"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}
