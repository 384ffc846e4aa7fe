// Package attemptlog keeps the append-only audit record of denied requests.
package attemptlog

import (
	"sync"
	"time"

	"gatekeeper/internal/domain"
)

// Log assigns strictly increasing ids starting at 1. Ids are never reused,
// even after administrative deletion of a record.
type Log struct {
	mu       sync.Mutex
	attempts []domain.BlockedAttempt
	nextID   int
}

func New() *Log {
	return &Log{nextID: 1}
}

// Append records a denied request and returns the stored attempt.
func (l *Log) Append(ip, countryCode, status string) domain.BlockedAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt := domain.BlockedAttempt{
		ID:          l.nextID,
		IPAddress:   ip,
		CountryCode: countryCode,
		Status:      status,
		Timestamp:   time.Now().UTC(),
	}
	l.nextID++
	l.attempts = append(l.attempts, attempt)
	return attempt
}

// List returns one page of attempts in insertion order. Pages are 1-based;
// callers validate the paging parameters.
func (l *Log) List(page, pageSize int) []domain.BlockedAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := (page - 1) * pageSize
	if start >= len(l.attempts) {
		return []domain.BlockedAttempt{}
	}
	end := start + pageSize
	if end > len(l.attempts) {
		end = len(l.attempts)
	}

	out := make([]domain.BlockedAttempt, end-start)
	copy(out, l.attempts[start:end])
	return out
}

// Delete removes the attempt with the given id and reports whether it
// existed. Only used administratively; the filter pipeline never deletes.
func (l *Log) Delete(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, attempt := range l.attempts {
		if attempt.ID == id {
			l.attempts = append(l.attempts[:i], l.attempts[i+1:]...)
			return true
		}
	}
	return false
}

// Len counts the stored attempts.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}
