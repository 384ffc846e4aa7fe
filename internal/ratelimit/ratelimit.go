// Package ratelimit provides the fixed-window limiter guarding the
// geolocation lookup proxy.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Store counts hits per key inside a fixed window. Increment must be atomic.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter applies a fixed-window limit per caller key.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
}

func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  int64(limit),
		window: window,
	}
}

// Allow reports whether key may proceed inside the current window. A store
// failure fails open: the request is allowed rather than dropped.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	count, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		log.Warn("Rate limit store unavailable", "error", err)
		return true
	}
	return count <= l.limit
}

type window struct {
	count  int64
	resets time.Time
}

// staleSweepThreshold bounds the window map. Keys are caller-supplied IPs, so
// without a sweep a churn of one-shot keys would grow the map forever.
const staleSweepThreshold = 1024

// MemoryStore is the in-process counter used when no Redis URL is configured.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.windows) > staleSweepThreshold {
		s.dropExpired(now)
	}

	current, ok := s.windows[key]
	if !ok || now.After(current.resets) {
		current = &window{resets: now.Add(ttl)}
		s.windows[key] = current
	}
	current.count++
	return current.count, nil
}

func (s *MemoryStore) dropExpired(now time.Time) {
	for key, w := range s.windows {
		if now.After(w.resets) {
			delete(s.windows, key)
		}
	}
}
