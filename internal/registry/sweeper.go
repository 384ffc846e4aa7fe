package registry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically evicts expired temporal blocks from a Registry. One
// instance runs per process.
type Sweeper struct {
	registry *Registry
	interval time.Duration

	// OnEvict, when set, is called with each evicted code. Set before Run.
	OnEvict func(code string)
}

func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
	}
}

// Run blocks until ctx is canceled. Cancellation is only observed between
// ticks: a sweep that is underway completes before Run returns.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info("Temporal block sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Temporal block sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(time.Now().UTC())
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Sweep cycle failed", "panic", r)
		}
	}()

	removed := s.registry.RemoveExpired(now)
	if len(removed) == 0 {
		log.Debug("No expired temporal blocks to remove")
		return
	}

	for _, code := range removed {
		if s.OnEvict != nil {
			s.OnEvict(code)
		}
		log.Info("Removed expired temporal block", "country", code)
	}
}
