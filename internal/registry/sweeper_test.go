package registry

import (
	"context"
	"testing"
	"time"

	"gatekeeper/internal/domain"
)

func TestSweepRemovesExpiredTemporalBlocks(t *testing.T) {
	reg := New()

	if _, err := reg.AddTemporal("DE", "Germany", time.Minute); err != nil {
		t.Fatalf("AddTemporal returned error: %v", err)
	}

	var evicted []string
	sweeper := NewSweeper(reg, time.Minute)
	sweeper.OnEvict = func(code string) { evicted = append(evicted, code) }

	sweeper.sweep(time.Now().UTC().Add(61 * time.Second))

	if reg.Contains("DE") {
		t.Fatal("DE should be evicted after its expiry passed")
	}
	if len(evicted) != 1 || evicted[0] != "DE" {
		t.Fatalf("OnEvict saw %v, want [DE]", evicted)
	}
}

func TestSweepKeepsPermanentAndUnexpiredBlocks(t *testing.T) {
	reg := New()

	if err := reg.AddPermanent(domain.Country{Code: "FR", Name: "France"}); err != nil {
		t.Fatalf("AddPermanent returned error: %v", err)
	}
	if _, err := reg.AddTemporal("DE", "Germany", 10*time.Minute); err != nil {
		t.Fatalf("AddTemporal returned error: %v", err)
	}

	sweeper := NewSweeper(reg, time.Minute)
	sweeper.sweep(time.Now().UTC().Add(time.Minute))

	if !reg.Contains("FR") {
		t.Fatal("permanent FR must survive the sweep")
	}
	if !reg.Contains("DE") {
		t.Fatal("unexpired temporal DE must survive the sweep")
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	reg := New()
	sweeper := NewSweeper(reg, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	if _, err := reg.AddTemporal("DE", "Germany", time.Minute); err != nil {
		t.Fatalf("AddTemporal returned error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	if !reg.Contains("DE") {
		t.Fatal("unexpired entry must not be removed while the sweeper runs")
	}
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	sweeper := NewSweeper(New(), 0)
	if sweeper.interval != DefaultSweepInterval {
		t.Fatalf("interval = %v, want the 5 minute default", sweeper.interval)
	}
}
