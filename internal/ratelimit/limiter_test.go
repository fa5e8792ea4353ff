package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestGroup_RegisterValidation(t *testing.T) {
	g := NewGroup()

	if err := g.Register("dex", 10, 0); err == nil {
		t.Error("expected error for zero burst")
	}
	if err := g.Register("dex", 0, 5); err == nil {
		t.Error("expected error for zero rate")
	}
	if err := g.Register("dex", 10, 5); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestGroup_UnregisteredServiceNotLimited(t *testing.T) {
	g := NewGroup()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := g.Wait(ctx, "unknown"); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unregistered service should not block, took %v", elapsed)
	}
}

func TestGroup_IndependentServices(t *testing.T) {
	g := NewGroup()
	if err := g.Register("slow", 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := g.Register("fast", 1000, 100); err != nil {
		t.Fatal(err)
	}

	// Drain the slow bucket.
	if !g.Allow("slow") {
		t.Fatal("first request on slow should be allowed")
	}
	if g.Allow("slow") {
		t.Error("second immediate request on slow should be throttled")
	}

	// The fast service must be unaffected.
	if !g.Allow("fast") {
		t.Error("fast service throttled by slow service")
	}
}

// Issuing 2x capacity against a bucket of capacity C at rate R must take at
// least C/R to complete.
func TestGroup_LongRunRate(t *testing.T) {
	g := NewGroup()
	const capacity = 5
	const perSec = 50.0
	if err := g.Register("svc", perSec, capacity); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2*capacity; i++ {
		if err := g.Wait(ctx, "svc"); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	floor := time.Duration(float64(capacity) / perSec * float64(time.Second))
	if elapsed < floor {
		t.Errorf("2x capacity completed in %v, bucket math implies at least %v", elapsed, floor)
	}
}

func TestGroup_AcquireCancelled(t *testing.T) {
	g := NewGroup()
	if err := g.Register("svc", 0.1, 1); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := g.Wait(ctx, "svc"); err != nil {
		t.Fatal(err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(cancelCtx, "svc"); err == nil {
		t.Error("expected context deadline error while bucket is empty")
	}
}

func TestGroup_Snapshot(t *testing.T) {
	g := NewGroup()
	if err := g.Register("dex", 10, 5); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := g.Register("telegram", 1, 3); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	snapshot := g.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 services, got %d", len(snapshot))
	}
	if snapshot["dex"] > 5 || snapshot["telegram"] > 3 {
		t.Errorf("tokens exceed burst: %v", snapshot)
	}

	if err := g.Wait(context.Background(), "telegram"); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if got := g.Tokens("telegram"); got > 2.5 {
		t.Errorf("expected a token consumed, have %v", got)
	}
}
