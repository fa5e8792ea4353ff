package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Group is a named collection of independent token-bucket limiters, one per
// upstream service. Traffic to the pair-detail API is gated separately from
// block-explorer or Telegram traffic.
type Group struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewGroup creates an empty limiter group.
func NewGroup() *Group {
	return &Group{
		limiters: make(map[string]*rate.Limiter),
	}
}

// Register configures a limiter for a service. Burst is the bucket capacity,
// perSec the refill rate. Misconfiguration is a startup error; Acquire never
// fails on a registered service.
func (g *Group) Register(service string, perSec float64, burst int) error {
	if burst <= 0 {
		return fmt.Errorf("ratelimit %s: burst must be positive, got %d", service, burst)
	}
	if perSec <= 0 {
		return fmt.Errorf("ratelimit %s: rate must be positive, got %g", service, perSec)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiters[service] = rate.NewLimiter(rate.Limit(perSec), burst)
	return nil
}

// Acquire blocks until n tokens are available for the service, or the context
// is cancelled. Unregistered services are not limited.
func (g *Group) Acquire(ctx context.Context, service string, n int) error {
	g.mu.RLock()
	limiter, exists := g.limiters[service]
	g.mu.RUnlock()

	if !exists {
		return nil
	}
	return limiter.WaitN(ctx, n)
}

// Wait is Acquire with a cost of one token.
func (g *Group) Wait(ctx context.Context, service string) error {
	return g.Acquire(ctx, service, 1)
}

// Allow reports whether a single request for the service would be admitted
// right now, consuming a token if so.
func (g *Group) Allow(service string) bool {
	g.mu.RLock()
	limiter, exists := g.limiters[service]
	g.mu.RUnlock()

	if !exists {
		return true
	}
	return limiter.Allow()
}

// Tokens returns the tokens currently available for a service. Used by the
// cycle-end health log.
func (g *Group) Tokens(service string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if limiter, exists := g.limiters[service]; exists {
		return limiter.Tokens()
	}
	return 0
}

// Snapshot returns the available tokens for every registered service.
func (g *Group) Snapshot() map[string]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snapshot := make(map[string]float64, len(g.limiters))
	for service, limiter := range g.limiters {
		snapshot[service] = limiter.Tokens()
	}
	return snapshot
}
