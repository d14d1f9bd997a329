// Package ratelimit provides a shared token-bucket admission gate for
// outbound calls to rate-limited upstream APIs. The gate refills
// continuously at a fixed rate up to a fixed capacity and knows nothing
// about what it is limiting.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Gate is a token-bucket admission gate. Acquire blocks without
// busy-spinning until a token is available, so starvation is bounded by
// the refill rate.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate refilling at perSecond tokens per second with the
// given bucket capacity.
func NewGate(perSecond float64, capacity int) *Gate {
	return &Gate{limiter: rate.NewLimiter(rate.Limit(perSecond), capacity)}
}

// Acquire blocks until a token is available or the context is canceled.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Allow reports whether a token is immediately available, consuming one if
// so. Callers that cannot block use this and back off on false.
func (g *Gate) Allow() bool {
	return g.limiter.Allow()
}
