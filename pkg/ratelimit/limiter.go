package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until a request may proceed or ctx is done
type Limiter interface {
	Wait(ctx context.Context) error
}

// Gate spaces request starts at least a fixed interval apart.
// It is safe for concurrent use by several download workers.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a gate that admits one request per interval.
// A non-positive interval admits everything.
func NewGate(interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next slot or until ctx is done
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Unlimited is a Limiter that never blocks
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
