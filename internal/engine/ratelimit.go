// internal/engine/ratelimit.go
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces upstream calls at least minDelay apart. It is a leaky
// bucket of one: the first call proceeds immediately and idle time is never
// banked into extra burst credit.
//
// When the upstream source reports throttling, PenalizeFor arms a one-shot
// penalty that the next WaitForSlot honors before resuming normal spacing;
// minDelay itself is never changed.
type RateLimiter struct {
	lim *rate.Limiter

	mu      sync.Mutex
	penalty time.Duration
}

// NewRateLimiter creates a limiter enforcing minDelay between granted slots.
// A non-positive minDelay disables spacing.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	if minDelay <= 0 {
		return &RateLimiter{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{lim: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// WaitForSlot blocks until the next call slot is available or the context is
// cancelled. An armed penalty is consumed first and applies to this call only.
func (r *RateLimiter) WaitForSlot(ctx context.Context) error {
	r.mu.Lock()
	penalty := r.penalty
	r.penalty = 0
	r.mu.Unlock()

	if penalty > 0 {
		t := time.NewTimer(penalty)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return r.lim.Wait(ctx)
}

// PenalizeFor forces the next WaitForSlot call to block for at least d.
// If a longer penalty is already armed it is kept.
func (r *RateLimiter) PenalizeFor(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	if d > r.penalty {
		r.penalty = d
	}
	r.mu.Unlock()
}
