package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a sliding-window rate limiter for API calls: at most
// maxRequests acquisitions within any trailing window.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    []time.Time
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing maxRequests calls per window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait blocks until the call may proceed or ctx is cancelled. The call is
// recorded at admission time.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.evict(now)

		if len(r.requests) < r.maxRequests {
			r.requests = append(r.requests, now)
			r.mu.Unlock()
			return nil
		}

		// Oldest request ages out first; wait until it leaves the window.
		wait := r.window - now.Sub(r.requests[0]) + time.Second
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *RateLimiter) evict(now time.Time) {
	cut := 0
	for cut < len(r.requests) && now.Sub(r.requests[cut]) >= r.window {
		cut++
	}
	if cut > 0 {
		r.requests = append(r.requests[:0], r.requests[cut:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
