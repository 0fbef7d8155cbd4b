package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces sequential requests. Wait blocks until the next request
// may start or ctx is done.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// FixedRateLimiter enforces a constant gap between consecutive actions. The
// first call returns immediately.
type FixedRateLimiter struct {
	limiter *rate.Limiter
}

func NewFixedRateLimiter(delay time.Duration) *FixedRateLimiter {
	return &FixedRateLimiter{limiter: rate.NewLimiter(every(delay), 1)}
}

func (f *FixedRateLimiter) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

func every(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Sleep pauses for d unless ctx finishes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
