package crawlapi

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests to the backend with a token bucket.
// The dashboard fans stats requests out per running source, so bursts are
// allowed but the sustained rate is capped.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given burst.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Allow blocks until a request may proceed or ctx is done.
// It returns how long the caller waited.
func (r *RateLimiter) Allow(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := r.limiter.Wait(ctx)
	return time.Since(start), err
}
