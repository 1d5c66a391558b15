package embedder

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outgoing embedding API calls. A token bucket paces
// requests proactively; a 429 response with Retry-After pushes the next
// allowed request time out reactively.
type RateLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	holdOff time.Time // no requests before this time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	holdOff := r.holdOff
	r.mu.Unlock()

	if time.Now().Before(holdOff) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(holdOff)):
		}
	}
	return nil
}

// Observe inspects a response for rate limit signals and updates state.
// Returns true if the response was a rate limit rejection, meaning the call
// should be retried after Wait.
func (r *RateLimiter) Observe(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return false
	}

	delay := 2 * time.Second
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			delay = time.Duration(seconds) * time.Second
		}
	}

	r.mu.Lock()
	r.holdOff = time.Now().Add(delay)
	r.mu.Unlock()
	return true
}

// HoldOffUntil returns the earliest time the next request may be sent.
func (r *RateLimiter) HoldOffUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holdOff
}
