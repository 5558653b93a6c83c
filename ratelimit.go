package llmroute

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter gates admission per backend id using token buckets.
// Backends without a configured limit are admitted unconditionally.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	lim          *rate.Limiter
	capacity     int
	refillPerSec float64
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*limiterEntry)}
}

// SetLimit configures the bucket for a backend: capacity tokens maximum,
// refilled at refillPerSec tokens per second. Re-applying the current
// settings keeps the bucket's token state, so config reloads do not refill
// drained buckets; changed settings start from a full bucket.
func (r *RateLimiter) SetLimit(id string, capacity int, refillPerSec float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.limiters[id]; ok && e.capacity == capacity && e.refillPerSec == refillPerSec {
		return
	}
	r.limiters[id] = &limiterEntry{
		lim:          rate.NewLimiter(rate.Limit(refillPerSec), capacity),
		capacity:     capacity,
		refillPerSec: refillPerSec,
	}
}

// Admit attempts to deduct n tokens from the backend's bucket. It never
// blocks: a refusal means "try the next candidate", not backpressure.
func (r *RateLimiter) Admit(id string, n int) bool {
	r.mu.RLock()
	e, ok := r.limiters[id]
	r.mu.RUnlock()

	if !ok {
		return true
	}
	return e.lim.AllowN(time.Now(), n)
}
