// Package rategovernor implements outbound call shaping for provider calls:
// a per-provider token bucket (non-blocking acquire) composed with a sliding
// window circuit breaker.
package rategovernor

import (
	"sync"
	"time"
)

// TokenBucket is a steady-refill limiter with a non-blocking TryAcquire,
// matching the "drop rather than block" shape outbound batch calls need
// (blocking would stall the worker pool behind a slow provider).
type TokenBucket struct {
	mu sync.Mutex

	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time

	now func() time.Time
}

// NewTokenBucket builds a bucket that refills at ratePerSecond tokens/sec up
// to a capacity of ratePerSecond tokens (one second's worth of headroom).
func NewTokenBucket(ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		capacity:     ratePerSecond,
		tokens:       ratePerSecond,
		refillPerSec: ratePerSecond,
		lastRefill:   time.Now(),
		now:          time.Now,
	}
}

// TryAcquire attempts to take one token without blocking. Returns false if
// none are currently available.
func (b *TokenBucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
