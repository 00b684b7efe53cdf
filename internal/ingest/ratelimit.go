package ingest

import (
	"context"
	"sync"
	"time"
)

// TokenBucket paces RPC calls.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second

	tokens     float64
	lastUpdate time.Time
}

// NewTokenBucket creates a token bucket with capacity and refill rate.
// A non-positive rate disables pacing and returns nil.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	if rate <= 0 {
		return nil
	}
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   capacity,
	}
}

// Allow consumes one token if available, refilling based on elapsed time.
func (b *TokenBucket) Allow(now time.Time) bool {
	_, ok := b.reserve(now)
	return ok
}

// reserve takes a token or reports how long until one is available.
func (b *TokenBucket) reserve(now time.Time) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastUpdate.IsZero() {
		b.lastUpdate = now
	}
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.lastUpdate = now
	}
	if b.tokens >= 1 {
		b.tokens -= 1
		return 0, true
	}
	need := (1 - b.tokens) / b.rate
	return time.Duration(need * float64(time.Second)), false
}

// Wait blocks until a token is available or ctx is done. A nil bucket never waits.
func (b *TokenBucket) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}
	for {
		wait, ok := b.reserve(time.Now())
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
