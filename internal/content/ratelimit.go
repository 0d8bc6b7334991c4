package content

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuously-refilled rate limiter shared by all
// content clients in the process. One token is one upstream request.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	last       time.Time
}

// NewTokenBucket creates a bucket that starts full and refills at
// requestsPerMinute/60 tokens per second.
func NewTokenBucket(capacity int, requestsPerMinute float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: requestsPerMinute / 60.0,
		last:       time.Now(),
	}
}

func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// TryTake consumes one token if available.
func (b *TokenBucket) TryTake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		b.refillLocked(now)
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.refillRate * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

var (
	defaultBucket     *TokenBucket
	defaultBucketOnce sync.Once
)

// DefaultBucket returns the process-wide bucket for the upstream content
// API (60 requests/minute, burst 10).
func DefaultBucket() *TokenBucket {
	defaultBucketOnce.Do(func() {
		defaultBucket = NewTokenBucket(10, 60)
	})
	return defaultBucket
}
