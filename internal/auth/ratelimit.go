package auth

import (
	"sync"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/clock"
)

// RateLimiter is a token bucket per caller key (peer address or API key
// prefix), refilling continuously rather than resetting on fixed windows.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	ratePerSec float64
	burst      float64
	clock      clock.Clock
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter creates a limiter admitting ratePerMin requests per minute
// per caller, with burst capacity up to burst.
func NewRateLimiter(ratePerMin int, burst int) *RateLimiter {
	return NewRateLimiterWithClock(ratePerMin, burst, clock.Real{})
}

// NewRateLimiterWithClock is NewRateLimiter with an injectable clock, so
// refill behavior can be tested without sleeping.
func NewRateLimiterWithClock(ratePerMin int, burst int, c clock.Clock) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		ratePerSec: float64(ratePerMin) / 60.0,
		burst:      float64(burst),
		clock:      c,
	}
}

// Default returns the ingestion server's configured limit: 60 req/min,
// burst 60.
func Default() *RateLimiter {
	return NewRateLimiter(60, 60)
}

// Allow reports whether a request from key may proceed, consuming one
// token if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst - 1, lastSeen: now}
		rl.buckets[key] = b
		return true
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens += elapsed * rl.ratePerSec
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Cleanup drops buckets untouched since before cutoff. Call periodically to
// bound memory for callers that stop appearing.
func (rl *RateLimiter) Cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}
