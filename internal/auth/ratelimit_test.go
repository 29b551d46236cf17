package auth

import (
	"testing"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/clock"
)

// fakeClock is a manually advanced clock.Clock for deterministic refill tests.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time                         { return c.now }
func (c *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (c *fakeClock) Since(t time.Time) time.Duration        { return c.now.Sub(t) }
func (c *fakeClock) advance(d time.Duration)                { c.now = c.now.Add(d) }

var _ clock.Clock = (*fakeClock)(nil)

func TestRateLimiter(t *testing.T) {
	t.Run("Allow returns true initially", func(t *testing.T) {
		rl := NewRateLimiter(60, 60)
		if !rl.Allow("127.0.0.1") {
			t.Error("expected Allow to return true for a new caller")
		}
	})

	t.Run("burst is exhausted after burst calls", func(t *testing.T) {
		rl := NewRateLimiter(60, 3)
		key := "caller-a"
		for i := 0; i < 3; i++ {
			if !rl.Allow(key) {
				t.Errorf("expected Allow to return true on call %d", i+1)
			}
		}
		if rl.Allow(key) {
			t.Error("expected 4th call within the same instant to be blocked")
		}
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		fc := &fakeClock{now: time.Now()}
		rl := NewRateLimiterWithClock(60, 1, fc)
		key := "caller-b"
		if !rl.Allow(key) {
			t.Fatal("expected first call to be allowed")
		}
		if rl.Allow(key) {
			t.Fatal("expected immediate second call to be blocked")
		}

		fc.advance(2 * time.Second)

		if !rl.Allow(key) {
			t.Error("expected call after refill window to be allowed")
		}
	})

	t.Run("different callers are independent", func(t *testing.T) {
		rl := NewRateLimiter(60, 1)
		if !rl.Allow("caller-c") {
			t.Fatal("caller-c should be allowed")
		}
		if !rl.Allow("caller-d") {
			t.Error("caller-d should not be affected by caller-c's bucket")
		}
	})

	t.Run("Cleanup removes stale buckets", func(t *testing.T) {
		rl := NewRateLimiter(60, 60)
		rl.Allow("caller-e")

		rl.mu.Lock()
		rl.buckets["caller-e"].lastSeen = time.Now().Add(-time.Hour)
		rl.mu.Unlock()

		rl.Cleanup(time.Now().Add(-time.Minute))

		rl.mu.Lock()
		_, exists := rl.buckets["caller-e"]
		rl.mu.Unlock()
		if exists {
			t.Error("expected stale bucket to be cleaned up")
		}
	})

	t.Run("Default matches the ingestion server's configured limit", func(t *testing.T) {
		rl := Default()
		if rl.ratePerSec != 1.0 {
			t.Errorf("ratePerSec = %v, want 1.0 (60/min)", rl.ratePerSec)
		}
		if rl.burst != 60 {
			t.Errorf("burst = %v, want 60", rl.burst)
		}
	})
}
