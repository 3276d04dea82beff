package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

// RateLimiter is a token bucket: burst tokens, one more every interval.
type RateLimiter struct {
	mu       sync.Mutex
	tokens   int
	burst    int
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		tokens:   burst,
		burst:    burst,
		interval: interval,
		last:     time.Now(),
		now:      time.Now,
	}
}

// Wait blocks until a token is free or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := rl.reserve()
		if wait == 0 {
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

// reserve takes a token and returns 0, or returns how long until the next refill.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.interval > 0 {
		if n := int(now.Sub(rl.last) / rl.interval); n > 0 {
			rl.tokens = min(rl.burst, rl.tokens+n)
			rl.last = rl.last.Add(time.Duration(n) * rl.interval)
		}
	} else {
		rl.tokens = rl.burst
	}

	if rl.tokens > 0 {
		rl.tokens--
		return 0
	}
	return rl.last.Add(rl.interval).Sub(now)
}

type throttledOracle struct {
	oracle  interfaces.Oracle
	limiter *RateLimiter
}

// Throttle makes every Complete wait for a token from rl.
func Throttle(o interfaces.Oracle, rl *RateLimiter) interfaces.Oracle {
	return &throttledOracle{oracle: o, limiter: rl}
}

func (t *throttledOracle) Name() string { return t.oracle.Name() }

func (t *throttledOracle) Complete(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %w", types.ErrOracleUnavailable, err)
	}
	return t.oracle.Complete(ctx, prompt)
}
