// Package ratelimit bounds how many notifications a single recipient can
// receive within a rolling window. Counters live in the shared key-value
// store so the limit holds across restarts and instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result reports the outcome of a rate-limit check.
type Result struct {
	Exceeded bool
	Count    int
}

// Limiter is a fixed-window counter limiter.
type Limiter struct {
	kv     redis.Cmdable
	limit  int
	window time.Duration
}

// New creates a Limiter allowing limit notifications per recipient per window.
func New(kv redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{kv: kv, limit: limit, window: window}
}

// Check records one notification attempt for the recipient. The first attempt
// in a window creates the counter at 1 with the window's TTL; attempts past
// the limit report Exceeded without incrementing further, so the counter
// stays bounded during an abuse burst. The window resets via TTL expiry.
func (l *Limiter) Check(ctx context.Context, recipient string) (Result, error) {
	key := "rate-limit:" + recipient

	count, err := l.kv.Get(ctx, key).Int()
	if err == redis.Nil {
		if err := l.kv.Set(ctx, key, 1, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("create rate-limit counter: %w", err)
		}
		return Result{Exceeded: false, Count: 1}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read rate-limit counter: %w", err)
	}

	if count >= l.limit {
		return Result{Exceeded: true, Count: count}, nil
	}

	next, err := l.kv.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("increment rate-limit counter: %w", err)
	}
	return Result{Exceeded: false, Count: int(next)}, nil
}
