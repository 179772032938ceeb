package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { kv.Close() })
	return New(kv, limit, window), mr
}

func TestCheckCeiling(t *testing.T) {
	const limit = 5
	limiter, _ := newTestLimiter(t, limit, time.Minute)
	ctx := context.Background()

	for i := 1; i <= limit; i++ {
		res, err := limiter.Check(ctx, "did:b")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if res.Exceeded {
			t.Fatalf("check %d: exceeded before the ceiling", i)
		}
		if res.Count != i {
			t.Errorf("check %d: count = %d, want %d", i, res.Count, i)
		}
	}

	// The (N+1)-th call reports exceeded and stops incrementing.
	for i := 0; i < 3; i++ {
		res, err := limiter.Check(ctx, "did:b")
		if err != nil {
			t.Fatalf("over-limit check: %v", err)
		}
		if !res.Exceeded {
			t.Fatal("expected exceeded past the ceiling")
		}
		if res.Count > limit+1 {
			t.Errorf("count = %d, counter must not grow past first overflow", res.Count)
		}
	}
}

func TestCheckWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if res, err := limiter.Check(ctx, "did:b"); err != nil || res.Exceeded {
		t.Fatalf("first check: res=%+v err=%v", res, err)
	}
	if res, err := limiter.Check(ctx, "did:b"); err != nil || !res.Exceeded {
		t.Fatalf("second check should exceed: res=%+v err=%v", res, err)
	}

	// TTL expiry resets the window; no explicit reset logic exists.
	mr.FastForward(2 * time.Minute)

	res, err := limiter.Check(ctx, "did:b")
	if err != nil {
		t.Fatalf("post-expiry check: %v", err)
	}
	if res.Exceeded || res.Count != 1 {
		t.Errorf("post-expiry res = %+v, want fresh counter at 1", res)
	}
}

func TestCheckIndependentRecipients(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if _, err := limiter.Check(ctx, "did:b"); err != nil {
		t.Fatal(err)
	}
	if res, _ := limiter.Check(ctx, "did:b"); !res.Exceeded {
		t.Fatal("did:b should be limited")
	}
	if res, err := limiter.Check(ctx, "did:c"); err != nil || res.Exceeded {
		t.Errorf("did:c must not share did:b's counter: res=%+v err=%v", res, err)
	}
}
