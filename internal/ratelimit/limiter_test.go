package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/imgrelay/imgrelay/internal/kv"
)

func newTestLimiter(t *testing.T, start time.Time) (*Limiter, *time.Time) {
	t.Helper()
	current := start
	limiter := NewLimiter(nil, kv.NewMemoryStore())
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestFirstRequestAlwaysAllowed(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, time.UnixMilli(1_700_000_000_000))
	res, err := limiter.Check(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed {
		t.Fatal("first request must be allowed")
	}
	if res.Remaining != 9 {
		t.Fatalf("unexpected remaining: %d", res.Remaining)
	}
}

func TestLimitThenReject(t *testing.T) {
	t.Parallel()

	start := time.UnixMilli(1_700_000_000_000)
	limiter, clock := newTestLimiter(t, start)

	const limit = 3
	for i := 0; i < limit; i++ {
		*clock = start.Add(time.Duration(i) * time.Second)
		res, err := limiter.Check(context.Background(), 7, limit)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d within limit must be allowed", i)
		}
		if res.Remaining != limit-i-1 {
			t.Fatalf("request %d: unexpected remaining %d", i, res.Remaining)
		}
	}

	*clock = start.Add(30 * time.Second)
	res, err := limiter.Check(context.Background(), 7, limit)
	if err != nil {
		t.Fatalf("check over limit: %v", err)
	}
	if res.Allowed {
		t.Fatal("request over limit must be rejected")
	}
	want := start.Add(time.Minute)
	if !res.ResetTime.Equal(want) {
		t.Fatalf("reset time = %v, want earliest attempt + 60s = %v", res.ResetTime, want)
	}

	// The rejected attempt must not be recorded: once the first entry ages
	// out, exactly one slot frees up.
	*clock = start.Add(61 * time.Second)
	res, err = limiter.Check(context.Background(), 7, limit)
	if err != nil {
		t.Fatalf("check after aging: %v", err)
	}
	if !res.Allowed {
		t.Fatal("request must be allowed after the first entry aged out")
	}
}

func TestEntriesAgeOut(t *testing.T) {
	t.Parallel()

	start := time.UnixMilli(1_700_000_000_000)
	limiter, clock := newTestLimiter(t, start)

	if _, err := limiter.Check(context.Background(), 9, 1); err != nil {
		t.Fatalf("check: %v", err)
	}
	*clock = start.Add(61 * time.Second)
	res, err := limiter.Check(context.Background(), 9, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed {
		t.Fatal("attempt older than the window must not count")
	}
}

func TestChatsAreIndependent(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, time.UnixMilli(1_700_000_000_000))
	if _, err := limiter.Check(context.Background(), 1, 1); err != nil {
		t.Fatalf("check: %v", err)
	}
	res, err := limiter.Check(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed {
		t.Fatal("chat 2 must not be throttled by chat 1")
	}
}

func TestCorruptWindowResets(t *testing.T) {
	t.Parallel()

	store := kv.NewMemoryStore()
	if err := store.Put(context.Background(), storeKey(5), "boom"); err != nil {
		t.Fatalf("put: %v", err)
	}
	limiter := NewLimiter(nil, store)
	res, err := limiter.Check(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed || res.Remaining != 9 {
		t.Fatalf("corrupt window must reset: %+v", res)
	}
}

func TestZeroLimitDisables(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, time.UnixMilli(1_700_000_000_000))
	res, err := limiter.Check(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed {
		t.Fatal("zero limit must disable throttling")
	}
}
