package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/marketAuth/internal/kv"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCounter(t *testing.T) (*miniredis.Miniredis, *Counter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewCounter(kv.NewRedis(rdb), "t:")
}

func TestCounterFixedWindow(t *testing.T) {
	mr, c := newTestCounter(t)
	ctx := context.Background()
	const limit = 5

	for i := 1; i <= limit; i++ {
		n, err := c.Hit(ctx, "a", time.Hour)
		if err != nil {
			t.Fatalf("hit %d failed: %v", i, err)
		}
		if n != int64(i) {
			t.Fatalf("hit %d counted as %d", i, n)
		}
	}
	n, err := c.Hit(ctx, "a", time.Hour)
	if err != nil || n != limit+1 {
		t.Fatalf("over-limit hit = %d, %v", n, err)
	}

	mr.FastForward(time.Hour)

	n, err = c.Hit(ctx, "a", time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("second window must restart from zero, got %d, %v", n, err)
	}
}

func TestCounterKeysAreIndependent(t *testing.T) {
	mr, c := newTestCounter(t)
	ctx := context.Background()

	if _, err := c.Hit(ctx, "a", time.Hour); err != nil {
		t.Fatalf("hit failed: %v", err)
	}
	if n, _ := c.Hit(ctx, "b", time.Hour); n != 1 {
		t.Fatalf("unrelated key shared a counter: %d", n)
	}
	if !mr.Exists("t:a") || !mr.Exists("t:b") {
		t.Fatal("expected prefixed keys")
	}
}

func TestCounterPeek(t *testing.T) {
	_, c := newTestCounter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Hit(ctx, "a", time.Hour); err != nil {
			t.Fatalf("hit failed: %v", err)
		}
	}
	if n, err := c.Peek(ctx, "a"); err != nil || n != 3 {
		t.Fatalf("peek = %d, %v", n, err)
	}
	if n, _ := c.Hit(ctx, "a", time.Hour); n != 4 {
		t.Fatalf("peek must not record a hit, got %d", n)
	}
}

func TestLoginThrottle(t *testing.T) {
	mr, c := newTestCounter(t)
	ctx := context.Background()
	l := NewLoginThrottle(c, LoginConfig{Enabled: true, MaxFailures: 2, Window: 15 * time.Minute})

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "A@x.com"); err != nil {
			t.Fatalf("check %d failed: %v", i, err)
		}
		if err := l.RecordFailure(ctx, "a@x.com "); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}
	if err := l.Check(ctx, "a@x.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if l.RetryAfter() != 15*time.Minute {
		t.Fatalf("unexpected retry after %v", l.RetryAfter())
	}

	if err := l.Reset(ctx, "a@x.com"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := l.Check(ctx, "a@x.com"); err != nil {
		t.Fatalf("expected budget restored after reset, got %v", err)
	}

	if err := l.RecordFailure(ctx, "a@x.com"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	mr.FastForward(15 * time.Minute)
	if n, _ := c.Peek(ctx, "login:a@x.com"); n != 0 {
		t.Fatalf("window did not expire, count=%d", n)
	}
}

func TestDisabledLoginThrottleIsNoop(t *testing.T) {
	_, c := newTestCounter(t)
	l := NewLoginThrottle(c, LoginConfig{Enabled: false, MaxFailures: 1, Window: time.Minute})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = l.RecordFailure(ctx, "a@x.com")
	}
	if err := l.Check(ctx, "a@x.com"); err != nil {
		t.Fatalf("disabled throttle must not limit, got %v", err)
	}

	var nilThrottle *LoginThrottle
	if err := nilThrottle.Check(ctx, "a@x.com"); err != nil {
		t.Fatalf("nil throttle must be a no-op, got %v", err)
	}
}
