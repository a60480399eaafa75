package rate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/marketAuth/internal/kv"
)

// Counter is the fixed-window primitive: the first hit in a window sets the
// window's expiry, later hits only count.
type Counter struct {
	cache  kv.Cache
	prefix string
}

// NewCounter creates a [Counter] whose keys are namespaced under prefix.
func NewCounter(cache kv.Cache, prefix string) *Counter {
	return &Counter{
		cache:  cache,
		prefix: prefix,
	}
}

// Hit records one attempt for key and returns the count inside the current
// window.
func (c *Counter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if c == nil || c.cache == nil {
		return 0, ErrBackendUnavailable
	}
	count, err := c.cache.Increment(ctx, c.prefix+key, window)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return count, nil
}

// Peek returns the current count for key without recording a hit.
func (c *Counter) Peek(ctx context.Context, key string) (int64, error) {
	if c == nil || c.cache == nil {
		return 0, ErrBackendUnavailable
	}
	raw, ok, err := c.cache.Get(ctx, c.prefix+key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// Clear drops the counter for key.
func (c *Counter) Clear(ctx context.Context, key string) error {
	if c == nil || c.cache == nil {
		return nil
	}
	if _, err := c.cache.Delete(ctx, c.prefix+key); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// LoginConfig holds the failed-login throttle tuning.
type LoginConfig struct {
	Enabled     bool
	MaxFailures int
	Window      time.Duration
}

// LoginThrottle counts failed logins per normalized email.
type LoginThrottle struct {
	counter *Counter
	config  LoginConfig
}

// NewLoginThrottle builds a [LoginThrottle] on top of counter.
func NewLoginThrottle(counter *Counter, cfg LoginConfig) *LoginThrottle {
	return &LoginThrottle{
		counter: counter,
		config:  cfg,
	}
}

// Check returns ErrRateLimited once the failure budget for email is spent.
func (l *LoginThrottle) Check(ctx context.Context, email string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	count, err := l.counter.Peek(ctx, loginKey(email))
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxFailures) {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failed login for email.
func (l *LoginThrottle) RecordFailure(ctx context.Context, email string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	_, err := l.counter.Hit(ctx, loginKey(email), l.config.Window)
	return err
}

// Reset clears the failure counter after a successful login or a password
// reset.
func (l *LoginThrottle) Reset(ctx context.Context, email string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	return l.counter.Clear(ctx, loginKey(email))
}

// Failures reports the failed logins counted for email in the current
// window.
func (l *LoginThrottle) Failures(ctx context.Context, email string) (int64, error) {
	if l == nil || !l.config.Enabled {
		return 0, nil
	}
	return l.counter.Peek(ctx, loginKey(email))
}

// RetryAfter is the nominal window reported to throttled callers.
func (l *LoginThrottle) RetryAfter() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

func loginKey(email string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(email))
}
