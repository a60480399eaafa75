package marketAuth

import (
	"context"
	"strings"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	CacheAvailable bool          `json:"cache_available"`
	CacheLatency   time.Duration `json:"cache_latency"`
	// StoreAvailable is true when the credential store does not expose a
	// Ping method.
	StoreAvailable bool          `json:"store_available"`
	StoreLatency   time.Duration `json:"store_latency"`
}

// Healthy reports whether every backend answered.
func (h HealthStatus) Healthy() bool {
	return h.CacheAvailable && h.StoreAvailable
}

type storePinger interface {
	Ping(ctx context.Context) error
}

// Health pings the rate-limit cache and, when supported, the credential
// store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.cache == nil {
		return HealthStatus{}
	}

	var out HealthStatus
	latency, err := e.cache.Ping(ctx)
	out.CacheAvailable = err == nil
	out.CacheLatency = latency
	if err != nil {
		e.logger.WithError(err).Warn("cache health check failed")
	}

	p, ok := e.store.(storePinger)
	if !ok {
		out.StoreAvailable = true
		return out
	}
	start := time.Now()
	err = p.Ping(ctx)
	out.StoreLatency = time.Since(start)
	out.StoreAvailable = err == nil
	if err != nil {
		e.logger.WithError(err).Warn("credential store health check failed")
	}
	return out
}

// LoginFailures returns the failed-login count currently held against email.
// It is zero when the throttle is disabled.
func (e *Engine) LoginFailures(ctx context.Context, email string) (int64, error) {
	if e == nil || e.loginThrottle == nil {
		return 0, ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, nil
	}
	n, err := e.loginThrottle.Failures(ctx, email)
	if err != nil {
		return 0, ErrInternal
	}
	return n, nil
}
