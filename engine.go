package marketAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketAuth/challenge"
	"github.com/MrEthical07/marketAuth/credential"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/kv"
	"github.com/MrEthical07/marketAuth/internal/limiters"
	internalmetrics "github.com/MrEthical07/marketAuth/internal/metrics"
	"github.com/MrEthical07/marketAuth/internal/rate"
	"github.com/MrEthical07/marketAuth/internal/stores"
	"github.com/MrEthical07/marketAuth/jwt"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/refresh"
	"github.com/sirupsen/logrus"
)

// Engine runs every credential flow. It is safe for concurrent use once
// returned by [Builder.Build].
type Engine struct {
	config Config
	now    func() time.Time
	logger logrus.FieldLogger

	cache   kv.Cache
	store   credential.Store
	mailer  EmailDispatcher
	hasher  *password.Hasher
	jwt     *jwt.Manager
	rotator *refresh.Rotator

	resendLimiter *limiters.TwoTier
	resetLimiter  *limiters.TwoTier
	loginThrottle *rate.LoginThrottle
	gate          *challenge.Gate
	markers       *stores.SendMarkers

	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics

	sleep func(context.Context, time.Duration) error
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(time.Since(start))
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.mailer != nil && e.hasher != nil && e.rotator != nil
}

// ParseAccessToken verifies an access token issued by this engine and
// returns its claims.
func (e *Engine) ParseAccessToken(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	claims, err := e.jwt.ParseAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// issueSession signs an access token and creates a refresh credential for a
// verified account.
func (e *Engine) issueSession(ctx context.Context, acct *credential.Account) (*AuthResult, error) {
	access, accessExp, err := e.jwt.CreateAccess(acct.ID, acct.Verified)
	if err != nil {
		return nil, e.internalError("sign access token", acct.ID, err)
	}
	issued, err := e.rotator.Issue(ctx, acct.ID)
	if err != nil {
		return nil, e.internalError("issue refresh credential", acct.ID, err)
	}
	return &AuthResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     issued.Token,
		RefreshExpiresAt: issued.ExpiresAt,
		Account:          publicAccount(acct),
	}, nil
}

// internalError logs cause and returns an opaque ErrInternal.
func (e *Engine) internalError(action, accountID string, cause error) error {
	fields := logrus.Fields{"action": action}
	if accountID != "" {
		fields["account_id"] = accountID
	}
	e.logger.WithFields(fields).WithError(cause).Error("credential flow failed")
	return fmt.Errorf("%w: %s", ErrInternal, action)
}

func (e *Engine) logWarn(action, accountID string, cause error) {
	fields := logrus.Fields{"action": action}
	if accountID != "" {
		fields["account_id"] = accountID
	}
	e.logger.WithFields(fields).WithError(cause).Warn("best-effort step failed")
}

func isNotFound(err error) bool {
	return errors.Is(err, credential.ErrNotFound)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
