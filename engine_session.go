package marketAuth

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/refresh"
)

// LogOut revokes refreshToken. It never fails: unknown, malformed, and
// already revoked tokens are ignored, and store errors are only logged.
func (e *Engine) LogOut(ctx context.Context, refreshToken string) {
	if !e.ready() || refreshToken == "" {
		return
	}

	revoked, err := e.rotator.Revoke(ctx, refreshToken)
	if err != nil {
		e.logWarn("revoke refresh credential", "", err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, internalaudit.EventLogout, true, "", nil, func() map[string]string {
		if revoked {
			return map[string]string{"revoked": "true"}
		}
		return map[string]string{"revoked": "false"}
	})
}

// RefreshAccessToken rotates refreshToken and returns a new token pair. A
// blocked account cannot rotate.
func (e *Engine) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	defer e.observe(time.Now())

	cred, err := e.rotator.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, e.refreshFailed(ctx, "", err)
	}

	acct, err := e.store.AccountByID(ctx, cred.AccountID)
	if isNotFound(err) {
		return nil, e.refreshFailed(ctx, cred.AccountID, refresh.ErrInvalid)
	}
	if err != nil {
		return nil, e.internalError("load account", cred.AccountID, err)
	}
	if err := e.enforceBlock(ctx, acct.ID); err != nil {
		e.emitAudit(ctx, internalaudit.EventRefresh, false, acct.ID, err, nil)
		return nil, err
	}

	rotated, err := e.rotator.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, e.refreshFailed(ctx, acct.ID, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, internalaudit.EventRefresh, true, acct.ID, nil, nil)
	return &AuthResult{
		AccessToken:      rotated.AccessToken,
		AccessExpiresAt:  rotated.AccessExpiresAt,
		RefreshToken:     rotated.RefreshToken,
		RefreshExpiresAt: rotated.RefreshExpiresAt,
		Account:          publicAccount(acct),
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, accountID string, err error) error {
	var mapped error
	switch {
	case errors.Is(err, refresh.ErrInvalid):
		mapped = ErrRefreshInvalid
	case errors.Is(err, refresh.ErrExpired):
		mapped = ErrRefreshExpired
	default:
		return e.internalError("rotate refresh credential", accountID, err)
	}
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, internalaudit.EventRefresh, false, accountID, mapped, nil)
	return mapped
}
