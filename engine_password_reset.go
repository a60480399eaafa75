package marketAuth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	"github.com/MrEthical07/marketAuth/internal"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/limiters"
	"github.com/MrEthical07/marketAuth/internal/stores"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/token"
)

// SendPasswordResetEmail emails a reset link to the account registered for
// email.
//
// Unknown, deleted, and blocked accounts receive nothing, but the caller
// sees the same result and the same side effects on the send marker, so the
// response cannot be used to discover accounts.
func (e *Engine) SendPasswordResetEmail(ctx context.Context, email, proof string) (*ResetRequestResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	defer e.observe(time.Now())

	identity := limiters.ResetIdentity(email)
	if identity == "" {
		e.emitAudit(ctx, internalaudit.EventResetRequest, false, "", ErrInvalidRequest, nil)
		return nil, ErrInvalidRequest
	}

	if err := e.guardAbuse(ctx, e.resetLimiter, identity, "", proof); err != nil {
		return nil, err
	}

	result := &ResetRequestResult{
		Message:  e.config.PasswordReset.Message,
		Cooldown: e.config.PasswordReset.Cooldown,
	}

	acct, err := e.store.AccountByEmail(ctx, identity)
	if err != nil && !isNotFound(err) {
		return nil, e.internalError("load account by email", "", err)
	}
	if acct != nil {
		rec, err := e.checkBlock(ctx, acct.ID)
		if err != nil {
			return nil, e.internalError("load block records", acct.ID, err)
		}
		if rec != nil {
			acct = nil
		}
	}

	now := e.now()
	if acct == nil {
		e.markReset(ctx, identity, now)
		e.metricInc(MetricResetRequestSkipped)
		e.emitAudit(ctx, internalaudit.EventResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{"sent": "false"}
		})
		if err := e.enumerationDelay(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}

	raw, tok, err := token.IssueReset(e.config.PasswordReset.TokenTTL, now)
	if err != nil {
		return nil, e.internalError("issue reset token", acct.ID, err)
	}
	if err := e.store.SetPasswordReset(ctx, acct.ID, tok.Stored(), tok.ExpiresAt()); err != nil {
		return nil, e.internalError("store reset token", acct.ID, err)
	}
	if err := e.mailer.SendPasswordResetLink(ctx, acct.Email, raw); err != nil {
		e.metricInc(MetricDispatchFailure)
		return nil, e.internalError("send reset email", acct.ID, err)
	}
	e.markReset(ctx, identity, now)

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, internalaudit.EventResetRequest, true, acct.ID, nil, func() map[string]string {
		return map[string]string{"sent": "true"}
	})
	return result, nil
}

// VerifyPasswordResetToken reports which email a reset link belongs to
// without consuming it.
func (e *Engine) VerifyPasswordResetToken(ctx context.Context, raw string) (*ResetTarget, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acct, err := e.lookupReset(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &ResetTarget{Email: acct.Email}, nil
}

// ResetPassword consumes a reset link, stores newPassword, and revokes every
// refresh credential of the account. A link can be consumed once. A blocked
// account is left untouched, link included.
func (e *Engine) ResetPassword(ctx context.Context, raw, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	defer e.observe(time.Now())

	acct, err := e.lookupReset(ctx, raw)
	if err != nil {
		e.resetFailed(ctx, "", err)
		return err
	}
	if err := e.enforceBlock(ctx, acct.ID); err != nil {
		e.emitAudit(ctx, internalaudit.EventResetConfirm, false, acct.ID, err, nil)
		return err
	}
	if newPassword == "" {
		e.emitAudit(ctx, internalaudit.EventResetConfirm, false, acct.ID, ErrInvalidRequest, nil)
		return ErrInvalidRequest
	}

	hash, err := e.hasher.Hash(newPassword)
	if errors.Is(err, password.ErrTooLong) {
		e.emitAudit(ctx, internalaudit.EventResetConfirm, false, acct.ID, ErrPasswordTooLong, nil)
		return ErrPasswordTooLong
	}
	if err != nil {
		return e.internalError("hash password", acct.ID, err)
	}

	if err := e.store.ConsumePasswordReset(ctx, acct.ID, token.HashReset(raw), hash, e.now()); err != nil {
		if isNotFound(err) {
			e.resetFailed(ctx, acct.ID, ErrResetInvalid)
			return ErrResetInvalid
		}
		return e.internalError("consume reset token", acct.ID, err)
	}

	revoked, err := e.rotator.RevokeAll(ctx, acct.ID)
	if err != nil {
		return e.internalError("revoke refresh credentials", acct.ID, err)
	}
	if err := e.loginThrottle.Reset(ctx, acct.Email); err != nil {
		e.logWarn("reset login throttle", acct.ID, err)
	}
	if err := e.markers.Clear(ctx, stores.MarkerReset, acct.Email); err != nil {
		e.logWarn("clear reset marker", acct.ID, err)
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, internalaudit.EventResetConfirm, true, acct.ID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.FormatInt(revoked, 10)}
	})
	return nil
}

// lookupReset resolves raw to the account holding its hash as a live reset
// token.
func (e *Engine) lookupReset(ctx context.Context, raw string) (*credential.Account, error) {
	if !token.WellFormed(raw) {
		return nil, ErrResetInvalid
	}
	acct, err := e.store.AccountByResetTokenHash(ctx, token.HashReset(raw))
	if isNotFound(err) {
		return nil, ErrResetInvalid
	}
	if err != nil {
		return nil, e.internalError("load account by reset token", "", err)
	}
	if acct.ResetExpiresAt == nil {
		return nil, ErrResetInvalid
	}
	if !token.Validate(token.StoredReset(acct.ResetTokenHash, *acct.ResetExpiresAt), raw, e.now()) {
		return nil, ErrResetInvalid
	}
	return acct, nil
}

func (e *Engine) markReset(ctx context.Context, identity string, now time.Time) {
	if err := e.markers.Mark(ctx, stores.MarkerReset, identity, now, e.config.PasswordReset.Cooldown); err != nil {
		e.logWarn("mark reset sent", "", err)
	}
}

func (e *Engine) enumerationDelay(ctx context.Context) error {
	lo, hi := e.config.PasswordReset.EnumerationDelayMin, e.config.PasswordReset.EnumerationDelayMax
	if hi <= 0 {
		return nil
	}
	d, err := internal.RandomDuration(lo, hi)
	if err != nil {
		d = lo
	}
	return e.sleep(ctx, d)
}

func (e *Engine) resetFailed(ctx context.Context, accountID string, err error) {
	if err == ErrResetInvalid {
		e.metricInc(MetricResetConfirmFailure)
	}
	e.emitAudit(ctx, internalaudit.EventResetConfirm, false, accountID, err, nil)
}
