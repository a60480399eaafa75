package marketAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/stores"
	"github.com/MrEthical07/marketAuth/token"
)

// VerifyEmailByToken consumes a verification link, marks the account
// verified, and signs the account in. Unknown, expired, and already used
// links all fail with ErrVerificationInvalid.
func (e *Engine) VerifyEmailByToken(ctx context.Context, raw string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	defer e.observe(time.Now())

	acct, err := e.lookupVerification(ctx, raw)
	if err != nil {
		e.verifyFailed(ctx, "", err)
		return nil, err
	}
	if err := e.enforceBlock(ctx, acct.ID); err != nil {
		e.verifyFailed(ctx, acct.ID, err)
		return nil, err
	}

	if err := e.store.MarkVerified(ctx, acct.ID, raw, e.now()); err != nil {
		if isNotFound(err) {
			e.verifyFailed(ctx, acct.ID, ErrVerificationInvalid)
			return nil, ErrVerificationInvalid
		}
		return nil, e.internalError("mark verified", acct.ID, err)
	}
	acct.Verified = true
	acct.VerificationToken = ""
	acct.VerificationExpiresAt = nil

	if err := e.markers.Clear(ctx, stores.MarkerVerify, acct.ID); err != nil {
		e.logWarn("clear verification marker", acct.ID, err)
	}

	result, err := e.issueSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, internalaudit.EventVerifyEmail, true, acct.ID, nil, nil)
	return result, nil
}

// GetVerificationInfo describes a pending verification link without
// changing anything. SentAt falls back to the link's issue time once the
// send marker has lapsed.
func (e *Engine) GetVerificationInfo(ctx context.Context, raw string) (*VerificationInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	acct, err := e.lookupVerification(ctx, raw)
	if err != nil {
		return nil, err
	}

	now := e.now()
	cooldown := e.config.EmailVerification.ResendCooldown
	remaining, sentAt, err := e.markers.Remaining(ctx, stores.MarkerVerify, acct.ID, cooldown, now)
	if err != nil {
		e.logWarn("read verification marker", acct.ID, err)
		remaining, sentAt = 0, time.Time{}
	}
	if sentAt.IsZero() {
		sentAt = acct.VerificationExpiresAt.Add(-e.config.EmailVerification.TokenTTL)
	}

	info := &VerificationInfo{
		Email:  acct.Email,
		SentAt: sentAt,
	}
	if remaining > 0 {
		info.Cooldown = &remaining
	}
	return info, nil
}

// ResendVerificationEmail re-sends a pending verification link and extends
// its lifetime. The link value does not change. The resend budget is
// charged per account, and only after the link has been validated.
func (e *Engine) ResendVerificationEmail(ctx context.Context, raw, proof string) (*ResendResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	defer e.observe(time.Now())

	acct, err := e.lookupVerification(ctx, raw)
	if err != nil {
		e.emitAudit(ctx, internalaudit.EventResendVerification, false, "", err, nil)
		return nil, err
	}

	if err := e.guardAbuse(ctx, e.resendLimiter, acct.ID, acct.ID, proof); err != nil {
		return nil, err
	}

	now := e.now()
	ttl := e.config.EmailVerification.TokenTTL
	extended := token.StoredVerification(acct.VerificationToken, *acct.VerificationExpiresAt).Extend(ttl, now)
	if err := e.store.SetVerificationToken(ctx, acct.ID, extended.Stored(), extended.ExpiresAt()); err != nil {
		return nil, e.internalError("extend verification token", acct.ID, err)
	}

	if err := e.mailer.SendVerificationLink(ctx, acct.Email, raw); err != nil {
		e.metricInc(MetricDispatchFailure)
		return nil, e.internalError("send verification email", acct.ID, err)
	}
	cooldown := e.config.EmailVerification.ResendCooldown
	if err := e.markers.Mark(ctx, stores.MarkerVerify, acct.ID, now, cooldown); err != nil {
		e.logWarn("mark verification sent", acct.ID, err)
	}

	e.metricInc(MetricResendSuccess)
	e.emitAudit(ctx, internalaudit.EventResendVerification, true, acct.ID, nil, nil)
	return &ResendResult{
		Email:     acct.Email,
		ExpiresAt: extended.ExpiresAt(),
		Cooldown:  cooldown,
	}, nil
}

// lookupVerification resolves raw to the unverified account holding it as a
// live token.
func (e *Engine) lookupVerification(ctx context.Context, raw string) (*credential.Account, error) {
	if !token.WellFormed(raw) {
		return nil, ErrVerificationInvalid
	}
	acct, err := e.store.AccountByVerificationToken(ctx, raw)
	if isNotFound(err) {
		return nil, ErrVerificationInvalid
	}
	if err != nil {
		return nil, e.internalError("load account by verification token", "", err)
	}
	if acct.Verified || acct.VerificationExpiresAt == nil {
		return nil, ErrVerificationInvalid
	}
	stored := token.StoredVerification(acct.VerificationToken, *acct.VerificationExpiresAt)
	if !token.Validate(stored, raw, e.now()) {
		return nil, ErrVerificationInvalid
	}
	return acct, nil
}

func (e *Engine) verifyFailed(ctx context.Context, accountID string, err error) {
	if err == ErrVerificationInvalid {
		e.metricInc(MetricVerifyFailure)
	}
	e.emitAudit(ctx, internalaudit.EventVerifyEmail, false, accountID, err, nil)
}
