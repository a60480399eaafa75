package marketAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/rate"
	"github.com/MrEthical07/marketAuth/internal/stores"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/token"
)

// LogIn authenticates by email and password.
//
// A correct password on an unverified account fails with *UnverifiedError.
// While the resend cooldown runs the existing link is reported with the
// remaining cooldown and nothing is sent; otherwise the link is renewed if
// expired, re-sent, and reported with a full cooldown.
func (e *Engine) LogIn(ctx context.Context, email, pw string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	defer e.observe(time.Now())

	email = credential.NormalizeEmail(email)

	if err := e.loginThrottle.Check(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginThrottled)
			rl := &RateLimitError{Action: "login", Tier: "failures", RetryAfter: e.loginThrottle.RetryAfter()}
			e.emitRateLimit(ctx, "login", rl)
			return nil, rl
		}
		return nil, e.internalError("login throttle", "", err)
	}

	acct, err := e.store.AccountByEmail(ctx, email)
	if isNotFound(err) {
		e.hasher.DummyVerify(pw)
		return nil, e.loginFailed(ctx, email, "")
	}
	if err != nil {
		return nil, e.internalError("load account by email", "", err)
	}

	ok, err := e.hasher.Verify(pw, acct.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		return nil, e.internalError("verify password", acct.ID, err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, acct.ID)
	}

	if err := e.enforceBlock(ctx, acct.ID); err != nil {
		e.emitAudit(ctx, internalaudit.EventLogin, false, acct.ID, err, nil)
		return nil, err
	}

	if !acct.Verified {
		err := e.unverifiedLogin(ctx, acct)
		e.emitAudit(ctx, internalaudit.EventLogin, false, acct.ID, err, nil)
		return nil, err
	}

	if err := e.loginThrottle.Reset(ctx, email); err != nil {
		e.logWarn("reset login throttle", acct.ID, err)
	}
	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(acct.PasswordHash) {
		e.rehash(ctx, acct.ID, pw)
	}

	result, err := e.issueSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, internalaudit.EventLogin, true, acct.ID, nil, nil)
	return result, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, accountID string) error {
	if err := e.loginThrottle.RecordFailure(ctx, email); err != nil {
		e.logWarn("record login failure", accountID, err)
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, internalaudit.EventLogin, false, accountID, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

func (e *Engine) unverifiedLogin(ctx context.Context, acct *credential.Account) error {
	e.metricInc(MetricLoginUnverified)

	now := e.now()
	cooldown := e.config.EmailVerification.ResendCooldown
	remaining, _, err := e.markers.Remaining(ctx, stores.MarkerVerify, acct.ID, cooldown, now)
	if err != nil {
		e.logWarn("read verification marker", acct.ID, err)
		remaining = 0
	}
	if remaining > 0 && acct.VerificationLive(now) {
		return &UnverifiedError{Email: acct.Email, Token: acct.VerificationToken, Cooldown: remaining}
	}

	raw := acct.VerificationToken
	if !acct.VerificationLive(now) {
		fresh, tok, err := token.IssueVerification(e.config.EmailVerification.TokenTTL, now)
		if err != nil {
			return e.internalError("issue verification token", acct.ID, err)
		}
		if err := e.store.SetVerificationToken(ctx, acct.ID, tok.Stored(), tok.ExpiresAt()); err != nil {
			return e.internalError("store verification token", acct.ID, err)
		}
		raw = fresh
	}

	if err := e.mailer.SendVerificationLink(ctx, acct.Email, raw); err != nil {
		e.metricInc(MetricDispatchFailure)
		return e.internalError("send verification email", acct.ID, err)
	}
	if err := e.markers.Mark(ctx, stores.MarkerVerify, acct.ID, now, cooldown); err != nil {
		e.logWarn("mark verification sent", acct.ID, err)
	}
	return &UnverifiedError{Email: acct.Email, Token: raw, Cooldown: cooldown}
}

func (e *Engine) rehash(ctx context.Context, accountID, pw string) {
	upgraded, err := e.hasher.Hash(pw)
	if err != nil {
		e.logWarn("rehash password", accountID, err)
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, accountID, upgraded); err != nil {
		e.logWarn("store rehashed password", accountID, err)
	}
}
