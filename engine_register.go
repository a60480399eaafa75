package marketAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/stores"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/token"
)

// Register creates an unverified account and emails its verification link.
//
// An existing account with the same email blocks the signup unless it is
// unverified, its link has expired, and Registration.ReclaimExpiredUnverified
// is on; in that case the abandoned account is replaced. The store's unique
// constraints decide concurrent signups for the same email or nickname.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	defer e.observe(time.Now())

	if !req.AcceptTerms || !req.AcceptPrivacy {
		e.emitAudit(ctx, internalaudit.EventRegister, false, "", ErrTermsNotAccepted, nil)
		return nil, ErrTermsNotAccepted
	}

	email := credential.NormalizeEmail(req.Email)
	nickname := strings.TrimSpace(req.Nickname)
	if email == "" || nickname == "" || req.Password == "" {
		e.emitAudit(ctx, internalaudit.EventRegister, false, "", ErrInvalidRequest, nil)
		return nil, ErrInvalidRequest
	}

	now := e.now()

	stale, err := e.store.AccountByEmail(ctx, email)
	switch {
	case isNotFound(err):
		stale = nil
	case err != nil:
		return nil, e.internalError("load account by email", "", err)
	case !e.config.Registration.ReclaimExpiredUnverified || !stale.Reclaimable(now):
		return nil, e.registerDuplicate(ctx, ErrEmailExists)
	}

	holder, err := e.store.AccountByNickname(ctx, nickname)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, e.internalError("load account by nickname", "", err)
	case stale == nil || holder.ID != stale.ID:
		return nil, e.registerDuplicate(ctx, ErrNicknameExists)
	}

	hash, err := e.hasher.Hash(req.Password)
	if errors.Is(err, password.ErrTooLong) {
		e.emitAudit(ctx, internalaudit.EventRegister, false, "", ErrPasswordTooLong, nil)
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, e.internalError("hash password", "", err)
	}

	raw, tok, err := token.IssueVerification(e.config.EmailVerification.TokenTTL, now)
	if err != nil {
		return nil, e.internalError("issue verification token", "", err)
	}

	if stale != nil {
		if err := e.store.DeleteUnverifiedAccount(ctx, stale.ID); err != nil && !isNotFound(err) {
			return nil, e.internalError("delete abandoned account", stale.ID, err)
		}
		e.logger.WithField("account_id", stale.ID).Info("replaced abandoned unverified account")
	}

	expiresAt := tok.ExpiresAt()
	acct := &credential.Account{
		Email:                 email,
		Nickname:              nickname,
		Phone:                 strings.TrimSpace(req.Phone),
		PasswordHash:          hash,
		Verified:              false,
		VerificationToken:     tok.Stored(),
		VerificationExpiresAt: &expiresAt,
		TermsAcceptedAt:       now,
	}
	if err := e.store.CreateAccount(ctx, acct); err != nil {
		switch {
		case errors.Is(err, credential.ErrDuplicateEmail):
			return nil, e.registerDuplicate(ctx, ErrEmailExists)
		case errors.Is(err, credential.ErrDuplicateNickname):
			return nil, e.registerDuplicate(ctx, ErrNicknameExists)
		default:
			return nil, e.internalError("create account", "", err)
		}
	}

	if err := e.mailer.SendVerificationLink(ctx, acct.Email, raw); err != nil {
		e.metricInc(MetricDispatchFailure)
		return nil, e.internalError("send verification email", acct.ID, err)
	}
	cooldown := e.config.EmailVerification.ResendCooldown
	if err := e.markers.Mark(ctx, stores.MarkerVerify, acct.ID, now, cooldown); err != nil {
		e.logWarn("mark verification sent", acct.ID, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, internalaudit.EventRegister, true, acct.ID, nil, func() map[string]string {
		if stale == nil {
			return nil
		}
		return map[string]string{"replaced": stale.ID}
	})

	result := &RegisterResult{
		Account:               publicAccount(acct),
		VerificationExpiresAt: expiresAt,
		ResendCooldown:        cooldown,
	}
	if e.config.Registration.ExposeVerificationToken {
		result.VerificationToken = raw
	}
	return result, nil
}

func (e *Engine) registerDuplicate(ctx context.Context, err error) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, internalaudit.EventRegister, false, "", err, nil)
	return err
}
