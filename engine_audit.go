package marketAuth

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
)

// AuditErrorCode is the machine-readable failure reason carried by audit
// events.
type AuditErrorCode string

const (
	auditErrTermsNotAccepted   AuditErrorCode = "terms_not_accepted"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrAccountBlocked     AuditErrorCode = "account_blocked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrChallengeRequired  AuditErrorCode = "challenge_required"
	auditErrChallengeFailed    AuditErrorCode = "challenge_failed"
	auditErrPasswordTooLong    AuditErrorCode = "password_too_long"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Code = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, action string, rl *RateLimitError) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, internalaudit.EventRateLimited, false, "", rl, func() map[string]string {
		return map[string]string{
			"action": action,
			"tier":   rl.Tier,
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTermsNotAccepted):
		return auditErrTermsNotAccepted
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrEmailExists),
		errors.Is(err, ErrNicknameExists):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrVerificationInvalid),
		errors.Is(err, ErrResetInvalid),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrAccountBlocked):
		return auditErrAccountBlocked
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrChallengeRequired):
		return auditErrChallengeRequired
	case errors.Is(err, ErrChallengeFailed):
		return auditErrChallengeFailed
	case errors.Is(err, ErrPasswordTooLong):
		return auditErrPasswordTooLong
	default:
		return auditErrInternal
	}
}
