package limiters

import (
	"github.com/MrEthical07/marketAuth/internal/rate"
)

// ActionResendVerification keys the resend-verification budget. Identity is
// the account ID.
const ActionResendVerification = "resend_verification"

type EmailVerificationConfig struct {
	HourlyLimit int
	DailyLimit  int
}

// NewResendVerificationLimiter returns the two-tier policy guarding
// verification email resends.
func NewResendVerificationLimiter(counter *rate.Counter, cfg EmailVerificationConfig) *TwoTier {
	return NewTwoTier(counter, Policy{
		Action:      ActionResendVerification,
		HourlyLimit: cfg.HourlyLimit,
		DailyLimit:  cfg.DailyLimit,
	})
}
