package limiters

import (
	"strings"

	"github.com/MrEthical07/marketAuth/internal/rate"
)

// ActionPasswordReset keys the reset-request budget. Identity is the
// normalized email, whether or not an account exists for it.
const ActionPasswordReset = "password_reset"

type PasswordResetConfig struct {
	HourlyLimit int
	DailyLimit  int
}

// NewPasswordResetLimiter returns the two-tier policy guarding reset email
// requests.
func NewPasswordResetLimiter(counter *rate.Counter, cfg PasswordResetConfig) *TwoTier {
	return NewTwoTier(counter, Policy{
		Action:      ActionPasswordReset,
		HourlyLimit: cfg.HourlyLimit,
		DailyLimit:  cfg.DailyLimit,
	})
}

// ResetIdentity normalizes an email into the limiter identity.
func ResetIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
