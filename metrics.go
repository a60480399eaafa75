package marketAuth

import internalmetrics "github.com/MrEthical07/marketAuth/internal/metrics"

// MetricID identifies one counter in the in-process metrics system.
type MetricID = internalmetrics.ID

const (
	MetricRegisterSuccess     = internalmetrics.RegisterSuccess
	MetricRegisterDuplicate   = internalmetrics.RegisterDuplicate
	MetricVerifySuccess       = internalmetrics.VerifySuccess
	MetricVerifyFailure       = internalmetrics.VerifyFailure
	MetricResendSuccess       = internalmetrics.ResendSuccess
	MetricLoginSuccess        = internalmetrics.LoginSuccess
	MetricLoginFailure        = internalmetrics.LoginFailure
	MetricLoginUnverified     = internalmetrics.LoginUnverified
	MetricLoginThrottled      = internalmetrics.LoginThrottled
	MetricRefreshSuccess      = internalmetrics.RefreshSuccess
	MetricRefreshFailure      = internalmetrics.RefreshFailure
	MetricLogout              = internalmetrics.Logout
	MetricResetRequest        = internalmetrics.ResetRequest
	MetricResetRequestSkipped = internalmetrics.ResetRequestSkipped
	MetricResetConfirmSuccess = internalmetrics.ResetConfirmSuccess
	MetricResetConfirmFailure = internalmetrics.ResetConfirmFailure
	MetricChallengeRequired   = internalmetrics.ChallengeRequired
	MetricChallengeFailed     = internalmetrics.ChallengeFailed
	MetricChallengePassed     = internalmetrics.ChallengePassed
	MetricRateLimitHit        = internalmetrics.RateLimitHit
	MetricBlockedRejected     = internalmetrics.BlockedRejected
	MetricDispatchFailure     = internalmetrics.DispatchFailure
	MetricFlowLatency         = internalmetrics.FlowLatency
)

// MetricsSnapshot is a point-in-time copy of all counters and the latency
// histogram.
type MetricsSnapshot = internalmetrics.Snapshot
