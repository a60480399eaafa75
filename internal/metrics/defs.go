package metrics

// Def binds an ID to its exported name and help text.
type Def struct {
	ID   ID
	Name string
	Help string
}

var CounterDefs = []Def{
	{ID: RegisterSuccess, Name: "marketauth_register_success_total", Help: "Accounts registered."},
	{ID: RegisterDuplicate, Name: "marketauth_register_duplicate_total", Help: "Registrations rejected for a taken email or nickname."},
	{ID: VerifySuccess, Name: "marketauth_verify_success_total", Help: "Emails verified."},
	{ID: VerifyFailure, Name: "marketauth_verify_failure_total", Help: "Verification attempts with an invalid or expired token."},
	{ID: ResendSuccess, Name: "marketauth_resend_success_total", Help: "Verification emails re-sent."},
	{ID: LoginSuccess, Name: "marketauth_login_success_total", Help: "Successful logins."},
	{ID: LoginFailure, Name: "marketauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: LoginUnverified, Name: "marketauth_login_unverified_total", Help: "Logins rejected because the email is unverified."},
	{ID: LoginThrottled, Name: "marketauth_login_throttled_total", Help: "Logins rejected by the failure throttle."},
	{ID: RefreshSuccess, Name: "marketauth_refresh_success_total", Help: "Refresh rotations."},
	{ID: RefreshFailure, Name: "marketauth_refresh_failure_total", Help: "Refresh attempts with an invalid or expired credential."},
	{ID: Logout, Name: "marketauth_logout_total", Help: "Logouts."},
	{ID: ResetRequest, Name: "marketauth_reset_request_total", Help: "Password reset emails sent."},
	{ID: ResetRequestSkipped, Name: "marketauth_reset_request_skipped_total", Help: "Reset requests for unknown, deleted, or blocked accounts."},
	{ID: ResetConfirmSuccess, Name: "marketauth_reset_confirm_success_total", Help: "Passwords reset."},
	{ID: ResetConfirmFailure, Name: "marketauth_reset_confirm_failure_total", Help: "Reset attempts with an invalid or expired token."},
	{ID: ChallengeRequired, Name: "marketauth_challenge_required_total", Help: "Attempts that needed a challenge proof and had none."},
	{ID: ChallengeFailed, Name: "marketauth_challenge_failed_total", Help: "Challenge proofs rejected."},
	{ID: ChallengePassed, Name: "marketauth_challenge_passed_total", Help: "Challenge proofs accepted."},
	{ID: RateLimitHit, Name: "marketauth_rate_limit_hit_total", Help: "Attempts rejected by an hourly or daily limit."},
	{ID: BlockedRejected, Name: "marketauth_blocked_rejected_total", Help: "Operations rejected for a blocked account."},
	{ID: DispatchFailure, Name: "marketauth_email_dispatch_failure_total", Help: "Email dispatch failures."},
}

var HistogramDefs = []Def{
	{ID: FlowLatency, Name: "marketauth_flow_latency_seconds", Help: "Engine operation latency."},
}

// BucketUpperBounds are the histogram bucket limits in seconds. The last
// bucket is +Inf and has no entry.
var BucketUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BoundSuffix names each bucket for exporters without native histograms.
var BoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// Cumulative converts non-cumulative buckets, padding or truncating to eight.
func Cumulative(raw []uint64) [bucketCount]uint64 {
	var out [bucketCount]uint64
	var running uint64
	for i := 0; i < bucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
