package marketAuth

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrTermsNotAccepted is returned by Register when either agreement is missing.
	ErrTermsNotAccepted = errors.New("terms of service and privacy policy must be accepted")
	// ErrInvalidRequest is returned when a required field is empty.
	ErrInvalidRequest = errors.New("email, password, and nickname are required")
	// ErrEmailExists is returned by Register when the email belongs to another account.
	ErrEmailExists = errors.New("email already registered")
	// ErrNicknameExists is returned by Register when the nickname is taken.
	ErrNicknameExists = errors.New("nickname already taken")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrVerificationInvalid covers unknown, expired, and consumed verification links.
	ErrVerificationInvalid = errors.New("invalid or expired verification link")
	// ErrResetInvalid covers unknown, expired, and consumed reset links.
	ErrResetInvalid = errors.New("invalid or expired reset link")
	// ErrRefreshInvalid is returned for malformed or unknown refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is returned for revoked or expired refresh tokens.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrAccountUnverified is the sentinel behind [UnverifiedError].
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountBlocked is the sentinel behind [BlockedError].
	ErrAccountBlocked = errors.New("account has been blocked")
	// ErrRateLimited is the sentinel behind [RateLimitError].
	ErrRateLimited = errors.New("rate limited")
	// ErrChallengeRequired means a human-verification proof must accompany the retry.
	ErrChallengeRequired = errors.New("challenge required")
	// ErrChallengeFailed means the supplied proof was rejected.
	ErrChallengeFailed = errors.New("challenge failed")
	// ErrPasswordTooLong is returned when a password exceeds the hasher's byte limit.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrTokenInvalid is returned by ParseAccessToken for any rejected access token.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrInternal hides store, cache, mailer, and verifier failures from callers.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned when a method is called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// UnverifiedError is returned by LogIn for a correct password on an
// unverified account. Token is the account's live verification token and
// Cooldown is how long the caller must wait before another send.
type UnverifiedError struct {
	Email    string
	Token    string
	Cooldown time.Duration
}

func (e *UnverifiedError) Error() string {
	return fmt.Sprintf("account unverified: resend available in %ds", int64(e.Cooldown.Round(time.Second)/time.Second))
}

func (e *UnverifiedError) Is(target error) bool {
	return target == ErrAccountUnverified
}

// BlockedError reports an active moderation block. Until is nil for
// permanent blocks.
type BlockedError struct {
	Reason string
	Until  *time.Time
}

// Permanent reports whether the block has no end.
func (e *BlockedError) Permanent() bool {
	return e.Until == nil
}

func (e *BlockedError) Error() string {
	if e.Until == nil {
		return "account has been blocked: " + e.Reason
	}
	return "account has been blocked until " + e.Until.UTC().Format(time.RFC3339) + ": " + e.Reason
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrAccountBlocked
}

// RateLimitError carries the tier that rejected the attempt and the nominal
// window the caller should wait.
type RateLimitError struct {
	Action     string
	Tier       string
	RetryAfter time.Duration
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds, as used for
// the Retry-After header.
func (e *RateLimitError) RetryAfterSeconds() int64 {
	secs := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

func (e *RateLimitError) Error() string {
	if e.Tier == "daily" {
		return "too many requests today, try again tomorrow"
	}
	return "too many requests, try again in " + strconv.FormatInt(e.RetryAfterSeconds(), 10) + " seconds"
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
