package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/labstack/echo/v4"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after,omitempty"`

	// Set for unverified logins.
	Email             string `json:"email,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
	Cooldown          *int64 `json:"cooldown,omitempty"`

	// Set for blocks. BlockedUntil is empty when the block is permanent.
	Reason       string `json:"reason,omitempty"`
	BlockedUntil string `json:"blocked_until,omitempty"`
}

// writeError renders err with the status its engine sentinel maps to.
func writeError(c echo.Context, err error) error {
	status, body := mapError(err)
	if status == http.StatusTooManyRequests && body.RetryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.FormatInt(body.RetryAfter, 10))
	}
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, body)
}

func mapError(err error) (int, ErrorBody) {
	var (
		rl         *marketAuth.RateLimitError
		unverified *marketAuth.UnverifiedError
		blocked    *marketAuth.BlockedError
	)

	switch {
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, ErrorBody{Code: "rate_limited", Message: rl.Error(), RetryAfter: rl.RetryAfterSeconds()}
	case errors.As(err, &unverified):
		secs := ceilSeconds(unverified.Cooldown)
		return http.StatusForbidden, ErrorBody{
			Code:              "account_unverified",
			Message:           "email address has not been verified",
			Email:             unverified.Email,
			VerificationToken: unverified.Token,
			Cooldown:          &secs,
		}
	case errors.As(err, &blocked):
		body := ErrorBody{Code: "account_blocked", Message: blocked.Error(), Reason: blocked.Reason}
		if blocked.Until != nil {
			body.BlockedUntil = blocked.Until.UTC().Format(time.RFC3339)
		}
		return http.StatusForbidden, body
	case errors.Is(err, marketAuth.ErrChallengeRequired):
		return http.StatusBadRequest, ErrorBody{Code: "challenge_required", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrChallengeFailed):
		return http.StatusBadRequest, ErrorBody{Code: "challenge_failed", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorBody{Code: "invalid_credentials", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrRefreshInvalid), errors.Is(err, marketAuth.ErrRefreshExpired):
		return http.StatusUnauthorized, ErrorBody{Code: "invalid_refresh_token", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrTokenInvalid):
		return http.StatusUnauthorized, ErrorBody{Code: "unauthorized", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrVerificationInvalid), errors.Is(err, marketAuth.ErrResetInvalid):
		return http.StatusBadRequest, ErrorBody{Code: "invalid_token", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrTermsNotAccepted):
		return http.StatusBadRequest, ErrorBody{Code: "terms_not_accepted", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrInvalidRequest), errors.Is(err, marketAuth.ErrPasswordTooLong):
		return http.StatusBadRequest, ErrorBody{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrEmailExists):
		return http.StatusConflict, ErrorBody{Code: "email_exists", Message: err.Error()}
	case errors.Is(err, marketAuth.ErrNicknameExists):
		return http.StatusConflict, ErrorBody{Code: "nickname_exists", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: "internal_error", Message: "internal error"}
	}
}

func ceilSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
