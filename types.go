package marketAuth

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/sirupsen/logrus"
)

// RegisterRequest is the input to [Engine.Register]. Phone is optional and
// stored as given.
type RegisterRequest struct {
	Email         string
	Password      string
	Nickname      string
	Phone         string
	AcceptTerms   bool
	AcceptPrivacy bool
}

// PublicAccount is the caller-safe view of an account. It never carries
// hashes or tokens.
type PublicAccount struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Phone     string    `json:"phone,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

func publicAccount(a *credential.Account) PublicAccount {
	if a == nil {
		return PublicAccount{}
	}
	return PublicAccount{
		ID:        a.ID,
		Email:     a.Email,
		Nickname:  a.Nickname,
		Phone:     a.Phone,
		Verified:  a.Verified,
		CreatedAt: a.CreatedAt,
	}
}

// RegisterResult is returned by [Engine.Register]. VerificationToken is set
// only when Registration.ExposeVerificationToken is enabled.
type RegisterResult struct {
	Account               PublicAccount `json:"account"`
	VerificationExpiresAt time.Time     `json:"verification_expires_at"`
	ResendCooldown        time.Duration `json:"resend_cooldown"`
	VerificationToken     string        `json:"verification_token,omitempty"`
}

// AuthResult is the token pair returned by verification, login, and refresh.
type AuthResult struct {
	AccessToken      string        `json:"access_token"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshToken     string        `json:"refresh_token"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
	Account          PublicAccount `json:"account"`
}

// VerificationInfo describes a pending verification link. Cooldown is nil
// once a resend is allowed.
type VerificationInfo struct {
	Email    string         `json:"email"`
	SentAt   time.Time      `json:"sent_at"`
	Cooldown *time.Duration `json:"cooldown,omitempty"`
}

// ResendResult is returned by [Engine.ResendVerificationEmail].
type ResendResult struct {
	Email     string        `json:"email"`
	ExpiresAt time.Time     `json:"expires_at"`
	Cooldown  time.Duration `json:"cooldown"`
}

// ResetRequestResult is the single response shape of
// [Engine.SendPasswordResetEmail], whether or not an email was sent.
type ResetRequestResult struct {
	Message  string        `json:"message"`
	Cooldown time.Duration `json:"cooldown"`
}

// ResetTarget names the account a valid reset link belongs to.
type ResetTarget struct {
	Email string `json:"email"`
}

// EmailDispatcher delivers verification and reset links. Implementations
// should return quickly; any error surfaces to callers as [ErrInternal].
type EmailDispatcher interface {
	SendVerificationLink(ctx context.Context, email, token string) error
	SendPasswordResetLink(ctx context.Context, email, token string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink is an [AuditSink] that writes events as structured log entries.
type LogrusSink = internalaudit.LogrusSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogrusSink creates a [LogrusSink] writing to logger.
func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(logger)
}
