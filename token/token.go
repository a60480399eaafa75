package token

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/marketAuth/internal"
)

// Kind tags the two token variants.
type Kind uint8

const (
	// KindVerification tokens are searchable: stored and compared as issued.
	KindVerification Kind = iota + 1
	// KindReset tokens are secret at rest: only their hash is ever stored.
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindVerification:
		return "verification"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidTTL = errors.New("token ttl must be > 0")
	ErrGenerate   = errors.New("token generation failed")
)

// Token is the persisted side of an issued token.
type Token interface {
	Kind() Kind
	// Stored is the value written to the credential store.
	Stored() string
	ExpiresAt() time.Time
}

// VerificationToken is the searchable variant used for email verification.
type VerificationToken struct {
	value     string
	expiresAt time.Time
}

// ResetToken is the secret-at-rest variant used for password reset.
type ResetToken struct {
	hash      string
	expiresAt time.Time
}

// StoredVerification rebuilds a [VerificationToken] from persisted fields.
func StoredVerification(value string, expiresAt time.Time) VerificationToken {
	return VerificationToken{value: value, expiresAt: expiresAt}
}

// StoredReset rebuilds a [ResetToken] from a persisted hash.
func StoredReset(hash string, expiresAt time.Time) ResetToken {
	return ResetToken{hash: hash, expiresAt: expiresAt}
}

func (t VerificationToken) Kind() Kind           { return KindVerification }
func (t VerificationToken) Stored() string       { return t.value }
func (t VerificationToken) ExpiresAt() time.Time { return t.expiresAt }

// Extend returns the same token value with a new expiry.
func (t VerificationToken) Extend(ttl time.Duration, now time.Time) VerificationToken {
	return VerificationToken{value: t.value, expiresAt: now.Add(ttl)}
}

func (t ResetToken) Kind() Kind           { return KindReset }
func (t ResetToken) Stored() string       { return t.hash }
func (t ResetToken) ExpiresAt() time.Time { return t.expiresAt }

// IssueVerification creates a verification token valid for ttl from now.
// The raw value equals the stored value.
func IssueVerification(ttl time.Duration, now time.Time) (string, VerificationToken, error) {
	if ttl <= 0 {
		return "", VerificationToken{}, ErrInvalidTTL
	}
	raw, err := internal.NewOpaqueToken()
	if err != nil {
		return "", VerificationToken{}, errors.Join(ErrGenerate, err)
	}
	return raw, VerificationToken{value: raw, expiresAt: now.Add(ttl)}, nil
}

// IssueReset creates a reset token valid for ttl from now. The raw value is
// returned once and is never part of the [ResetToken].
func IssueReset(ttl time.Duration, now time.Time) (string, ResetToken, error) {
	if ttl <= 0 {
		return "", ResetToken{}, ErrInvalidTTL
	}
	raw, err := internal.NewOpaqueToken()
	if err != nil {
		return "", ResetToken{}, errors.Join(ErrGenerate, err)
	}
	return raw, ResetToken{hash: internal.HashToken(raw), expiresAt: now.Add(ttl)}, nil
}

// HashReset returns the lookup key for a presented reset token.
func HashReset(raw string) string {
	return internal.HashToken(raw)
}

// WellFormed reports whether raw has the shape of an issued token. Callers
// may use it to skip store lookups for garbage input.
func WellFormed(raw string) bool {
	return internal.WellFormedToken(raw)
}

// Validate reports whether raw matches tok and tok has not expired at now.
// A nil tok, a mismatch, and an expired token all report false.
func Validate(tok Token, raw string, now time.Time) bool {
	if tok == nil || raw == "" || tok.Stored() == "" {
		return false
	}
	presented := raw
	if tok.Kind() == KindReset {
		presented = internal.HashToken(raw)
	}
	match := subtle.ConstantTimeCompare([]byte(presented), []byte(tok.Stored())) == 1
	return match && now.Before(tok.ExpiresAt())
}
