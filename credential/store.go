package credential

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for missing rows and for conditional updates
	// whose condition no longer holds.
	ErrNotFound = errors.New("credential record not found")
	// ErrDuplicateEmail is returned when the email unique constraint fires.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateNickname is returned when the nickname unique constraint fires.
	ErrDuplicateNickname = errors.New("nickname already taken")
	// ErrDuplicateToken is returned when a refresh token hash collides.
	ErrDuplicateToken = errors.New("refresh credential already exists")
)

// AccountStore persists accounts. Lookups never return soft-deleted rows.
// Emails are passed and stored in [NormalizeEmail] form.
type AccountStore interface {
	// CreateAccount inserts acct, assigning ID and timestamps when empty.
	CreateAccount(ctx context.Context, acct *Account) error
	AccountByID(ctx context.Context, id string) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByNickname(ctx context.Context, nickname string) (*Account, error)
	AccountByVerificationToken(ctx context.Context, token string) (*Account, error)
	AccountByResetTokenHash(ctx context.Context, hash string) (*Account, error)

	// DeleteUnverifiedAccount hard-deletes an abandoned signup. It returns
	// ErrNotFound when the account is gone or already verified.
	DeleteUnverifiedAccount(ctx context.Context, id string) error

	// SetVerificationToken overwrites the account's verification token.
	SetVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error
	// MarkVerified sets verified and clears the token, only while token is
	// still the account's live token at now. Otherwise ErrNotFound.
	MarkVerified(ctx context.Context, id, token string, now time.Time) error

	// SetPasswordReset overwrites the account's reset token hash.
	SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// ConsumePasswordReset stores passwordHash and clears the reset token,
	// only while tokenHash is still live at now. Otherwise ErrNotFound.
	ConsumePasswordReset(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error

	// UpdatePasswordHash replaces the stored hash (used for rehash on login).
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// RefreshStore persists refresh credentials.
type RefreshStore interface {
	CreateRefreshCredential(ctx context.Context, cred *RefreshCredential) error
	RefreshCredentialByHash(ctx context.Context, tokenHash string) (*RefreshCredential, error)
	// RotateRefreshCredential revokes oldHash and inserts next as one
	// transaction. ErrNotFound when oldHash is no longer usable at now.
	RotateRefreshCredential(ctx context.Context, oldHash string, now time.Time, next *RefreshCredential) error
	// RevokeRefreshCredential reports whether a live row was revoked.
	RevokeRefreshCredential(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	DeleteRefreshCredentials(ctx context.Context, accountID string) (int64, error)
}

// BlockStore reads moderation records.
type BlockStore interface {
	BlockRecords(ctx context.Context, accountID string) ([]BlockRecord, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	AccountStore
	RefreshStore
	BlockStore
}
