package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	"github.com/MrEthical07/marketAuth/internal"
)

// DefaultTTL is the refresh credential lifetime.
const DefaultTTL = 14 * 24 * time.Hour

var (
	// ErrInvalid means the token is malformed or unknown.
	ErrInvalid = errors.New("refresh token invalid")
	// ErrExpired means the credential exists but is revoked or past expiry.
	ErrExpired = errors.New("refresh token expired")
)

// Store is the persistence the rotator needs.
type Store = credential.RefreshStore

// AccessIssuer signs access tokens. *jwt.Manager satisfies it.
type AccessIssuer interface {
	CreateAccess(accountID string, verified bool) (string, time.Time, error)
}

// Config controls credential lifetime.
type Config struct {
	TTL time.Duration
}

// Issued is a freshly created credential with its raw token.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	AccountID string
}

// Rotated is the result of a successful rotation.
type Rotated struct {
	AccountID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Rotator owns the refresh credential lifecycle.
type Rotator struct {
	store  Store
	issuer AccessIssuer
	ttl    time.Duration
	now    func() time.Time
}

// New returns a Rotator. A zero TTL means DefaultTTL.
func New(store Store, issuer AccessIssuer, cfg Config) (*Rotator, error) {
	if store == nil {
		return nil, errors.New("refresh: nil store")
	}
	if issuer == nil {
		return nil, errors.New("refresh: nil access issuer")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("refresh: negative ttl")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return &Rotator{store: store, issuer: issuer, ttl: cfg.TTL, now: time.Now}, nil
}

// WithClock replaces the rotator's clock.
func (r *Rotator) WithClock(now func() time.Time) *Rotator {
	if now != nil {
		r.now = now
	}
	return r
}

// TTL returns the configured lifetime.
func (r *Rotator) TTL() time.Duration {
	return r.ttl
}

// Issue creates a credential for accountID.
func (r *Rotator) Issue(ctx context.Context, accountID string) (Issued, error) {
	raw, cred, err := r.mint(accountID, r.now())
	if err != nil {
		return Issued{}, err
	}
	if err := r.store.CreateRefreshCredential(ctx, cred); err != nil {
		return Issued{}, fmt.Errorf("refresh: store credential: %w", err)
	}
	return Issued{Token: raw, ExpiresAt: cred.ExpiresAt, AccountID: accountID}, nil
}

// Lookup resolves raw to its credential. Unknown or malformed tokens yield
// ErrInvalid; revoked or expired ones yield ErrExpired.
func (r *Rotator) Lookup(ctx context.Context, raw string) (*credential.RefreshCredential, error) {
	if !internal.WellFormedToken(raw) {
		return nil, ErrInvalid
	}
	cred, err := r.store.RefreshCredentialByHash(ctx, internal.HashToken(raw))
	if errors.Is(err, credential.ErrNotFound) {
		return nil, ErrInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: lookup: %w", err)
	}
	if !cred.Usable(r.now()) {
		return nil, ErrExpired
	}
	return cred, nil
}

// Rotate exchanges raw for a new refresh credential and a new access token.
// Only verified accounts ever hold refresh credentials, so the access token
// is signed as verified. The access token is signed before the store commit;
// a signing failure leaves raw usable.
func (r *Rotator) Rotate(ctx context.Context, raw string) (Rotated, error) {
	cred, err := r.Lookup(ctx, raw)
	if err != nil {
		return Rotated{}, err
	}

	now := r.now()
	nextRaw, next, err := r.mint(cred.AccountID, now)
	if err != nil {
		return Rotated{}, err
	}
	access, accessExp, err := r.issuer.CreateAccess(cred.AccountID, true)
	if err != nil {
		return Rotated{}, fmt.Errorf("refresh: sign access: %w", err)
	}

	err = r.store.RotateRefreshCredential(ctx, cred.TokenHash, now, next)
	if errors.Is(err, credential.ErrNotFound) {
		return Rotated{}, ErrExpired
	}
	if err != nil {
		return Rotated{}, fmt.Errorf("refresh: rotate: %w", err)
	}

	return Rotated{
		AccountID:        cred.AccountID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     nextRaw,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// Revoke marks raw revoked. Unknown, malformed, and already revoked tokens
// are no-ops that report false.
func (r *Rotator) Revoke(ctx context.Context, raw string) (bool, error) {
	if !internal.WellFormedToken(raw) {
		return false, nil
	}
	return r.store.RevokeRefreshCredential(ctx, internal.HashToken(raw), r.now())
}

// RevokeAll deletes every credential of accountID.
func (r *Rotator) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	return r.store.DeleteRefreshCredentials(ctx, accountID)
}

func (r *Rotator) mint(accountID string, now time.Time) (string, *credential.RefreshCredential, error) {
	if accountID == "" {
		return "", nil, errors.New("refresh: empty account id")
	}
	raw, err := internal.NewOpaqueToken()
	if err != nil {
		return "", nil, fmt.Errorf("refresh: generate token: %w", err)
	}
	return raw, &credential.RefreshCredential{
		AccountID: accountID,
		TokenHash: internal.HashToken(raw),
		IssuedAt:  now.UTC(),
		ExpiresAt: now.Add(r.ttl).UTC(),
	}, nil
}
