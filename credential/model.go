package credential

import (
	"strings"
	"time"
)

// Account is a marketplace identity as the credential subsystem sees it.
type Account struct {
	ID           string
	Email        string
	Nickname     string
	Phone        string
	PasswordHash string
	Verified     bool

	VerificationToken     string
	VerificationExpiresAt *time.Time

	ResetTokenHash string
	ResetExpiresAt *time.Time

	TermsAcceptedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// VerificationLive reports whether the account holds an unexpired
// verification token at now.
func (a *Account) VerificationLive(now time.Time) bool {
	return a != nil &&
		a.VerificationToken != "" &&
		a.VerificationExpiresAt != nil &&
		now.Before(*a.VerificationExpiresAt)
}

// Reclaimable reports whether an abandoned signup may be replaced by a new
// registration for the same email.
func (a *Account) Reclaimable(now time.Time) bool {
	return a != nil && !a.Verified && !a.VerificationLive(now)
}

// RefreshCredential is one long-lived session credential. Only the hash of
// the opaque token is kept.
type RefreshCredential struct {
	ID        string
	AccountID string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Usable reports whether the credential may be exchanged at now.
func (c *RefreshCredential) Usable(now time.Time) bool {
	return c != nil && c.RevokedAt == nil && now.Before(c.ExpiresAt)
}

// BlockRecord is a moderation decision against an account. A nil ExpiresAt
// is permanent.
type BlockRecord struct {
	ID        string
	AccountID string
	Reason    string
	BlockedAt time.Time
	ExpiresAt *time.Time
}

// Permanent reports whether the block never expires.
func (b BlockRecord) Permanent() bool {
	return b.ExpiresAt == nil
}

// ActiveAt reports whether the block is in force at now.
func (b BlockRecord) ActiveAt(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// ActiveBlock picks the block to report from records: any active permanent
// block, otherwise the active temporary block that ends last. It returns nil
// when nothing is active.
func ActiveBlock(records []BlockRecord, now time.Time) *BlockRecord {
	var picked *BlockRecord
	for i := range records {
		rec := records[i]
		if !rec.ActiveAt(now) {
			continue
		}
		if rec.Permanent() {
			return &rec
		}
		if picked == nil || rec.ExpiresAt.After(*picked.ExpiresAt) {
			picked = &rec
		}
	}
	return picked
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
