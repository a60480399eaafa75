// Package memstore is an in-process credential.Store. It backs tests, the
// load-test binary, and local development.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	"github.com/google/uuid"
)

// Store keeps every record in maps guarded by one mutex, which makes each
// method atomic.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*credential.Account
	refresh  map[string]*credential.RefreshCredential
	blocks   map[string][]credential.BlockRecord
}

var _ credential.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:      time.Now,
		accounts: make(map[string]*credential.Account),
		refresh:  make(map[string]*credential.RefreshCredential),
		blocks:   make(map[string][]credential.BlockRecord),
	}
}

// WithClock sets the clock used for CreatedAt/UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) CreateAccount(_ context.Context, acct *credential.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct.Email = credential.NormalizeEmail(acct.Email)
	for _, existing := range s.accounts {
		if existing.Email == acct.Email {
			return credential.ErrDuplicateEmail
		}
		if existing.Nickname == acct.Nickname {
			return credential.ErrDuplicateNickname
		}
	}

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (s *Store) AccountByID(_ context.Context, id string) (*credential.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *credential.Account) bool { return a.ID == id })
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*credential.Account, error) {
	email = credential.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *credential.Account) bool { return a.Email == email })
}

func (s *Store) AccountByNickname(_ context.Context, nickname string) (*credential.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *credential.Account) bool { return a.Nickname == nickname })
}

func (s *Store) AccountByVerificationToken(_ context.Context, token string) (*credential.Account, error) {
	if token == "" {
		return nil, credential.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *credential.Account) bool { return a.VerificationToken == token })
}

func (s *Store) AccountByResetTokenHash(_ context.Context, hash string) (*credential.Account, error) {
	if hash == "" {
		return nil, credential.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *credential.Account) bool { return a.ResetTokenHash == hash })
}

func (s *Store) DeleteUnverifiedAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok || acct.Verified || acct.DeletedAt != nil {
		return credential.ErrNotFound
	}
	delete(s.accounts, id)
	for hash, cred := range s.refresh {
		if cred.AccountID == id {
			delete(s.refresh, hash)
		}
	}
	return nil
}

func (s *Store) SetVerificationToken(_ context.Context, id, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.live(id)
	if err != nil {
		return err
	}
	exp := expiresAt.UTC()
	acct.VerificationToken = token
	acct.VerificationExpiresAt = &exp
	acct.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) MarkVerified(_ context.Context, id, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.live(id)
	if err != nil {
		return err
	}
	if acct.Verified || token == "" || acct.VerificationToken != token || !acct.VerificationLive(now) {
		return credential.ErrNotFound
	}
	acct.Verified = true
	acct.VerificationToken = ""
	acct.VerificationExpiresAt = nil
	acct.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) SetPasswordReset(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.live(id)
	if err != nil {
		return err
	}
	exp := expiresAt.UTC()
	acct.ResetTokenHash = tokenHash
	acct.ResetExpiresAt = &exp
	acct.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ConsumePasswordReset(_ context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.live(id)
	if err != nil {
		return err
	}
	if tokenHash == "" || acct.ResetTokenHash != tokenHash || acct.ResetExpiresAt == nil || !now.Before(*acct.ResetExpiresAt) {
		return credential.ErrNotFound
	}
	acct.PasswordHash = passwordHash
	acct.ResetTokenHash = ""
	acct.ResetExpiresAt = nil
	acct.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.live(id)
	if err != nil {
		return err
	}
	acct.PasswordHash = passwordHash
	acct.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) CreateRefreshCredential(_ context.Context, cred *credential.RefreshCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertRefresh(cred)
}

func (s *Store) RefreshCredentialByHash(_ context.Context, tokenHash string) (*credential.RefreshCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.refresh[tokenHash]
	if !ok {
		return nil, credential.ErrNotFound
	}
	return cloneRefresh(cred), nil
}

func (s *Store) RotateRefreshCredential(_ context.Context, oldHash string, now time.Time, next *credential.RefreshCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.refresh[oldHash]
	if !ok || !old.Usable(now) {
		return credential.ErrNotFound
	}
	if _, dup := s.refresh[next.TokenHash]; dup {
		return credential.ErrDuplicateToken
	}
	revokedAt := now.UTC()
	old.RevokedAt = &revokedAt
	return s.insertRefresh(next)
}

func (s *Store) RevokeRefreshCredential(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.refresh[tokenHash]
	if !ok || cred.RevokedAt != nil {
		return false, nil
	}
	revokedAt := now.UTC()
	cred.RevokedAt = &revokedAt
	return true, nil
}

func (s *Store) DeleteRefreshCredentials(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, cred := range s.refresh {
		if cred.AccountID == accountID {
			delete(s.refresh, hash)
			n++
		}
	}
	return n, nil
}

func (s *Store) BlockRecords(_ context.Context, accountID string) ([]credential.BlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.blocks[accountID]
	out := make([]credential.BlockRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// AddBlock records a moderation block. Moderation itself lives outside this
// module; the method exists for tests and local tooling.
func (s *Store) AddBlock(rec credential.BlockRecord) credential.BlockRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.BlockedAt.IsZero() {
		rec.BlockedAt = s.now().UTC()
	}
	s.blocks[rec.AccountID] = append(s.blocks[rec.AccountID], rec)
	return rec
}

// SoftDelete marks an account deleted, as the listing-owner flows do.
func (s *Store) SoftDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[id]; ok {
		at := s.now().UTC()
		acct.DeletedAt = &at
	}
}

// RefreshCount returns how many credentials (revoked or not) belong to accountID.
func (s *Store) RefreshCount(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, cred := range s.refresh {
		if cred.AccountID == accountID {
			n++
		}
	}
	return n
}

// AccountCount returns the number of stored accounts, soft-deleted included.
func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *Store) insertRefresh(cred *credential.RefreshCredential) error {
	if _, dup := s.refresh[cred.TokenHash]; dup {
		return credential.ErrDuplicateToken
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	s.refresh[cred.TokenHash] = cloneRefresh(cred)
	return nil
}

func (s *Store) find(match func(*credential.Account) bool) (*credential.Account, error) {
	for _, acct := range s.accounts {
		if acct.DeletedAt == nil && match(acct) {
			return cloneAccount(acct), nil
		}
	}
	return nil, credential.ErrNotFound
}

func (s *Store) live(id string) (*credential.Account, error) {
	acct, ok := s.accounts[id]
	if !ok || acct.DeletedAt != nil {
		return nil, credential.ErrNotFound
	}
	return acct, nil
}

func cloneAccount(a *credential.Account) *credential.Account {
	out := *a
	out.VerificationExpiresAt = cloneTime(a.VerificationExpiresAt)
	out.ResetExpiresAt = cloneTime(a.ResetExpiresAt)
	out.DeletedAt = cloneTime(a.DeletedAt)
	return &out
}

func cloneRefresh(c *credential.RefreshCredential) *credential.RefreshCredential {
	out := *c
	out.RevokedAt = cloneTime(c.RevokedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
