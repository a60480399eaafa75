package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	"github.com/MrEthical07/marketAuth/credential/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIssuer struct {
	calls atomic.Int64
}

func (s *stubIssuer) CreateAccess(accountID string, verified bool) (string, time.Time, error) {
	s.calls.Add(1)
	return "access-" + accountID, time.Now().Add(15 * time.Minute), nil
}

type failingIssuer struct{}

func (failingIssuer) CreateAccess(string, bool) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer offline")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRotator(t *testing.T) (*Rotator, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	clk := &clock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	r, err := New(store, &stubIssuer{}, Config{})
	require.NoError(t, err)
	r.WithClock(clk.Now)
	return r, store, clk
}

func TestIssueStoresHashOnly(t *testing.T) {
	ctx := context.Background()
	r, store, clk := newRotator(t)

	issued, err := r.Issue(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, issued.Token, 43)
	assert.Equal(t, clk.Now().Add(DefaultTTL), issued.ExpiresAt)

	_, err = store.RefreshCredentialByHash(ctx, issued.Token)
	assert.ErrorIs(t, err, credential.ErrNotFound, "raw token must not be the stored key")
	assert.Equal(t, 1, store.RefreshCount("acc-1"))
}

func TestLookupErrors(t *testing.T) {
	ctx := context.Background()
	r, _, clk := newRotator(t)

	_, err := r.Lookup(ctx, "short")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = r.Lookup(ctx, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	assert.ErrorIs(t, err, ErrInvalid, "well-formed but unknown")

	issued, err := r.Issue(ctx, "acc-1")
	require.NoError(t, err)
	cred, err := r.Lookup(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", cred.AccountID)

	clk.Advance(DefaultTTL)
	_, err = r.Lookup(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRotateReplacesCredential(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newRotator(t)

	issued, err := r.Issue(ctx, "acc-1")
	require.NoError(t, err)

	rotated, err := r.Rotate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", rotated.AccountID)
	assert.Equal(t, "access-acc-1", rotated.AccessToken)
	assert.NotEqual(t, issued.Token, rotated.RefreshToken)

	_, err = r.Rotate(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrExpired, "old token must be unusable after rotation")

	_, err = r.Lookup(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
	assert.Equal(t, 2, store.RefreshCount("acc-1"))
}

func TestRotateSigningFailureKeepsCredential(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r, err := New(store, failingIssuer{}, Config{})
	require.NoError(t, err)

	issued, err := r.Issue(ctx, "acc-1")
	require.NoError(t, err)

	_, err = r.Rotate(ctx, issued.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign access")

	_, err = r.Lookup(ctx, issued.Token)
	assert.NoError(t, err, "credential must survive a failed rotation")
	assert.Equal(t, 1, store.RefreshCount("acc-1"))

	r.issuer = &stubIssuer{}
	rotated, err := r.Rotate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "access-acc-1", rotated.AccessToken)
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRotator(t)

	issued, err := r.Issue(ctx, "acc-1")
	require.NoError(t, err)

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Rotate(ctx, issued.Token); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrExpired) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
}

func TestRevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRotator(t)

	issued, err := r.Issue(ctx, "acc-1")
	require.NoError(t, err)

	revoked, err := r.Revoke(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.Revoke(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = r.Revoke(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = r.Rotate(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newRotator(t)

	a, _ := r.Issue(ctx, "acc-1")
	_, _ = r.Issue(ctx, "acc-1")
	_, _ = r.Issue(ctx, "acc-2")

	n, err := r.RevokeAll(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, store.RefreshCount("acc-1"))
	assert.Equal(t, 1, store.RefreshCount("acc-2"))

	_, err = r.Lookup(ctx, a.Token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, &stubIssuer{}, Config{})
	assert.Error(t, err)
	_, err = New(memstore.New(), nil, Config{})
	assert.Error(t, err)
	_, err = New(memstore.New(), &stubIssuer{}, Config{TTL: -time.Second})
	assert.Error(t, err)
}
