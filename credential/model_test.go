package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRecordActive(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	assert.True(t, BlockRecord{}.ActiveAt(now), "permanent block is always active")
	assert.False(t, BlockRecord{ExpiresAt: &past}.ActiveAt(now))
	assert.False(t, BlockRecord{ExpiresAt: &now}.ActiveAt(now), "expiry instant is already inactive")
	assert.True(t, BlockRecord{ExpiresAt: &future}.ActiveAt(now))
}

func TestActiveBlockPrefersPermanentThenLatest(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	soon := now.Add(time.Hour)
	later := now.Add(48 * time.Hour)

	assert.Nil(t, ActiveBlock(nil, now))
	assert.Nil(t, ActiveBlock([]BlockRecord{{ID: "old", ExpiresAt: &past}}, now))

	got := ActiveBlock([]BlockRecord{
		{ID: "soon", ExpiresAt: &soon},
		{ID: "later", ExpiresAt: &later},
		{ID: "old", ExpiresAt: &past},
	}, now)
	require.NotNil(t, got)
	assert.Equal(t, "later", got.ID)

	got = ActiveBlock([]BlockRecord{
		{ID: "later", ExpiresAt: &later},
		{ID: "perm", Reason: "fraud"},
	}, now)
	require.NotNil(t, got)
	assert.Equal(t, "perm", got.ID)
	assert.True(t, got.Permanent())
}

func TestRefreshCredentialUsable(t *testing.T) {
	now := time.Now().UTC()
	revoked := now.Add(-time.Second)

	var nilCred *RefreshCredential
	assert.False(t, nilCred.Usable(now))
	assert.True(t, (&RefreshCredential{ExpiresAt: now.Add(time.Hour)}).Usable(now))
	assert.False(t, (&RefreshCredential{ExpiresAt: now}).Usable(now))
	assert.False(t, (&RefreshCredential{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}).Usable(now))
}

func TestAccountReclaimable(t *testing.T) {
	now := time.Now().UTC()
	expired := now.Add(-time.Minute)
	live := now.Add(time.Hour)

	assert.True(t, (&Account{VerificationToken: "t", VerificationExpiresAt: &expired}).Reclaimable(now))
	assert.True(t, (&Account{}).Reclaimable(now), "unverified without a token is abandoned")
	assert.False(t, (&Account{VerificationToken: "t", VerificationExpiresAt: &live}).Reclaimable(now))
	assert.False(t, (&Account{Verified: true}).Reclaimable(now))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}
