package marketAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	"golang.org/x/crypto/bcrypt"
)

func TestLogInSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg, _ := env.registerVerified(t, "a@x.com", "alice")

	auth, err := env.engine.LogIn(ctx, " A@X.COM ", testPassword)
	if err != nil {
		t.Fatalf("LogIn failed: %v", err)
	}
	if auth.Account.ID != reg.Account.ID {
		t.Fatalf("expected account %s, got %s", reg.Account.ID, auth.Account.ID)
	}
	if !auth.AccessExpiresAt.Equal(testEpoch.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", auth.AccessExpiresAt)
	}
	if !auth.RefreshExpiresAt.Equal(testEpoch.Add(14 * 24 * time.Hour)) {
		t.Fatalf("unexpected refresh expiry %v", auth.RefreshExpiresAt)
	}

	claims, err := env.engine.ParseAccessToken(ctx, auth.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken failed: %v", err)
	}
	if claims.AccountID != reg.Account.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := env.engine.ParseAccessToken(ctx, auth.AccessToken+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for a tampered token, got %v", err)
	}
}

func TestLogInUnknownEmailAndWrongPasswordMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "a@x.com", "alice")

	_, unknown := env.engine.LogIn(ctx, "nobody@x.com", testPassword)
	_, wrong := env.engine.LogIn(ctx, "a@x.com", "nope")
	_, tooLong := env.engine.LogIn(ctx, "a@x.com", strings.Repeat("p", 4096))

	for _, err := range []error{unknown, wrong, tooLong} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("messages differ: %q vs %q", unknown, wrong)
	}
}

func TestLogInUnverifiedWithinCooldownDoesNotSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, registerRequest("a@x.com", "alice")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	tok := env.mailer.last("verify").token
	env.advance(10 * time.Second)

	_, err := env.engine.LogIn(ctx, "a@x.com", testPassword)
	var unverified *UnverifiedError
	if !errors.As(err, &unverified) || !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected *UnverifiedError, got %v", err)
	}
	if unverified.Token != tok || unverified.Cooldown != 50*time.Second {
		t.Fatalf("unexpected unverified error %+v", unverified)
	}
	if env.mailer.count("verify") != 1 {
		t.Fatal("no email should be sent during the cooldown")
	}
}

func TestLogInUnverifiedAfterCooldownResends(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, registerRequest("a@x.com", "alice")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	tok := env.mailer.last("verify").token
	env.advance(2 * time.Minute)

	_, err := env.engine.LogIn(ctx, "a@x.com", testPassword)
	var unverified *UnverifiedError
	if !errors.As(err, &unverified) {
		t.Fatalf("expected *UnverifiedError, got %v", err)
	}
	if unverified.Token != tok || unverified.Cooldown != time.Minute {
		t.Fatalf("expected the live token with a full cooldown, got %+v", unverified)
	}
	if env.mailer.count("verify") != 2 {
		t.Fatalf("expected a resend, got %d mails", env.mailer.count("verify"))
	}
}

func TestLogInUnverifiedExpiredTokenRegenerates(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Registration.ReclaimExpiredUnverified = false
	})
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, registerRequest("a@x.com", "alice")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	old := env.mailer.last("verify").token
	env.advance(4 * time.Hour)

	_, err := env.engine.LogIn(ctx, "a@x.com", testPassword)
	var unverified *UnverifiedError
	if !errors.As(err, &unverified) {
		t.Fatalf("expected *UnverifiedError, got %v", err)
	}
	if unverified.Token == old || env.mailer.last("verify").token != unverified.Token {
		t.Fatal("expected a freshly generated and emailed token")
	}
	if _, err := env.engine.VerifyEmailByToken(ctx, old); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("old token must be dead, got %v", err)
	}
	if _, err := env.engine.VerifyEmailByToken(ctx, unverified.Token); err != nil {
		t.Fatalf("new token should verify: %v", err)
	}
}

func TestLogInBlockedAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg, _ := env.registerVerified(t, "a@x.com", "alice")

	until := testEpoch.Add(time.Hour)
	env.store.AddBlock(credential.BlockRecord{AccountID: reg.Account.ID, Reason: "chargeback", ExpiresAt: &until})

	_, err := env.engine.LogIn(ctx, "a@x.com", testPassword)
	var blocked *BlockedError
	if !errors.As(err, &blocked) || !errors.Is(err, ErrAccountBlocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Permanent() || !blocked.Until.Equal(until) || blocked.Reason != "chargeback" {
		t.Fatalf("unexpected block %+v", blocked)
	}

	env.advance(time.Hour + time.Second)
	if _, err := env.engine.LogIn(ctx, "a@x.com", testPassword); err != nil {
		t.Fatalf("expired block must not apply, got %v", err)
	}

	env.store.AddBlock(credential.BlockRecord{AccountID: reg.Account.ID, Reason: "fraud"})
	_, err = env.engine.LogIn(ctx, "a@x.com", testPassword)
	if !errors.As(err, &blocked) || !blocked.Permanent() || blocked.Reason != "fraud" {
		t.Fatalf("expected permanent block, got %v", err)
	}
}

func TestLogInBlockedWithWrongPasswordIsInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	reg, _ := env.registerVerified(t, "a@x.com", "alice")
	env.store.AddBlock(credential.BlockRecord{AccountID: reg.Account.ID, Reason: "fraud"})

	if _, err := env.engine.LogIn(context.Background(), "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogInThrottle(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Login.MaxFailures = 3
	})
	ctx := context.Background()
	env.registerVerified(t, "a@x.com", "alice")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.LogIn(ctx, "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.LogIn(ctx, "a@x.com", testPassword)
	rl := mustRateLimit(t, err)
	if rl.Action != "login" || rl.RetryAfter != 15*time.Minute {
		t.Fatalf("unexpected rate limit %+v", rl)
	}

	env.advance(15*time.Minute + time.Second)
	if _, err := env.engine.LogIn(ctx, "a@x.com", testPassword); err != nil {
		t.Fatalf("throttle should lapse after the window, got %v", err)
	}
}

func TestLogInUpgradesLegacyHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg, _ := env.registerVerified(t, "a@x.com", "alice")

	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	if err := env.store.UpdatePasswordHash(ctx, reg.Account.ID, string(legacy)); err != nil {
		t.Fatalf("UpdatePasswordHash failed: %v", err)
	}

	if _, err := env.engine.LogIn(ctx, "a@x.com", testPassword); err != nil {
		t.Fatalf("LogIn with bcrypt hash failed: %v", err)
	}
	acct, _ := env.store.AccountByID(ctx, reg.Account.ID)
	if !strings.HasPrefix(acct.PasswordHash, "$argon2id$") {
		t.Fatalf("expected upgraded hash, got %q", acct.PasswordHash)
	}
	if _, err := env.engine.LogIn(ctx, "a@x.com", testPassword); err != nil {
		t.Fatalf("LogIn after upgrade failed: %v", err)
	}
}

func TestLogInSoftDeletedAccountIsUnknown(t *testing.T) {
	env := newTestEnv(t)
	reg, _ := env.registerVerified(t, "a@x.com", "alice")
	env.store.SoftDelete(reg.Account.ID)

	if _, err := env.engine.LogIn(context.Background(), "a@x.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginFailuresAndHealth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "a@x.com", "alice")

	for i := 0; i < 2; i++ {
		_, _ = env.engine.LogIn(ctx, "a@x.com", "wrong")
	}
	n, err := env.engine.LoginFailures(ctx, " A@x.com ")
	if err != nil || n != 2 {
		t.Fatalf("LoginFailures = %d, %v; want 2", n, err)
	}

	st := env.engine.Health(ctx)
	if !st.Healthy() || !st.CacheAvailable {
		t.Fatalf("expected healthy backends, got %+v", st)
	}
	env.mr.Close()
	if st := env.engine.Health(ctx); st.CacheAvailable || st.Healthy() {
		t.Fatalf("expected cache outage to be reported, got %+v", st)
	}
}
