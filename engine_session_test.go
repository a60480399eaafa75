package marketAuth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
)

func TestRefreshRotatesAndRetiresOldToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, auth := env.registerVerified(t, "a@x.com", "alice")

	env.advance(time.Minute)
	next, err := env.engine.RefreshAccessToken(ctx, auth.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken failed: %v", err)
	}
	if next.RefreshToken == auth.RefreshToken || next.AccessToken == auth.AccessToken {
		t.Fatal("expected a new token pair")
	}
	if !next.RefreshExpiresAt.Equal(env.clock.Now().Add(14 * 24 * time.Hour)) {
		t.Fatalf("unexpected refresh expiry %v", next.RefreshExpiresAt)
	}
	if next.Account.Email != "a@x.com" {
		t.Fatalf("unexpected account %+v", next.Account)
	}

	if _, err := env.engine.RefreshAccessToken(ctx, auth.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired for the rotated token, got %v", err)
	}
	if _, err := env.engine.RefreshAccessToken(ctx, next.RefreshToken); err != nil {
		t.Fatalf("new token should rotate: %v", err)
	}
}

func TestRefreshConcurrentRotationHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, auth := env.registerVerified(t, "a@x.com", "alice")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.RefreshAccessToken(ctx, auth.RefreshToken); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", successes)
	}
}

func TestRefreshUnknownAndMalformed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, raw := range []string{"", "short", strings.Repeat("Z", 43)} {
		if _, err := env.engine.RefreshAccessToken(ctx, raw); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("%q: expected ErrRefreshInvalid, got %v", raw, err)
		}
	}
}

func TestRefreshExpiredCredential(t *testing.T) {
	env := newTestEnv(t)
	_, auth := env.registerVerified(t, "a@x.com", "alice")

	env.advance(14*24*time.Hour + time.Second)
	if _, err := env.engine.RefreshAccessToken(context.Background(), auth.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
}

func TestRefreshBlockedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg, auth := env.registerVerified(t, "a@x.com", "alice")
	env.store.AddBlock(credential.BlockRecord{AccountID: reg.Account.ID, Reason: "fraud"})

	if _, err := env.engine.RefreshAccessToken(ctx, auth.RefreshToken); !errors.Is(err, ErrAccountBlocked) {
		t.Fatalf("expected ErrAccountBlocked, got %v", err)
	}
}

func TestLogOutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, auth := env.registerVerified(t, "a@x.com", "alice")

	env.engine.LogOut(ctx, auth.RefreshToken)
	env.engine.LogOut(ctx, auth.RefreshToken)
	env.engine.LogOut(ctx, "garbage")
	env.engine.LogOut(ctx, "")

	if _, err := env.engine.RefreshAccessToken(ctx, auth.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired after logout, got %v", err)
	}
}
