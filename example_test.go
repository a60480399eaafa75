package marketAuth_test

import (
	"context"
	"errors"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/credential/memstore"
	"github.com/MrEthical07/marketAuth/mailer"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := marketAuth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("replace-with-32-bytes-of-secret!!")

	engine, _ := marketAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(memstore.New()).
		WithEmailDispatcher(mailer.NewLogDispatcher(logrus.StandardLogger(), mailer.Links{})).
		Build()
	_ = engine
}

// ExampleEngine_LogIn shows a login call and the typed errors worth branching on.
func ExampleEngine_LogIn() {
	var engine *marketAuth.Engine
	_, err := engine.LogIn(context.Background(), "alice@example.com", "password")

	var unverified *marketAuth.UnverifiedError
	var blocked *marketAuth.BlockedError
	var limited *marketAuth.RateLimitError
	switch {
	case errors.As(err, &unverified):
		_ = unverified.Cooldown
	case errors.As(err, &blocked):
		_ = blocked.Until
	case errors.As(err, &limited):
		_ = limited.RetryAfterSeconds()
	}
}

// ExampleEngine_SendPasswordResetEmail shows the challenge outcomes. A
// rejected request still uses up its slot, so the client should send the
// proof with every request once it has been challenged.
func ExampleEngine_SendPasswordResetEmail() {
	var engine *marketAuth.Engine
	ctx := context.Background()

	_, err := engine.SendPasswordResetEmail(ctx, "alice@example.com", "<challenge proof>")
	var limited *marketAuth.RateLimitError
	switch {
	case errors.Is(err, marketAuth.ErrChallengeRequired), errors.Is(err, marketAuth.ErrChallengeFailed):
		// ask the user to solve the challenge
	case errors.As(err, &limited):
		_ = limited.RetryAfterSeconds()
	}
}
