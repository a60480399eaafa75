package marketAuth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/marketAuth/challenge"
	"github.com/MrEthical07/marketAuth/credential/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

const (
	testProof    = "human"
	testPassword = "Secret1!"
)

var testEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	kind  string
	email string
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *recordingMailer) SendVerificationLink(_ context.Context, email, token string) error {
	return m.record("verify", email, token)
}

func (m *recordingMailer) SendPasswordResetLink(_ context.Context, email, token string) error {
	return m.record("reset", email, token)
}

func (m *recordingMailer) record(kind, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{kind: kind, email: email, token: token})
	return nil
}

func (m *recordingMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

func (m *recordingMailer) last(kind string) sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i]
		}
	}
	return sentMail{}
}

func (m *recordingMailer) failWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *memstore.Store
	mailer *recordingMailer
	mr     *miniredis.Miniredis
	clock  *testClock
	logs   *logtest.Hook
}

// advance moves the engine clock and the cache's TTL clock together.
func (env *testEnv) advance(d time.Duration) {
	env.clock.advance(d)
	env.mr.FastForward(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.EnumerationDelayMin = 0
	cfg.PasswordReset.EnumerationDelayMax = 0
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWithVerifier(t, challenge.Static{Accept: testProof}, mutate...)
}

func newTestEnvWithVerifier(t *testing.T, verifier challenge.Verifier, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	mr, rdb := newTestRedis(t)
	clock := &testClock{now: testEpoch}
	store := memstore.New().WithClock(clock.Now)
	mailer := &recordingMailer{}
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithEmailDispatcher(mailer).
		WithChallengeVerifier(verifier).
		WithLogger(logger).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine: engine,
		store:  store,
		mailer: mailer,
		mr:     mr,
		clock:  clock,
		logs:   hook,
	}
}

func registerRequest(email, nickname string) RegisterRequest {
	return RegisterRequest{
		Email:         email,
		Password:      testPassword,
		Nickname:      nickname,
		AcceptTerms:   true,
		AcceptPrivacy: true,
	}
}

// registerVerified registers email and consumes its verification link.
func (env *testEnv) registerVerified(t *testing.T, email, nickname string) (*RegisterResult, *AuthResult) {
	t.Helper()

	ctx := context.Background()
	reg, err := env.engine.Register(ctx, registerRequest(email, nickname))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	auth, err := env.engine.VerifyEmailByToken(ctx, env.mailer.last("verify").token)
	if err != nil {
		t.Fatalf("VerifyEmailByToken failed: %v", err)
	}
	return reg, auth
}

func mustRateLimit(t *testing.T, err error) *RateLimitError {
	t.Helper()

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected errors.Is(err, ErrRateLimited)")
	}
	return rl
}
