package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/challenge"
	"github.com/MrEthical07/marketAuth/credential"
	"github.com/MrEthical07/marketAuth/credential/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *mailbox) SendVerificationLink(_ context.Context, email, token string) error {
	m.put("verify:"+email, token)
	return nil
}

func (m *mailbox) SendPasswordResetLink(_ context.Context, email, token string) error {
	m.put("reset:"+email, token)
	return nil
}

func (m *mailbox) put(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[key] = token
}

func (m *mailbox) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[key]
}

type apiEnv struct {
	server *echo.Echo
	store  *memstore.Store
	mail   *mailbox
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := marketAuth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.EnumerationDelayMin = 0
	cfg.PasswordReset.EnumerationDelayMax = 0

	store := memstore.New()
	mail := &mailbox{}
	logger, _ := logtest.NewNullLogger()

	engine, err := marketAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithEmailDispatcher(mail).
		WithChallengeVerifier(challenge.Static{Accept: "human"}).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	e.Use(ClientIP())
	e.GET("/healthz", Health(engine))
	Register(e.Group("/auth"), NewHandler(engine), RequireAccess(engine))

	return &apiEnv{server: e, store: store, mail: mail}
}

func (env *apiEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func registerBody(email, nickname string) map[string]any {
	return map[string]any{
		"email":          email,
		"password":       "Secret1!",
		"nickname":       nickname,
		"accept_terms":   true,
		"accept_privacy": true,
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", registerBody("a@x.com", "alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(60), gjson.Get(rec.Body.String(), "resend_cooldown").Int())
	assert.False(t, gjson.Get(rec.Body.String(), "verification_token").Exists())

	token := env.mail.get("verify:a@x.com")
	require.NotEmpty(t, token)

	rec = env.do(t, http.MethodGet, "/auth/verify-email?token="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", gjson.Get(rec.Body.String(), "email").String())

	rec = env.do(t, http.MethodPost, "/auth/verify-email", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	access := gjson.Get(rec.Body.String(), "access_token").String()
	require.NotEmpty(t, access)

	rec = env.do(t, http.MethodGet, "/auth/me", nil, echo.HeaderAuthorization, "Bearer "+access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "verified").Bool())

	rec = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "Secret1!"})
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := gjson.Get(rec.Body.String(), "refresh_token").String()

	rec = env.do(t, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", registerBody("a@x.com", "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/register", registerBody("a@x.com", "bob"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_exists", gjson.Get(rec.Body.String(), "code").String())

	body := registerBody("b@x.com", "bob")
	body["accept_terms"] = false
	rec = env.do(t, http.MethodPost, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "terms_not_accepted", gjson.Get(rec.Body.String(), "code").String())

	rec = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "Secret1!"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_unverified", gjson.Get(rec.Body.String(), "code").String())
	assert.Equal(t, env.mail.get("verify:a@x.com"), gjson.Get(rec.Body.String(), "verification_token").String())
	assert.Equal(t, int64(60), gjson.Get(rec.Body.String(), "cooldown").Int())

	rec = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/verify-email", map[string]string{"token": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_token", gjson.Get(rec.Body.String(), "code").String())

	rec = env.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBlockedLoginIsForbidden(t *testing.T) {
	env := newAPIEnv(t)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/auth/register", registerBody("a@x.com", "alice")).Code)
	token := env.mail.get("verify:a@x.com")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/auth/verify-email", map[string]string{"token": token}).Code)

	acct, err := env.store.AccountByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	until := time.Now().Add(time.Hour)
	env.store.AddBlock(credential.BlockRecord{AccountID: acct.ID, Reason: "review", ExpiresAt: &until})

	rec := env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "Secret1!"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_blocked", gjson.Get(rec.Body.String(), "code").String())
	assert.Equal(t, "review", gjson.Get(rec.Body.String(), "reason").String())
	assert.Contains(t, gjson.Get(rec.Body.String(), "message").String(), "review")
	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "blocked_until").String())
}

func TestPasswordResetChallengeAndRateLimit(t *testing.T) {
	env := newAPIEnv(t)
	send := func(challengeProof string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/auth/password-reset", map[string]string{"email": "nobody@x.com", "challenge": challengeProof})
	}

	for i := 0; i < 2; i++ {
		rec := send("")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, int64(60), gjson.Get(rec.Body.String(), "cooldown").Int())
	}

	rec := send("")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "challenge_required", gjson.Get(rec.Body.String(), "code").String())

	rec = send("human")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Equal(t, int64(3600), gjson.Get(rec.Body.String(), "retry_after").Int())
}

func TestPasswordResetConfirm(t *testing.T) {
	env := newAPIEnv(t)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/auth/register", registerBody("a@x.com", "alice")).Code)
	verify := env.mail.get("verify:a@x.com")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/auth/verify-email", map[string]string{"token": verify}).Code)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/auth/password-reset", map[string]string{"email": "a@x.com"}).Code)
	reset := env.mail.get("reset:a@x.com")
	require.NotEmpty(t, reset)

	rec := env.do(t, http.MethodGet, "/auth/password-reset?token="+reset, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", gjson.Get(rec.Body.String(), "email").String())

	rec = env.do(t, http.MethodPost, "/auth/password-reset/confirm", map[string]string{"token": reset, "password": "N3w-password"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/password-reset/confirm", map[string]string{"token": reset, "password": "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "N3w-password"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMapErrorInternal(t *testing.T) {
	status, body := mapError(marketAuth.ErrInternal)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body.Message)

	status, body = mapError(&marketAuth.RateLimitError{Tier: "daily", RetryAfter: 24 * time.Hour})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, int64(86400), body.RetryAfter)
	assert.Contains(t, body.Message, "tomorrow")
}

func TestMapErrorBlocked(t *testing.T) {
	status, body := mapError(&marketAuth.BlockedError{Reason: "fraud"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "account_blocked", body.Code)
	assert.Equal(t, "fraud", body.Reason)
	assert.Empty(t, body.BlockedUntil)

	until := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	status, body = mapError(fmt.Errorf("login: %w", &marketAuth.BlockedError{Reason: "chargeback", Until: &until}))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "chargeback", body.Reason)
	assert.Equal(t, "2030-01-02T03:04:05Z", body.BlockedUntil)
}

func TestMapErrorChallenge(t *testing.T) {
	status, body := mapError(marketAuth.ErrChallengeFailed)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "challenge_failed", body.Code)

	_, body = mapError(marketAuth.ErrChallengeRequired)
	assert.Equal(t, "challenge_required", body.Code)
}

type downChecker struct{}

func (downChecker) Health(context.Context) marketAuth.HealthStatus {
	return marketAuth.HealthStatus{StoreAvailable: true}
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
	assert.True(t, gjson.Get(rec.Body.String(), "cache").Bool())

	e := echo.New()
	e.GET("/healthz", Health(downChecker{}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	down := httptest.NewRecorder()
	e.ServeHTTP(down, req)
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
	assert.Equal(t, "degraded", gjson.Get(down.Body.String(), "status").String())
	assert.False(t, gjson.Get(down.Body.String(), "cache").Bool())
}
