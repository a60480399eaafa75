package marketAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketAuth/challenge"
	"github.com/MrEthical07/marketAuth/credential"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/kv"
	"github.com/MrEthical07/marketAuth/internal/limiters"
	internalmetrics "github.com/MrEthical07/marketAuth/internal/metrics"
	"github.com/MrEthical07/marketAuth/internal/rate"
	"github.com/MrEthical07/marketAuth/internal/stores"
	"github.com/MrEthical07/marketAuth/jwt"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     credential.Store
	mailer    EmailDispatcher
	verifier  challenge.Verifier
	auditSink AuditSink
	logger    logrus.FieldLogger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the cache that backs rate limits and send markers.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets account, refresh, and block persistence.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithEmailDispatcher sets the outbound mail channel.
func (b *Builder) WithEmailDispatcher(d EmailDispatcher) *Builder {
	b.mailer = d
	return b
}

// WithChallengeVerifier sets the human-verification backend consulted when
// the challenge gate fires.
func (b *Builder) WithChallengeVerifier(v challenge.Verifier) *Builder {
	b.verifier = v
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. The default is the
// logrus standard logger.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every component the engine owns.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.mailer == nil {
		return nil, errors.New("email dispatcher required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger().WithField("component", "marketauth")
	}

	// -------- Password --------
	hasher, err := password.NewHasher(cfg.Password.hasherConfig())
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	// -------- Access tokens --------
	jwtMgr, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    cfg.JWT.RequireIAT,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt manager: %w", err)
	}
	jwtMgr.WithClock(now)

	// -------- Refresh credentials --------
	rotator, err := refresh.New(b.store, jwtMgr, refresh.Config{TTL: cfg.Refresh.TTL})
	if err != nil {
		return nil, err
	}
	rotator.WithClock(now)

	// -------- Rate limits and markers --------
	cache := kv.NewRedis(b.redis)
	counter := rate.NewCounter(cache, cfg.RateLimit.KeyPrefix+"rl:")
	resendLimiter := limiters.NewResendVerificationLimiter(counter, limiters.EmailVerificationConfig{
		HourlyLimit: cfg.EmailVerification.HourlyLimit,
		DailyLimit:  cfg.EmailVerification.DailyLimit,
	})
	resetLimiter := limiters.NewPasswordResetLimiter(counter, limiters.PasswordResetConfig{
		HourlyLimit: cfg.PasswordReset.HourlyLimit,
		DailyLimit:  cfg.PasswordReset.DailyLimit,
	})
	loginThrottle := rate.NewLoginThrottle(counter, rate.LoginConfig{
		Enabled:     cfg.Login.ThrottleEnabled,
		MaxFailures: cfg.Login.MaxFailures,
		Window:      cfg.Login.FailureWindow,
	})
	markers := stores.NewSendMarkers(cache, cfg.RateLimit.KeyPrefix+"ls:")

	// -------- Challenge --------
	gate := challenge.NewGate(cfg.Challenge.Threshold, b.verifier)

	// -------- Observability --------
	auditSink := b.auditSink
	if auditSink == nil {
		auditSink = internalaudit.NewLogrusSink(logger)
	}
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, auditSink)

	e := &Engine{
		config:        cfg,
		now:           now,
		logger:        logger,
		cache:         cache,
		store:         b.store,
		mailer:        b.mailer,
		hasher:        hasher,
		jwt:           jwtMgr,
		rotator:       rotator,
		resendLimiter: resendLimiter,
		resetLimiter:  resetLimiter,
		loginThrottle: loginThrottle,
		gate:          gate,
		markers:       markers,
		audit:         dispatcher,
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		sleep: sleepContext,
	}

	b.built = true
	return e, nil
}
