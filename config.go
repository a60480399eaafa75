package marketAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/marketAuth/password"
)

// Config holds every tunable of the engine.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable. The Builder clones the value it is given.
type Config struct {
	JWT               JWTConfig
	Refresh           RefreshConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Registration      RegistrationConfig
	Login             LoginConfig
	RateLimit         RateLimitConfig
	Challenge         ChallengeConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing and validation.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	KeyID         string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh credential lifetime.
type RefreshConfig struct {
	TTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// UpgradeOnLogin rehashes legacy bcrypt or weaker argon2id hashes after
	// a successful login.
	UpgradeOnLogin bool
}

/*
====================================
EMAIL VERIFICATION CONFIG
====================================
*/

// EmailVerificationConfig controls verification links and their resend
// budget.
type EmailVerificationConfig struct {
	TokenTTL       time.Duration
	ResendCooldown time.Duration
	HourlyLimit    int
	DailyLimit     int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset links and their request budget.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	Cooldown    time.Duration
	HourlyLimit int
	DailyLimit  int
	// EnumerationDelayMin and EnumerationDelayMax bound the random pause on
	// requests that send nothing.
	EnumerationDelayMin time.Duration
	EnumerationDelayMax time.Duration
	// Message is returned verbatim for every accepted request.
	Message string
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig controls signup.
type RegistrationConfig struct {
	// ReclaimExpiredUnverified lets a new signup replace an unverified
	// account whose verification link has expired.
	ReclaimExpiredUnverified bool
	// ExposeVerificationToken returns the raw verification token from
	// Register. Meant for test harnesses only.
	ExposeVerificationToken bool
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig controls the failed-login throttle.
type LoginConfig struct {
	ThrottleEnabled bool
	MaxFailures     int
	FailureWindow   time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig namespaces every cache key the engine writes.
type RateLimitConfig struct {
	KeyPrefix string
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls the escalating human-verification gate.
type ChallengeConfig struct {
	// Threshold is the hourly count that demands a proof.
	Threshold int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Signing keys are left empty.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "marketauth",
			RequireIAT:    true,
		},
		Refresh: RefreshConfig{
			TTL: 14 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL:       3 * time.Hour,
			ResendCooldown: 60 * time.Second,
			HourlyLimit:    5,
			DailyLimit:     15,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:            24 * time.Hour,
			Cooldown:            60 * time.Second,
			HourlyLimit:         3,
			DailyLimit:          5,
			EnumerationDelayMin: 20 * time.Millisecond,
			EnumerationDelayMax: 40 * time.Millisecond,
			Message:             "If an account exists for this email, a password reset link has been sent.",
		},
		Registration: RegistrationConfig{
			ReclaimExpiredUnverified: true,
			ExposeVerificationToken:  false,
		},
		Login: LoginConfig{
			ThrottleEnabled: true,
			MaxFailures:     10,
			FailureWindow:   15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			KeyPrefix: "ma:",
		},
		Challenge: ChallengeConfig{
			Threshold: 3,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting. Argon2 parameters are
// checked when the hasher is built.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}

	// Email verification
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.EmailVerification.ResendCooldown <= 0 {
		return errors.New("EmailVerification ResendCooldown must be > 0")
	}
	if err := validateTiers("EmailVerification", c.EmailVerification.HourlyLimit, c.EmailVerification.DailyLimit); err != nil {
		return err
	}

	// Password reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.Cooldown <= 0 {
		return errors.New("PasswordReset Cooldown must be > 0")
	}
	if err := validateTiers("PasswordReset", c.PasswordReset.HourlyLimit, c.PasswordReset.DailyLimit); err != nil {
		return err
	}
	if c.PasswordReset.EnumerationDelayMin < 0 || c.PasswordReset.EnumerationDelayMax < c.PasswordReset.EnumerationDelayMin {
		return errors.New("PasswordReset enumeration delay range is invalid")
	}
	if c.PasswordReset.EnumerationDelayMax > time.Second {
		return errors.New("PasswordReset EnumerationDelayMax must be <= 1s")
	}
	if strings.TrimSpace(c.PasswordReset.Message) == "" {
		return errors.New("PasswordReset Message must be set")
	}

	// Login
	if c.Login.ThrottleEnabled {
		if c.Login.MaxFailures <= 0 {
			return errors.New("Login MaxFailures must be > 0 when the throttle is enabled")
		}
		if c.Login.FailureWindow <= 0 {
			return errors.New("Login FailureWindow must be > 0 when the throttle is enabled")
		}
	}

	// Rate limit
	if strings.TrimSpace(c.RateLimit.KeyPrefix) == "" {
		return errors.New("RateLimit KeyPrefix must be set")
	}

	// Challenge
	if c.Challenge.Threshold <= 0 {
		return errors.New("Challenge Threshold must be > 0")
	}
	if c.Challenge.Threshold > c.PasswordReset.HourlyLimit || c.Challenge.Threshold > c.EmailVerification.HourlyLimit {
		return errors.New("Challenge Threshold must not exceed an hourly limit")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func validateTiers(section string, hourly, daily int) error {
	if hourly <= 0 || daily <= 0 {
		return errors.New(section + " limits must be > 0")
	}
	if daily < hourly {
		return errors.New(section + " DailyLimit must be >= HourlyLimit")
	}
	return nil
}
