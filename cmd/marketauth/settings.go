package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/challenge"
	"github.com/sethvargo/go-envconfig"
)

type settings struct {
	Env      string `env:"ENV,default=dev"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	Server struct {
		Addr        string        `env:"HTTP_ADDR,default=:8080"`
		MetricsAddr string        `env:"METRICS_ADDR,default=:8081"`
		BodyLimit   string        `env:"HTTP_BODY_LIMIT,default=64K"`
		IPRate      float64       `env:"HTTP_IP_RATE,default=5"`
		IPBurst     int           `env:"HTTP_IP_BURST,default=20"`
		Shutdown    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

		// Proxies allowed to set X-Forwarded-For, as CIDRs or bare IPs.
		// Empty means the TCP peer address is the client address.
		TrustedProxies []string `env:"HTTP_TRUSTED_PROXIES"`
	}

	Redis struct {
		Addrs    []string `env:"REDIS_ADDRS,default=localhost:6379"`
		Password string   `env:"REDIS_PASSWORD"`
		DB       int      `env:"REDIS_DB,default=0"`
	}

	Database struct {
		Dialect string `env:"DB_DIALECT,default=postgres"`
		DSN     string `env:"DATABASE_URL,required"`
		Migrate bool   `env:"DB_MIGRATE,default=true"`
	}

	Mail struct {
		AMQPURL       string `env:"AMQP_URL"`
		Queue         string `env:"MAIL_QUEUE,default=marketauth.mail"`
		VerifyBaseURL string `env:"MAIL_VERIFY_URL"`
		ResetBaseURL  string `env:"MAIL_RESET_URL"`
	}

	Challenge struct {
		Endpoint  string   `env:"CHALLENGE_ENDPOINT"`
		Secret    string   `env:"CHALLENGE_SECRET"`
		MinScore  float64  `env:"CHALLENGE_MIN_SCORE,default=0"`
		Hostnames []string `env:"CHALLENGE_HOSTNAMES"`
		Threshold int      `env:"CHALLENGE_THRESHOLD,default=3"`
	}

	JWT struct {
		Method     string        `env:"JWT_SIGNING_METHOD,default=ed25519"`
		PrivateKey string        `env:"JWT_PRIVATE_KEY,required"`
		PublicKey  string        `env:"JWT_PUBLIC_KEY"`
		Issuer     string        `env:"JWT_ISSUER,default=marketauth"`
		Audience   string        `env:"JWT_AUDIENCE"`
		KeyID      string        `env:"JWT_KEY_ID"`
		AccessTTL  time.Duration `env:"JWT_ACCESS_TTL,default=15m"`
		RefreshTTL time.Duration `env:"REFRESH_TTL,default=336h"`
	}

	ExposeVerificationToken bool `env:"EXPOSE_VERIFICATION_TOKEN,default=false"`
	AuditEnabled            bool `env:"AUDIT_ENABLED,default=true"`
}

func loadSettings(ctx context.Context) (*settings, error) {
	s := &settings{}
	if err := envconfig.Process(ctx, s); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return s, nil
}

func (s *settings) isDevelopment() bool {
	return s.Env == "dev"
}

// engineConfig maps settings onto the engine defaults. Keys are base64.
func (s *settings) engineConfig() (marketAuth.Config, error) {
	cfg := marketAuth.DefaultConfig()

	priv, err := base64.StdEncoding.DecodeString(s.JWT.PrivateKey)
	if err != nil {
		return cfg, fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
	}
	var pub []byte
	if s.JWT.PublicKey != "" {
		if pub, err = base64.StdEncoding.DecodeString(s.JWT.PublicKey); err != nil {
			return cfg, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
		}
	}

	cfg.JWT.SigningMethod = s.JWT.Method
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Issuer = s.JWT.Issuer
	cfg.JWT.Audience = s.JWT.Audience
	cfg.JWT.KeyID = s.JWT.KeyID
	cfg.JWT.AccessTTL = s.JWT.AccessTTL
	cfg.Refresh.TTL = s.JWT.RefreshTTL
	cfg.Challenge.Threshold = s.Challenge.Threshold
	cfg.Registration.ExposeVerificationToken = s.ExposeVerificationToken
	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	return cfg, cfg.Validate()
}

func (s *settings) siteVerifyConfig() challenge.SiteVerifyConfig {
	return challenge.SiteVerifyConfig{
		Endpoint:          s.Challenge.Endpoint,
		Secret:            s.Challenge.Secret,
		MinScore:          s.Challenge.MinScore,
		Hostnames:         s.Challenge.Hostnames,
		RequestsPerSecond: 50,
		Burst:             100,
	}
}
