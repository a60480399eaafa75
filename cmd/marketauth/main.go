// Command marketauth serves the credential flows over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/challenge"
	"github.com/MrEthical07/marketAuth/credential/sqlstore"
	"github.com/MrEthical07/marketAuth/httpapi"
	"github.com/MrEthical07/marketAuth/mailer"
	promexport "github.com/MrEthical07/marketAuth/metrics/export/prometheus"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadSettings(ctx)
	if err != nil {
		log.WithError(err).Fatal("boot")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("marketauth stopped")
	}
}

func run(ctx context.Context, cfg *settings, log *logrus.Logger) error {
	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	store, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.Database.Dialect), cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	links := mailer.Links{VerifyBaseURL: cfg.Mail.VerifyBaseURL, ResetBaseURL: cfg.Mail.ResetBaseURL}
	var dispatcher marketAuth.EmailDispatcher
	if cfg.Mail.AMQPURL != "" {
		pub, err := mailer.Dial(cfg.Mail.AMQPURL, mailer.PublisherConfig{
			Queue:  cfg.Mail.Queue,
			Links:  links,
			Logger: log.WithField("component", "mailer"),
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		dispatcher = pub
	} else {
		if !cfg.isDevelopment() {
			return errors.New("AMQP_URL is required outside dev")
		}
		dispatcher = mailer.NewLogDispatcher(log.WithField("component", "mailer"), links)
	}

	var verifier challenge.Verifier = challenge.Static{Accept: "dev-proof"}
	if cfg.Challenge.Endpoint != "" {
		sv, err := challenge.NewSiteVerifier(cfg.siteVerifyConfig(), nil)
		if err != nil {
			return err
		}
		verifier = sv
	} else if !cfg.isDevelopment() {
		return errors.New("CHALLENGE_ENDPOINT is required outside dev")
	}

	engine, err := marketAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithEmailDispatcher(dispatcher).
		WithChallengeVerifier(verifier).
		WithLogger(log.WithField("component", "marketauth")).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	prometheus.MustRegister(promexport.New(engine))

	limiter := httpapi.NewIPLimiter(cfg.Server.IPRate, cfg.Server.IPBurst, 10*time.Minute)
	go sweep(ctx, limiter)

	extractor, err := httpapi.IPExtractor(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	server := echo.New()
	server.HideBanner = true
	server.IPExtractor = extractor
	server.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("marketauth_http"))
	server.Use(middleware.Recover())
	server.Use(httpapi.ClientIP())

	server.GET("/healthz", httpapi.Health(engine))
	auth := server.Group("/auth", limiter.Middleware())
	httpapi.Register(auth, httpapi.NewHandler(engine), httpapi.RequireAccess(engine))

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.GET("/metrics", echoprometheus.NewHandler())

	errs := make(chan error, 2)
	go func() {
		if err := metrics.Start(cfg.Server.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := server.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Shutdown)
	defer cancel()
	_ = metrics.Shutdown(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}

func sweep(ctx context.Context, l *httpapi.IPLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
