package challenge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxSiteVerifyBody = 64 << 10

// SiteVerifyConfig describes a reCAPTCHA, hCaptcha, or Turnstile style
// siteverify endpoint.
type SiteVerifyConfig struct {
	Endpoint string
	Secret   string
	// MinScore rejects scored responses below it. Zero disables the check.
	MinScore float64
	// Hostnames, when set, must contain the hostname reported by the service.
	Hostnames []string
	Timeout   time.Duration
	// RequestsPerSecond and Burst bound outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// SiteVerifier is a [Verifier] backed by an HTTP siteverify endpoint.
type SiteVerifier struct {
	config  SiteVerifyConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewSiteVerifier validates cfg and returns a verifier. A nil client gets a
// dedicated one using cfg.Timeout.
func NewSiteVerifier(cfg SiteVerifyConfig, client *http.Client) (*SiteVerifier, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("siteverify endpoint must be provided")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid siteverify endpoint: %w", err)
	}
	if cfg.Secret == "" {
		return nil, errors.New("siteverify secret must be provided")
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, errors.New("siteverify MinScore must be within [0, 1]")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	v := &SiteVerifier{
		config: cfg,
		client: client,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return v, nil
}

// Verify posts proof to the endpoint. It returns (false, nil) for a
// well-formed rejection and wraps [ErrUnavailable] for everything else.
func (v *SiteVerifier) Verify(ctx context.Context, proof, remoteIP string) (bool, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	form := url.Values{}
	form.Set("secret", v.config.Secret)
	form.Set("response", proof)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.config.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSiteVerifyBody))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: siteverify status %d", ErrUnavailable, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return false, fmt.Errorf("%w: malformed siteverify response", ErrUnavailable)
	}

	result := gjson.ParseBytes(body)
	if !result.Get("success").Bool() {
		return false, nil
	}
	if v.config.MinScore > 0 {
		if score := result.Get("score"); score.Exists() && score.Float() < v.config.MinScore {
			return false, nil
		}
	}
	if len(v.config.Hostnames) > 0 && !v.hostnameAllowed(result.Get("hostname").String()) {
		return false, nil
	}
	return true, nil
}

func (v *SiteVerifier) hostnameAllowed(host string) bool {
	for _, allowed := range v.config.Hostnames {
		if strings.EqualFold(allowed, host) {
			return true
		}
	}
	return false
}

// ErrorCodes extracts the "error-codes" array of a siteverify response body.
func ErrorCodes(body []byte) []string {
	var codes []string
	gjson.GetBytes(body, "error-codes").ForEach(func(_, value gjson.Result) bool {
		codes = append(codes, value.String())
		return true
	})
	return codes
}
