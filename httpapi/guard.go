package httpapi

import (
	"fmt"
	"net"
	"strings"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/jwt"
	"github.com/labstack/echo/v4"
)

const claimsContextKey = "marketauth.claims"

// ClaimsFromContext returns the claims stored by [RequireAccess].
func ClaimsFromContext(c echo.Context) (*jwt.AccessClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(*jwt.AccessClaims)
	return claims, ok
}

// RequireAccess rejects requests without a valid bearer access token and
// stores the parsed claims on the echo context.
func RequireAccess(svc Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if svc == nil {
				return writeError(c, marketAuth.ErrTokenInvalid)
			}

			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return writeError(c, marketAuth.ErrTokenInvalid)
			}

			claims, err := svc.ParseAccessToken(c.Request().Context(), token)
			if err != nil {
				return writeError(c, marketAuth.ErrTokenInvalid)
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// ClientIP copies echo's resolved client address into the request context
// so engine audit events carry it.
func ClientIP() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(marketAuth.WithClientIP(req.Context(), c.RealIP())))
			return next(c)
		}
	}
}

// IPExtractor builds the echo client-address resolver. With no trusted
// proxies the TCP peer is used and forwarding headers are ignored. Otherwise
// X-Forwarded-For is honored only for hops inside the given ranges.
func IPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, raw := range trustedProxies {
		network, err := parseTrustedRange(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		opts = append(opts, echo.TrustIPRange(network))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func parseTrustedRange(s string) (*net.IPNet, error) {
	if strings.Contains(s, "/") {
		_, network, err := net.ParseCIDR(s)
		return network, err
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("not an IP address or CIDR")
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
