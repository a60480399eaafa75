package httpapi

import (
	"context"
	"net/http"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/labstack/echo/v4"
)

// HealthChecker is satisfied by *marketAuth.Engine.
type HealthChecker interface {
	Health(ctx context.Context) marketAuth.HealthStatus
}

type healthResponse struct {
	Status string `json:"status"`
	Cache  bool   `json:"cache"`
	Store  bool   `json:"store"`
}

// Health answers 200 when every backend is reachable and 503 otherwise.
func Health(hc HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := hc.Health(c.Request().Context())
		resp := healthResponse{Status: "ok", Cache: st.CacheAvailable, Store: st.StoreAvailable}
		if !st.Healthy() {
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}
}
