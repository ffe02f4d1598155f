// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/alonraif/NGL-sub000/internal/session"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	cache   *session.ResultCache
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, cache *session.ResultCache) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		cache:   cache,
	}
}

// HandleHealth returns server health status plus result cache stats
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.cache != nil {
		resp["cache"] = h.cache.Stats()
	}
	return c.JSON(http.StatusOK, resp)
}
