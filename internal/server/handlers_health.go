package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SJang1/traffic-light-websocket/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
		"build":  version.Get(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	if s.redis == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":       "unhealthy",
			"failed_check": "redis",
			"error":        err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
