package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/SJang1/traffic-light-websocket/internal/errors"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Query and mutation; mutations are rate limited per producer IP.
	api := s.echo.Group("/api", apperrors.Middleware())
	api.GET("/lights", s.handleGetLights)
	api.PUT("/lights", s.handleMutateLights,
		newRateLimiter(s.config.MutateRatePerSecond, s.config.MutateRateBurst))

	// Subscription
	s.echo.GET("/ws/lights", s.handleWebSocket)
}
