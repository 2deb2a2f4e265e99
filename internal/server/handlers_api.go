package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SJang1/traffic-light-websocket/internal/app"
	apperrors "github.com/SJang1/traffic-light-websocket/internal/errors"
)

// handleGetLights returns the current snapshot of every light plus the
// subscriber count. Pure read, no side effects.
func (s *Server) handleGetLights(c echo.Context) error {
	snapshot := s.snapshots.Snapshot()
	if count := s.registry.ClientCount(); count > 0 {
		snapshot.ConnectedUsers = count
	}
	return c.JSON(http.StatusOK, snapshot)
}

// handleMutateLights ingests one mutation batch. Accepted entries are
// applied and broadcast even when others are rejected; any rejection makes
// the overall response a 400 carrying both sides. This apply-then-report
// contract is load-bearing for existing producers.
func (s *Server) handleMutateLights(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperrors.ValidationError("unreadable request body")
	}

	result, err := s.ingest.Ingest(c.Request().Context(), body)
	if err != nil {
		if errors.Is(err, app.ErrMalformedBatch) {
			return apperrors.ValidationError("malformed mutation batch")
		}
		return apperrors.InternalError("ingest failed", err)
	}

	if !result.Ok() {
		return c.JSON(http.StatusBadRequest, result)
	}
	return c.JSON(http.StatusOK, result)
}
