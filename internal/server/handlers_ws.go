package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// The subscribe endpoint is public; overlays and dashboards connect from
// arbitrary origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection, registers it with the
// broadcaster (which primes it with the current snapshot), then blocks in a
// read pump until the observer disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.registry.Register(conn); err != nil {
		slog.Warn("Subscriber registration refused", "error", err)
		_ = conn.Close()
		return nil
	}

	// Read pump: inbound frames are ignored, but a read error is the only
	// way to notice a client-initiated disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.registry.Unregister(conn)
	return nil
}
