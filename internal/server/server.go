package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/SJang1/traffic-light-websocket/internal/config"
	"github.com/SJang1/traffic-light-websocket/internal/domain"
)

const requestBodyLimit = "64K"

// ingestService accepts raw mutation batches.
type ingestService interface {
	Ingest(ctx context.Context, body []byte) (domain.BatchResult, error)
}

// subscriberRegistry is the broadcaster surface the handlers need.
type subscriberRegistry interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
	ClientCount() int
}

// redisPinger is the readiness-check surface of the redis client.
type redisPinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	ingest    ingestService
	registry  subscriberRegistry
	snapshots domain.SnapshotSource
	redis     redisPinger
	startTime time.Time
}

// NewServer wires the HTTP surface. redis may be nil when the persistence
// collaborator is not configured; the readiness check then skips it.
func NewServer(cfg *config.Config, ingest ingestService, registry subscriberRegistry, snapshots domain.SnapshotSource, redis redisPinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(requestBodyLimit))

	srv := &Server{
		echo:      e,
		config:    cfg,
		ingest:    ingest,
		registry:  registry,
		snapshots: snapshots,
		redis:     redis,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
