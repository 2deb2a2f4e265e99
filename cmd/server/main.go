package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/SJang1/traffic-light-websocket/internal/app"
	"github.com/SJang1/traffic-light-websocket/internal/broadcast"
	"github.com/SJang1/traffic-light-websocket/internal/config"
	"github.com/SJang1/traffic-light-websocket/internal/domain"
	"github.com/SJang1/traffic-light-websocket/internal/lights"
	"github.com/SJang1/traffic-light-websocket/internal/logging"
	"github.com/SJang1/traffic-light-websocket/internal/redis"
	"github.com/SJang1/traffic-light-websocket/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, running without state persistence")
		return nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, broadcaster *broadcast.Broadcaster, redisClient *goredis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				slog.Error("Redis close error", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	redisClient := setupRedis(context.Background(), cfg)

	store := lights.NewStore()

	broadcaster := broadcast.NewBroadcaster(store, clock, cfg.BroadcastTickInterval, cfg.MaxSubscribers)

	var repo domain.StateRepository
	if redisClient != nil {
		repo = redis.NewStateRepo(redisClient)
	}
	appSvc := app.NewService(store, broadcaster, repo, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := appSvc.Rehydrate(ctx); err != nil {
		slog.Error("Failed to rehydrate state", "error", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	// Pass nil explicitly to avoid a typed-nil interface in the server.
	var srv *server.Server
	if redisClient != nil {
		srv = server.NewServer(cfg, appSvc, broadcaster, store, redisClient)
	} else {
		srv = server.NewServer(cfg, appSvc, broadcaster, store, nil)
	}

	done := runGracefulShutdown(srv, broadcaster, redisClient)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
