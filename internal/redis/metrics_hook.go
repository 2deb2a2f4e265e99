package redis

import (
	"context"
	"errors"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/SJang1/traffic-light-websocket/internal/metrics"
)

// MetricsHook implements goredis.Hook to record latency and outcome of every
// redis command.
type MetricsHook struct{}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil && !errors.Is(err, goredis.Nil) {
			status = "error"
		}

		metrics.RedisOpsTotal.WithLabelValues(cmd.Name(), status).Inc()
		metrics.RedisOpDuration.WithLabelValues(cmd.Name()).Observe(duration)
		return err
	}
}

func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}

		metrics.RedisOpsTotal.WithLabelValues("pipeline", status).Inc()
		metrics.RedisOpDuration.WithLabelValues("pipeline").Observe(duration)
		return err
	}
}
