// Package redis 提供带指标钩子的 Redis 客户端工厂，供分布式结果缓存使用。
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/geodist/config"
	"github.com/wyfcoding/geodist/metrics"
)

// Client 是 redis.Client 的别名，方便业务层直接使用而无需导入原生包
type Client = redis.Client

// Metrics Redis 命令级指标。
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics 在给定注册表上注册 Redis 指标。
func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{
		ops: m.NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_redis_ops_total",
			Help: "The total number of redis operations",
		}, []string{"addr", "command", "status"}),
		duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geodist_redis_duration_seconds",
			Help:    "The duration of redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"addr", "command"}),
	}
}

type metricsHook struct {
	addr    string
	metrics *Metrics
}

func (h *metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.record(cmd.Name(), start, err)
		return err
	}
}

func (h *metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.record("pipeline", start, err)
		return err
	}
}

func (h *metricsHook) record(command string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
	}
	h.metrics.ops.WithLabelValues(h.addr, command, status).Inc()
	h.metrics.duration.WithLabelValues(h.addr, command).Observe(time.Since(start).Seconds())
}

// NewClient 使用提供的配置创建 Redis 客户端并探活。
// 返回客户端、清理函数，以及连接失败时的错误。m 为 nil 时不挂载指标钩子。
func NewClient(cfg config.RedisConfig, m *Metrics, logger *slog.Logger) (*redis.Client, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if m != nil {
		client.AddHook(&metricsHook{addr: cfg.Addr, metrics: m})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Successfully connected to Redis", "addr", client.Options().Addr)

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close Redis client", "error", err)
		}
	}

	return client, cleanup, nil
}
