// Package cache 提供了计算结果的缓存抽象与实现：本地 BigCache、Redis 分布式缓存、
// 两者组合的多级缓存，以及在 Calculator 之上做结果记忆化的 Memoize 装饰器。
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wyfcoding/geodist/metrics"
)

// ErrCacheMiss 表示键不存在或已过期。
var ErrCacheMiss = errors.New("cache miss")

// Cache 定义缓存接口。value 使用 msgpack 序列化，Get 的 value 参数必须是指针。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Metrics 缓存相关指标，按 layer（local / redis / memoize）区分。
type Metrics struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics 在给定注册表上注册缓存指标。
func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{
		hits: m.NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_cache_hits_total",
			Help: "The total number of cache hits",
		}, []string{"layer"}),
		misses: m.NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_cache_misses_total",
			Help: "The total number of cache misses",
		}, []string{"layer"}),
		duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geodist_cache_operation_duration_seconds",
			Help:    "The duration of cache operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"layer", "operation"}),
	}
}

func (m *Metrics) hit(layer string) {
	if m != nil {
		m.hits.WithLabelValues(layer).Inc()
	}
}

func (m *Metrics) miss(layer string) {
	if m != nil {
		m.misses.WithLabelValues(layer).Inc()
	}
}

// observe 返回在 defer 中调用的计时函数。
func (m *Metrics) observe(layer, operation string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.duration.WithLabelValues(layer, operation).Observe(time.Since(start).Seconds())
	}
}
