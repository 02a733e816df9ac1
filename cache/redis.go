package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wyfcoding/geodist/config"
	redisclient "github.com/wyfcoding/geodist/redis"
)

const redisLayer = "redis"

// RedisCache 使用 Redis 实现 Cache，所有访问经过熔断器。
type RedisCache struct {
	client  *redis.Client
	prefix  string
	cb      *gobreaker.CircuitBreaker
	metrics *Metrics
	cleanup func() // 仅由创建客户端的实例持有
}

// NewRedisCache 根据配置创建客户端并探活。clientMetrics 为 nil 时不采集命令级指标。
func NewRedisCache(cfg config.RedisConfig, breaker config.CircuitBreakerConfig, m *Metrics, clientMetrics *redisclient.Metrics) (*RedisCache, error) {
	client, cleanup, err := redisclient.NewClient(cfg, clientMetrics, nil)
	if err != nil {
		return nil, err
	}

	c := NewRedisCacheFromClient(client, breaker, m)
	c.cleanup = cleanup
	return c, nil
}

// NewRedisCacheFromClient 复用已有客户端，Close 不会关闭该客户端。
func NewRedisCacheFromClient(client *redis.Client, breaker config.CircuitBreakerConfig, m *Metrics) *RedisCache {
	timeout := breaker.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxFailures := breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 10
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= maxFailures && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &RedisCache{client: client, cb: cb, metrics: m}
}

// WithPrefix 返回共享底层客户端与熔断器、但使用新键前缀的实例。
func (c *RedisCache) WithPrefix(prefix string) *RedisCache {
	return &RedisCache{
		client:  c.client,
		prefix:  prefix,
		cb:      c.cb,
		metrics: c.metrics,
	}
}

// buildKey 构建带有前缀的 key。
func (c *RedisCache) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get 从缓存中获取值并反序列化到 value。
func (c *RedisCache) Get(ctx context.Context, key string, value any) error {
	defer c.metrics.observe(redisLayer, "get")()

	fullKey := c.buildKey(key)
	res, err := c.cb.Execute(func() (any, error) {
		data, err := c.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return data, err
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.metrics.miss(redisLayer)
		}
		return err
	}

	c.metrics.hit(redisLayer)
	return msgpack.Unmarshal(res.([]byte), value)
}

// Set 序列化并写入 value，expiration 为 0 表示不过期。
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	defer c.metrics.observe(redisLayer, "set")()

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	fullKey := c.buildKey(key)
	_, err = c.cb.Execute(func() (any, error) {
		return nil, c.client.Set(ctx, fullKey, data, expiration).Err()
	})
	return err
}

// Delete 从缓存中删除值。
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	defer c.metrics.observe(redisLayer, "delete")()

	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.buildKey(key)
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Del(ctx, fullKeys...).Err()
	})
	return err
}

// Exists 检查 key 是否存在。
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	defer c.metrics.observe(redisLayer, "exists")()

	fullKey := c.buildKey(key)
	result, err := c.cb.Execute(func() (any, error) {
		n, err := c.client.Exists(ctx, fullKey).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Close 关闭自己创建的 Redis 客户端。
func (c *RedisCache) Close() error {
	if c.cleanup == nil {
		return nil
	}
	slog.Info("closing redis cache connection")
	c.cleanup()
	return nil
}
