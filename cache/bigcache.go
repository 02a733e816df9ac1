package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wyfcoding/geodist/config"
)

const localLayer = "local"

// BigCache 实现了 Cache 接口，使用 allegro/bigcache 作为进程内存储。
// BigCache 对所有项统一使用 LifeWindow 作为过期时间。
type BigCache struct {
	cache   *bigcache.BigCache
	metrics *Metrics
}

// NewBigCache 创建本地缓存。ttl 为全局过期时间，cfg 中未设置的项使用 bigcache 默认值。
func NewBigCache(ttl time.Duration, cfg config.BigCacheConfig, m *Metrics) (*BigCache, error) {
	if cfg.LifeWindow > 0 {
		ttl = cfg.LifeWindow
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	bc := bigcache.DefaultConfig(ttl)
	bc.CleanWindow = 5 * time.Minute
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize
	bc.Verbose = cfg.Verbose

	cache, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bigcache: %w", err)
	}

	return &BigCache{cache: cache, metrics: m}, nil
}

// Get 从本地缓存中获取值。
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	defer c.metrics.observe(localLayer, "get")()

	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			c.metrics.miss(localLayer)
			return ErrCacheMiss
		}
		return err
	}
	c.metrics.hit(localLayer)
	return msgpack.Unmarshal(data, value)
}

// Set 写入本地缓存。expiration 被忽略，过期时间由全局 LifeWindow 决定。
func (c *BigCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	defer c.metrics.observe(localLayer, "set")()

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return c.cache.Set(key, data)
}

// Delete 删除一个或多个键，键不存在时不报错。
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Exists 检查键是否存在。
func (c *BigCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := c.cache.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	return false, err
}

// Close 关闭 BigCache 实例。
func (c *BigCache) Close() error {
	return c.cache.Close()
}
