package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wyfcoding/geodist/engine"
	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/geodesic"
	"github.com/wyfcoding/geodist/logging"
)

const memoLayer = "memoize"

// MemoizeOptions 定义记忆化装饰器的可选参数。
type MemoizeOptions struct {
	TTL     time.Duration
	Prefix  string
	Metrics *Metrics
	Logger  *slog.Logger
}

// Memoized 对距离与阈值类操作按 (操作, 算法, 参数, 坐标, 阈值) 缓存结果。
// 并发的相同调用只计算一次；位移与 Explain 直接透传。
// 缓存不可用时退化为直接计算。返回的结果可能被多个调用方共享，调用方不应修改。
type Memoized struct {
	next        engine.Calculator
	store       Cache
	ttl         time.Duration
	prefix      string
	fingerprint string
	group       singleflight.Group
	metrics     *Metrics
	logger      *slog.Logger
}

var _ engine.Calculator = (*Memoized)(nil)

// Memoize 使用 store 包装 next。
func Memoize(next engine.Calculator, store Cache, opts MemoizeOptions) *Memoized {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default().Logger
	}
	return &Memoized{
		next:        next,
		store:       store,
		ttl:         opts.TTL,
		prefix:      opts.Prefix,
		fingerprint: next.Method().String() + "|" + next.Settings().String(),
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

func (c *Memoized) Method() geodesic.Method { return c.next.Method() }

func (c *Memoized) Settings() *geodesic.Settings { return c.next.Settings() }

func (c *Memoized) Distance(ctx context.Context, x, y *geo.CoordinateSet) (*engine.DistanceMatrix, error) {
	key := c.newKey("distance").pair(x, y).sum()
	return memo(ctx, c, "distance", key, func(ctx context.Context) (*engine.DistanceMatrix, error) {
		return c.next.Distance(ctx, x, y)
	})
}

func (c *Memoized) DistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point) (*engine.DistanceVector, error) {
	key := c.newKey("distance_from_point").set(x).point(p).sum()
	return memo(ctx, c, "distance_from_point", key, func(ctx context.Context) (*engine.DistanceVector, error) {
		return c.next.DistanceFromPoint(ctx, x, p)
	})
}

func (c *Memoized) WithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*engine.WithinMatrix, error) {
	key := c.newKey("within_distance").pair(x, y).float(threshold).sum()
	return memo(ctx, c, "within_distance", key, func(ctx context.Context) (*engine.WithinMatrix, error) {
		return c.next.WithinDistance(ctx, x, y, threshold)
	})
}

func (c *Memoized) WithinDistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*engine.WithinVector, error) {
	key := c.newKey("within_distance_from_point").set(x).point(p).float(threshold).sum()
	return memo(ctx, c, "within_distance_from_point", key, func(ctx context.Context) (*engine.WithinVector, error) {
		return c.next.WithinDistanceFromPoint(ctx, x, p, threshold)
	})
}

func (c *Memoized) IndicesWithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*engine.IndexPairs, error) {
	key := c.newKey("indices_within_distance").pair(x, y).float(threshold).sum()
	return memo(ctx, c, "indices_within_distance", key, func(ctx context.Context) (*engine.IndexPairs, error) {
		return c.next.IndicesWithinDistance(ctx, x, y, threshold)
	})
}

func (c *Memoized) IndicesWithinDistanceOfPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*engine.Indices, error) {
	key := c.newKey("indices_within_distance_of_point").set(x).point(p).float(threshold).sum()
	return memo(ctx, c, "indices_within_distance_of_point", key, func(ctx context.Context) (*engine.Indices, error) {
		return c.next.IndicesWithinDistanceOfPoint(ctx, x, p, threshold)
	})
}

func (c *Memoized) Displace(ctx context.Context, p geo.Point, bearing, dist float64) (*engine.Displacement, error) {
	return c.next.Displace(ctx, p, bearing, dist)
}

func (c *Memoized) DisplaceAll(ctx context.Context, x *geo.CoordinateSet, bearing, dist float64) (*engine.Displacement, error) {
	return c.next.DisplaceAll(ctx, x, bearing, dist)
}

func (c *Memoized) DisplaceEach(ctx context.Context, x *geo.CoordinateSet, bearings, dists []float64) (*engine.Displacement, error) {
	return c.next.DisplaceEach(ctx, x, bearings, dists)
}

func (c *Memoized) Explain(ctx context.Context) geodesic.Report {
	return c.next.Explain(ctx)
}

// memo 先查缓存，未命中时经 singleflight 计算并回写。错误结果不缓存。
func memo[T any](ctx context.Context, c *Memoized, op, key string, compute func(context.Context) (*T, error)) (*T, error) {
	cached := new(T)
	err := c.store.Get(ctx, key, cached)
	if err == nil {
		c.metrics.hit(memoLayer)
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.WarnContext(ctx, "cache lookup failed, computing directly", "operation", op, "error", err)
	}
	c.metrics.miss(memoLayer)

	v, err, shared := c.group.Do(key, func() (any, error) {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, res, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "cache store failed", "operation", op, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "calculation shared with concurrent caller", "operation", op)
	}
	return v.(*T), nil
}

// keyBuilder 以 xxhash 累积请求指纹。
type keyBuilder struct {
	prefix string
	op     string
	d      *xxhash.Digest
	buf    [8]byte
}

func (c *Memoized) newKey(op string) *keyBuilder {
	k := &keyBuilder{prefix: c.prefix, op: op, d: xxhash.New()}
	_, _ = k.d.WriteString(c.fingerprint)
	return k
}

func (k *keyBuilder) uint(v uint64) *keyBuilder {
	binary.LittleEndian.PutUint64(k.buf[:], v)
	_, _ = k.d.Write(k.buf[:])
	return k
}

func (k *keyBuilder) float(v float64) *keyBuilder {
	return k.uint(math.Float64bits(v))
}

func (k *keyBuilder) point(p geo.Point) *keyBuilder {
	return k.float(p.Lat).float(p.Lon)
}

func (k *keyBuilder) set(s *geo.CoordinateSet) *keyBuilder {
	n := s.Len()
	k.uint(uint64(n))
	for i := range n {
		k.point(s.At(i))
	}
	return k
}

// pair 对自身比较与两个点集比较写入不同的标记。
func (k *keyBuilder) pair(x, y *geo.CoordinateSet) *keyBuilder {
	k.set(x)
	if y == nil || y == x {
		return k.uint(0)
	}
	return k.uint(1).set(y)
}

func (k *keyBuilder) sum() string {
	return k.prefix + k.op + ":" + strconv.FormatUint(k.d.Sum64(), 16)
}
