// Package bootstrap 负责进程级基础设施的初始化：配置、日志、追踪、指标，
// 并按配置组装 Calculator（引擎 → 结果缓存 → 埋点）。
package bootstrap

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/wyfcoding/geodist/cache"
	"github.com/wyfcoding/geodist/config"
	"github.com/wyfcoding/geodist/engine"
	"github.com/wyfcoding/geodist/logging"
	"github.com/wyfcoding/geodist/metrics"
	"github.com/wyfcoding/geodist/middleware"
	redisclient "github.com/wyfcoding/geodist/redis"
	"github.com/wyfcoding/geodist/tracing"
	"github.com/wyfcoding/geodist/worker"
)

// Bootstrapper 处理通用基础设施的初始化
type Bootstrapper struct {
	ServiceName string
	Version     string
	// Config 为当前生效的配置，热更新时整体替换；并发场景使用 CurrentConfig 读取。
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *metrics.Metrics

	workerMetrics *worker.Metrics
	cacheMetrics  *cache.Metrics
	redisMetrics  *redisclient.Metrics
	logOutput     io.Writer
	overrides     []func(*config.Config)

	mu      sync.RWMutex
	current engine.Calculator
	closers []func()
}

// Option 定义配置选项。
type Option func(*Bootstrapper)

// WithLogOutput 将日志写到 w（命令行工具写 stderr，避免与结果输出混在一起）。
func WithLogOutput(w io.Writer) Option {
	return func(b *Bootstrapper) {
		b.logOutput = w
	}
}

// WithOverrides 注册配置覆盖（例如命令行参数）。初始加载与每次热更新后都会重新应用。
func WithOverrides(fns ...func(*config.Config)) Option {
	return func(b *Bootstrapper) {
		b.overrides = append(b.overrides, fns...)
	}
}

// New 创建一个新的引导器实例
func New(serviceName, version string, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		ServiceName: serviceName,
		Version:     version,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize 加载配置文件（为空时使用默认配置加环境变量覆盖）并初始化日志与指标。
// 使用配置文件时注册热更新回调，计算参数变化后重新组装 Calculator。
func (b *Bootstrapper) Initialize(configPath string) error {
	// 1. 临时 Logger，用于记录配置加载过程中的错误。
	bootLogger := logging.NewWithWriter(logging.Config{Service: b.ServiceName, Module: "bootstrap"}, b.stderr())

	// 2. 加载配置。
	var (
		conf *config.Config
		err  error
	)
	if configPath == "" {
		conf, err = config.Default()
	} else {
		conf = &config.Config{}
		err = config.Load(configPath, conf)
	}
	if err != nil {
		bootLogger.Error("failed to load config", "path", configPath, "error", err)
		return err
	}
	conf = b.effective(conf)
	b.Config = conf

	// 3. 按配置重建全局 Logger。
	logCfg := conf.LoggingConfig("geodist")
	if b.logOutput != nil && logCfg.File == "" {
		b.Logger = logging.NewWithWriter(logCfg, b.logOutput)
	} else {
		b.Logger = logging.NewFromConfig(logCfg)
	}
	logging.SetDefault(b.Logger)
	config.PrintWithMask(conf)

	// 4. 指标注册表在进程内只创建一次，重建 Calculator 时复用。
	b.Metrics = metrics.NewMetrics(conf.Service)
	b.Metrics.RegisterBuildInfo(conf.Service, conf.Version)
	b.workerMetrics = worker.NewMetrics(b.Metrics)
	b.cacheMetrics = cache.NewMetrics(b.Metrics)
	b.redisMetrics = redisclient.NewMetrics(b.Metrics)

	if configPath != "" {
		config.RegisterReloadHook(b.reload)
	}
	return nil
}

func (b *Bootstrapper) stderr() io.Writer {
	if b.logOutput != nil {
		return b.logOutput
	}
	return os.Stderr
}

// effective 返回应用了版本号与覆盖项的副本，不修改 conf 本身。
func (b *Bootstrapper) effective(conf *config.Config) *config.Config {
	next := *conf
	if next.Version == "" {
		next.Version = b.Version
	}
	for _, fn := range b.overrides {
		fn(&next)
	}
	return &next
}

// CurrentConfig 返回当前生效的配置。
func (b *Bootstrapper) CurrentConfig() *config.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Config
}

// SetupTracing 初始化 OpenTelemetry 追踪器
func (b *Bootstrapper) SetupTracing() func() {
	conf := b.CurrentConfig()
	cfg := conf.Tracing
	if cfg.ServiceName == "" {
		cfg.ServiceName = conf.Service
	}
	shutdown, err := tracing.InitTracer(cfg)
	if err != nil {
		b.Logger.Error("failed to init tracer", "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			b.Logger.Error("failed to shutdown tracer", "error", err)
		}
	}
}

// SetupMetrics 按配置暴露 /metrics 端点。
func (b *Bootstrapper) SetupMetrics() func() {
	cfg := b.CurrentConfig().Metrics
	if !cfg.Enabled {
		return func() {}
	}
	b.Logger.Info("exposing metrics", "port", cfg.Port)
	return b.Metrics.ExposeHttp(cfg.Port)
}

// Calculator 返回当前的 Calculator，首次调用时按配置组装。
func (b *Bootstrapper) Calculator() (engine.Calculator, error) {
	b.mu.RLock()
	current, conf := b.current, b.Config
	b.mu.RUnlock()
	if current != nil {
		return current, nil
	}

	calc, closer, err := b.build(conf)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		closer()
		return b.current, nil
	}
	b.current = calc
	b.closers = append(b.closers, closer)
	return calc, nil
}

// Close 释放缓存连接等资源。
func (b *Bootstrapper) Close() {
	b.mu.Lock()
	closers := b.closers
	b.closers = nil
	b.mu.Unlock()
	for _, c := range closers {
		c()
	}
}

// reload 在新配置上重新应用覆盖项并组装 Calculator；失败时配置与 Calculator 均保持不变。
func (b *Bootstrapper) reload(next *config.Config) {
	conf := b.effective(next)
	calc, closer, err := b.build(conf)
	if err != nil {
		b.Logger.Error("failed to rebuild calculator after config change, keeping previous", "error", err)
		return
	}
	b.mu.Lock()
	b.Config = conf
	b.current = calc
	b.closers = append(b.closers, closer)
	b.mu.Unlock()
	b.Logger.Info("calculator rebuilt", "method", calc.Method().String(), "settings", calc.Settings().String())
}

// build 组装 引擎 → 缓存 → 埋点。返回的 closer 关闭缓存资源。
func (b *Bootstrapper) build(conf *config.Config) (engine.Calculator, func(), error) {
	method, err := conf.Calculation.ParsedMethod()
	if err != nil {
		return nil, nil, err
	}
	settings, err := conf.Calculation.Settings()
	if err != nil {
		return nil, nil, err
	}

	e, err := engine.New(method, settings,
		engine.WithLogger(b.Logger.Logger),
		engine.WithWorkerMetrics(b.workerMetrics),
	)
	if err != nil {
		return nil, nil, err
	}

	var (
		calc   engine.Calculator = e
		closer                   = func() {}
	)
	if conf.Cache.Enabled {
		store, storeCloser, err := b.buildStore(conf.Cache)
		if err != nil {
			return nil, nil, err
		}
		closer = storeCloser
		// 启用 Redis 时由 RedisCache 负责键前缀，本地缓存为进程私有。
		prefix := conf.Cache.Prefix
		if conf.Cache.Redis.Enabled {
			prefix = ""
		}
		calc = cache.Memoize(calc, store, cache.MemoizeOptions{
			TTL:     conf.Cache.TTL,
			Prefix:  prefix,
			Metrics: b.cacheMetrics,
			Logger:  b.Logger.Logger,
		})
	}

	calc = middleware.Instrument(calc, middleware.InstrumentOptions{
		Metrics: b.Metrics,
		Logger:  b.Logger.Logger,
	})

	b.Logger.Debug("calculator assembled", "method", method.String(), "cache", conf.Cache.Enabled)
	return calc, closer, nil
}

func (b *Bootstrapper) buildStore(cfg config.CacheConfig) (cache.Cache, func(), error) {
	local, err := cache.NewBigCache(cfg.TTL, cfg.BigCache, b.cacheMetrics)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Redis.Enabled {
		return local, func() { _ = local.Close() }, nil
	}

	conn, err := cache.NewRedisCache(cfg.Redis, cfg.Breaker, b.cacheMetrics, b.redisMetrics)
	if err != nil {
		_ = local.Close()
		return nil, nil, err
	}
	// WithPrefix 返回的实例不持有连接，连接仍由 conn 关闭。
	remote := conn.WithPrefix(strings.TrimSuffix(cfg.Prefix, ":"))
	store := cache.NewMultiLevelCache(local, remote, b.Logger.Logger)
	return store, func() {
		_ = store.Close()
		_ = conn.Close()
	}, nil
}
