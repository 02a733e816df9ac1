// Package config 提供了统一的配置加载与管理能力：TOML 文件 + GEODIST_ 前缀环境变量覆盖、
// 结构体校验、文件变更热更新与脱敏打印。
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/geodist/geodesic"
	"github.com/wyfcoding/geodist/logging"
)

// EnvPrefix 环境变量前缀，例如 GEODIST_CALCULATION_WORKERS=4。
const EnvPrefix = "GEODIST"

// Config 全局顶级配置结构.
type Config struct {
	Version     string            `mapstructure:"version"     toml:"version"`
	Service     string            `mapstructure:"service"     toml:"service"     validate:"required"`
	Calculation CalculationConfig `mapstructure:"calculation" toml:"calculation"`
	Log         LogConfig         `mapstructure:"log"         toml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"     toml:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"     toml:"tracing"`
	Cache       CacheConfig       `mapstructure:"cache"       toml:"cache"`
}

// CalculationConfig 距离计算参数。零值或缺省字段使用 WGS84 默认值。
type CalculationConfig struct {
	Method          string   `mapstructure:"method"           toml:"method"           validate:"required,oneof=haversine vincenty Haversine Vincenty"`
	SphericalRadius float64  `mapstructure:"spherical_radius" toml:"spherical_radius" validate:"gte=0"`
	EllipseA        *float64 `mapstructure:"ellipse_a"        toml:"ellipse_a"        validate:"omitempty,gt=0"`
	EllipseB        *float64 `mapstructure:"ellipse_b"        toml:"ellipse_b"        validate:"omitempty,gt=0"`
	EllipseF        *float64 `mapstructure:"ellipse_f"        toml:"ellipse_f"        validate:"omitempty,gte=0,lt=1"`
	Eps             float64  `mapstructure:"eps"              toml:"eps"              validate:"gte=0"`
	Tolerance       float64  `mapstructure:"tolerance"        toml:"tolerance"        validate:"gte=0"`
	MaxIterations   *int     `mapstructure:"max_iterations"   toml:"max_iterations"   validate:"omitempty,gte=0"`
	Workers         int      `mapstructure:"workers"          toml:"workers"          validate:"gte=0"`
	SerialThreshold *int     `mapstructure:"serial_threshold" toml:"serial_threshold" validate:"omitempty,gte=0"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn warning error"`
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径。
	Stdout     bool   `mapstructure:"stdout"      toml:"stdout"`      // 写文件的同时输出到 stdout。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`    // 是否启用压缩。
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port" validate:"required_if=Enabled true"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// CacheConfig 计算结果缓存配置：本地 BigCache 为一级，Redis 为可选二级。
type CacheConfig struct {
	Enabled  bool                 `mapstructure:"enabled"  toml:"enabled"`
	Prefix   string               `mapstructure:"prefix"   toml:"prefix"`
	TTL      time.Duration        `mapstructure:"ttl"      toml:"ttl"`
	BigCache BigCacheConfig       `mapstructure:"bigcache" toml:"bigcache"`
	Redis    RedisConfig          `mapstructure:"redis"    toml:"redis"`
	Breaker  CircuitBreakerConfig `mapstructure:"breaker"  toml:"breaker"`
}

// BigCacheConfig 高性能本地内存缓存参数.
type BigCacheConfig struct {
	LifeWindow       time.Duration `mapstructure:"life_window"         toml:"life_window"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"`
	Shards           int           `mapstructure:"shards"              toml:"shards"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size"`
	Verbose          bool          `mapstructure:"verbose"             toml:"verbose"`
}

// RedisConfig 定义 Redis 连接与池化参数.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"        toml:"enabled"`
	Addr         string        `mapstructure:"addr"           toml:"addr" validate:"required_if=Enabled true"`
	Password     string        `mapstructure:"password"       toml:"password"`
	DB           int           `mapstructure:"db"             toml:"db"`
	PoolSize     int           `mapstructure:"pool_size"      toml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" toml:"min_idle_conns"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"   toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"  toml:"write_timeout"`
}

// CircuitBreakerConfig 定义 Redis 访问的熔断策略.
type CircuitBreakerConfig struct {
	Interval    time.Duration `mapstructure:"interval"     toml:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"      toml:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests" toml:"max_requests"`
	MaxFailures uint32        `mapstructure:"max_failures" toml:"max_failures"`
}

// ParsedMethod 返回配置的距离算法。
func (c CalculationConfig) ParsedMethod() (geodesic.Method, error) {
	return geodesic.ParseMethod(c.Method)
}

// Settings 将配置转换为经过校验的计算参数。
func (c CalculationConfig) Settings() (*geodesic.Settings, error) {
	opts := []geodesic.Option{geodesic.WithWorkers(c.Workers)}
	if c.SphericalRadius > 0 {
		opts = append(opts, geodesic.WithSphericalRadius(c.SphericalRadius))
	}
	if c.EllipseA != nil {
		opts = append(opts, geodesic.WithEllipseA(*c.EllipseA))
	}
	if c.EllipseB != nil {
		opts = append(opts, geodesic.WithEllipseB(*c.EllipseB))
	}
	if c.EllipseF != nil {
		opts = append(opts, geodesic.WithEllipseF(*c.EllipseF))
	}
	if c.Eps > 0 {
		opts = append(opts, geodesic.WithEps(c.Eps))
	}
	if c.Tolerance > 0 {
		opts = append(opts, geodesic.WithTolerance(c.Tolerance))
	}
	if c.MaxIterations != nil {
		opts = append(opts, geodesic.WithMaxIterations(*c.MaxIterations))
	}
	if c.SerialThreshold != nil {
		opts = append(opts, geodesic.WithSerialThreshold(*c.SerialThreshold))
	}
	return geodesic.NewSettings(opts...)
}

// LoggingConfig 转换为 logging 包的配置。
func (c *Config) LoggingConfig(module string) logging.Config {
	return logging.Config{
		Service:    c.Service,
		Module:     module,
		Level:      c.Log.Level,
		File:       c.Log.File,
		Stdout:     c.Log.Stdout,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}

var (
	mu       sync.RWMutex
	current  *Config
	onReload []func(*Config)
	validate = validator.New()
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service", "geodist")
	v.SetDefault("calculation.method", geodesic.Haversine.String())
	v.SetDefault("calculation.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("cache.prefix", "geodist:")
	v.SetDefault("cache.ttl", 10*time.Minute)
}

// Default 返回不依赖配置文件的默认配置（仍然应用环境变量覆盖）。
func Default() (*Config, error) {
	v := newViper()
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return conf, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 读取 TOML 配置文件、应用环境变量覆盖并校验，随后监听文件变更。
// 热更新不会修改 conf：新配置解析到新实例，校验通过后经 Current 发布并传给回调。
func Load(path string, conf *Config) error {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}
	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	current = conf
	mu.Unlock()

	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		if _, err := reload(v); err != nil {
			slog.Error("config reload rejected", "error", err)
		}
	})
	v.WatchConfig()

	return nil
}

// Current 返回最近一次成功加载或热更新的配置，未调用 Load 时为 nil。
// 返回的实例不会再被修改。
func Current() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func reload(v *viper.Viper) (*Config, error) {
	next := &Config{}
	if err := v.Unmarshal(next); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := validate.Struct(next); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	current = next
	hooks := append([]func(*Config){}, onReload...)
	mu.Unlock()

	logging.SetLevel(next.Log.Level)
	slog.Info("config hot-reloaded and validated successfully")
	for _, hook := range hooks {
		hook(next)
	}
	return next, nil
}

// PrintWithMask 以 Debug 级别脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)
		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)
		return
	}

	slog.Debug("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}
