// Package logging 提供了统一的结构化日志（slog）封装，支持 OpenTelemetry 追踪上下文注入、
// 文件切割与运行时调整日志级别。
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace" // OpenTelemetry追踪
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// defaultLogger 是全局默认的Logger实例，采用单例模式。
	defaultLogger *Logger
	// once 用于确保InitLogger函数只被执行一次，保证defaultLogger的单例性。
	once sync.Once
	// level 是所有由本包创建的 Handler 共享的动态级别。
	level = new(slog.LevelVar)
)

// Config 定义日志配置
type Config struct {
	Service    string
	Module     string
	Level      string
	File       string // 日志文件路径，为空则只输出到 stdout
	Stdout     bool   // 配置了 File 时是否同时输出到 stdout
	MaxSize    int    // 每个日志文件最大尺寸 (MB)
	MaxBackups int    // 保留旧日志文件的最大个数
	MaxAge     int    // 保留旧日志文件的最大天数
	Compress   bool   // 是否压缩旧日志
}

// Logger 结构体封装了原生的 `*slog.Logger`，并添加了服务名和模块名，方便在日志中区分来源。
type Logger struct {
	*slog.Logger
	Service string // 服务名称
	Module  string // 模块名称
}

// TraceHandler 是一个自定义的 `slog.Handler` 装饰器，用于从 `context.Context` 中提取并注入 `trace_id` 和 `span_id` 到日志记录中。
type TraceHandler struct {
	slog.Handler
}

// Handle 在处理日志记录之前尝试从上下文获取 OpenTelemetry 的 SpanContext，
// 如果有效，则将 trace_id 和 span_id 添加到日志属性中。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs 保持装饰器在派生 Handler 上依然生效。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup 同上。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel 将文本级别转换为 slog.Level，未知值按 info 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel 运行时调整全局日志级别，供配置热更新使用。
func SetLevel(s string) {
	level.Set(ParseLevel(s))
}

// CurrentLevel 返回当前日志级别。
func CurrentLevel() slog.Level {
	return level.Level()
}

// NewFromConfig 创建一个新的Logger实例。
// 支持通过 Config 结构体配置日志切割。
func NewFromConfig(cfg Config) *Logger {
	level.Set(ParseLevel(cfg.Level))
	return newWithWriter(cfg, nil)
}

// NewWithWriter 创建输出到指定 writer 的 Logger，主要用于测试与命令行工具。
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	level.Set(ParseLevel(cfg.Level))
	return newWithWriter(cfg, w)
}

func newWithWriter(cfg Config, w io.Writer) *Logger {
	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			a.Key = "timestamp"
		}
		return a
	}
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	switch {
	case w != nil:
		handler = slog.NewJSONHandler(w, opts)
	case cfg.File != "":
		// 如果配置了文件路径，则使用 lumberjack 进行日志切割
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
		handler = slog.NewJSONHandler(fileWriter, opts)
		if cfg.Stdout {
			handler = newMultiHandler(handler, slog.NewJSONHandler(os.Stdout, opts))
		}
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(&TraceHandler{Handler: handler}).With(
		slog.String("service", cfg.Service),
		slog.String("module", cfg.Module),
	)

	return &Logger{
		Logger:  logger,
		Service: cfg.Service,
		Module:  cfg.Module,
	}
}

// NewLogger 是创建一个带有简单参数的 logger 的兼容别名。
func NewLogger(service, module string, level ...string) *Logger {
	lvl := "info"
	if len(level) > 0 {
		lvl = level[0]
	}
	return NewFromConfig(Config{
		Service: service,
		Module:  module,
		Level:   lvl,
	})
}

// InitLogger 初始化全局默认日志记录器
func InitLogger(cfg Config) {
	once.Do(func() {
		defaultLogger = NewFromConfig(cfg)
		slog.SetDefault(defaultLogger.Logger)
	})
}

// SetDefault 在启动阶段替换全局默认日志记录器，之后的 InitLogger 调用不再生效。
func SetDefault(l *Logger) {
	once.Do(func() {})
	defaultLogger = l
	slog.SetDefault(l.Logger)
}

// Default 返回默认日志记录器实例
func Default() *Logger {
	InitLogger(Config{Service: "geodist", Module: "default", Level: "info"})
	return defaultLogger
}

// Info 记录 Info 级别日志
func Info(ctx context.Context, msg string, args ...any) {
	Default().InfoContext(ctx, msg, args...)
}

// Warn 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, args ...any) {
	Default().WarnContext(ctx, msg, args...)
}

// Error 记录 Error 级别日志
func Error(ctx context.Context, msg string, args ...any) {
	Default().ErrorContext(ctx, msg, args...)
}

// Debug 记录 Debug 级别日志
func Debug(ctx context.Context, msg string, args ...any) {
	Default().DebugContext(ctx, msg, args...)
}

// LogDuration 记录操作耗时
func LogDuration(ctx context.Context, operation string, args ...any) func() {
	start := time.Now()
	return func() {
		logArgs := append(args, "duration", time.Since(start))
		Info(ctx, fmt.Sprintf("%s finished", operation), logArgs...)
	}
}
