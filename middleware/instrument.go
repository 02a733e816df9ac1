// Package middleware 提供了 Calculator 的通用装饰器实现。
// 生成摘要:
// 1) 每次调用创建一个 OpenTelemetry Span，并记录方法、点数与求解诊断。
// 2) 采集调用量、耗时、求解次数、未收敛次数以及输入/结果规模指标。
// 3) 访问日志识别 xerrors 并映射状态码，参数错误记 Warn，其余错误记 Error。
// 假设:
// 1) 下游返回的错误优先使用 xerrors 作为统一错误类型。
package middleware

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/wyfcoding/geodist/engine"
	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/geodesic"
	"github.com/wyfcoding/geodist/logging"
	"github.com/wyfcoding/geodist/metrics"
	"github.com/wyfcoding/geodist/tracing"
	"github.com/wyfcoding/geodist/xerrors"
)

// InstrumentOptions 定义埋点装饰器的可选参数。
type InstrumentOptions struct {
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	SlowThreshold time.Duration // 超过该耗时的调用记 Warn，0 表示不检测
}

// Instrumented 为下游 Calculator 增加追踪、指标与访问日志。
type Instrumented struct {
	next    engine.Calculator
	metrics *metrics.Metrics
	logger  *slog.Logger
	slow    time.Duration
}

var _ engine.Calculator = (*Instrumented)(nil)

// Instrument 包装 next。opts.Metrics 为 nil 时只记录追踪与日志。
func Instrument(next engine.Calculator, opts InstrumentOptions) *Instrumented {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default().Logger
	}
	if opts.Metrics != nil {
		opts.Metrics.RegisterInputSizeMetrics()
		opts.Metrics.RegisterResultSizeMetrics()
	}
	return &Instrumented{
		next:    next,
		metrics: opts.Metrics,
		logger:  logger,
		slow:    opts.SlowThreshold,
	}
}

// Method 返回下游的算法。
func (c *Instrumented) Method() geodesic.Method { return c.next.Method() }

// Settings 返回下游的计算参数。
func (c *Instrumented) Settings() *geodesic.Settings { return c.next.Settings() }

func (c *Instrumented) Distance(ctx context.Context, x, y *geo.CoordinateSet) (*engine.DistanceMatrix, error) {
	return observe(ctx, c, "distance", pairInputs(x, y),
		func(ctx context.Context) (*engine.DistanceMatrix, error) {
			return c.next.Distance(ctx, x, y)
		},
		func(r *engine.DistanceMatrix) (int, engine.Diagnostics) { return len(r.Values), r.Diagnostics })
}

func (c *Instrumented) DistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point) (*engine.DistanceVector, error) {
	return observe(ctx, c, "distance_from_point", x.Len()+1,
		func(ctx context.Context) (*engine.DistanceVector, error) {
			return c.next.DistanceFromPoint(ctx, x, p)
		},
		func(r *engine.DistanceVector) (int, engine.Diagnostics) { return len(r.Values), r.Diagnostics })
}

func (c *Instrumented) WithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*engine.WithinMatrix, error) {
	return observe(ctx, c, "within_distance", pairInputs(x, y),
		func(ctx context.Context) (*engine.WithinMatrix, error) {
			return c.next.WithinDistance(ctx, x, y, threshold)
		},
		func(r *engine.WithinMatrix) (int, engine.Diagnostics) { return len(r.Values), r.Diagnostics })
}

func (c *Instrumented) WithinDistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*engine.WithinVector, error) {
	return observe(ctx, c, "within_distance_from_point", x.Len()+1,
		func(ctx context.Context) (*engine.WithinVector, error) {
			return c.next.WithinDistanceFromPoint(ctx, x, p, threshold)
		},
		func(r *engine.WithinVector) (int, engine.Diagnostics) { return len(r.Values), r.Diagnostics })
}

func (c *Instrumented) IndicesWithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*engine.IndexPairs, error) {
	return observe(ctx, c, "indices_within_distance", pairInputs(x, y),
		func(ctx context.Context) (*engine.IndexPairs, error) {
			return c.next.IndicesWithinDistance(ctx, x, y, threshold)
		},
		func(r *engine.IndexPairs) (int, engine.Diagnostics) { return len(r.Pairs), r.Diagnostics })
}

func (c *Instrumented) IndicesWithinDistanceOfPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*engine.Indices, error) {
	return observe(ctx, c, "indices_within_distance_of_point", x.Len()+1,
		func(ctx context.Context) (*engine.Indices, error) {
			return c.next.IndicesWithinDistanceOfPoint(ctx, x, p, threshold)
		},
		func(r *engine.Indices) (int, engine.Diagnostics) { return len(r.Values), r.Diagnostics })
}

func (c *Instrumented) Displace(ctx context.Context, p geo.Point, bearing, dist float64) (*engine.Displacement, error) {
	return observe(ctx, c, "displace", 1,
		func(ctx context.Context) (*engine.Displacement, error) {
			return c.next.Displace(ctx, p, bearing, dist)
		},
		displacementSummary)
}

func (c *Instrumented) DisplaceAll(ctx context.Context, x *geo.CoordinateSet, bearing, dist float64) (*engine.Displacement, error) {
	return observe(ctx, c, "displace_all", x.Len(),
		func(ctx context.Context) (*engine.Displacement, error) {
			return c.next.DisplaceAll(ctx, x, bearing, dist)
		},
		displacementSummary)
}

func (c *Instrumented) DisplaceEach(ctx context.Context, x *geo.CoordinateSet, bearings, dists []float64) (*engine.Displacement, error) {
	return observe(ctx, c, "displace_each", x.Len(),
		func(ctx context.Context) (*engine.Displacement, error) {
			return c.next.DisplaceEach(ctx, x, bearings, dists)
		},
		displacementSummary)
}

// Explain 不计入指标，只透传。
func (c *Instrumented) Explain(ctx context.Context) geodesic.Report {
	return c.next.Explain(ctx)
}

func displacementSummary(r *engine.Displacement) (int, engine.Diagnostics) {
	return len(r.Points), r.Diagnostics
}

func pairInputs(x, y *geo.CoordinateSet) int {
	if y == nil || y == x {
		return x.Len()
	}
	return x.Len() + y.Len()
}

// observe 是所有操作共用的埋点流程。
func observe[T any](
	ctx context.Context,
	c *Instrumented,
	operation string,
	inputs int,
	call func(context.Context) (T, error),
	summarize func(T) (int, engine.Diagnostics),
) (T, error) {
	method := c.next.Method().String()

	ctx, span := tracing.StartSpan(ctx, "geodist."+operation)
	defer span.End()
	tracing.AddTag(ctx, "geodist.method", method)
	tracing.AddTag(ctx, "geodist.inputs", inputs)

	start := time.Now()
	result, err := call(ctx)
	duration := time.Since(start)

	code := codes.OK
	if err != nil {
		code = codes.Internal
		if xe, ok := xerrors.FromError(err); ok {
			code = xe.GRPCCode()
		}
		tracing.SetError(ctx, err)
	}

	fields := []any{
		"method", method,
		"operation", operation,
		"inputs", inputs,
		"status", code.String(),
		"duration", duration,
	}

	if c.metrics != nil {
		c.metrics.CalculationsTotal.WithLabelValues(method, operation, code.String()).Inc()
		c.metrics.CalculationDuration.WithLabelValues(method, operation).Observe(duration.Seconds())
		c.metrics.InputPoints.WithLabelValues(method, operation).Observe(float64(inputs))
	}

	if err != nil {
		fields = append(fields, "error", err)
		if code == codes.InvalidArgument {
			c.logger.WarnContext(ctx, "calculation rejected", fields...)
		} else {
			c.logger.ErrorContext(ctx, "calculation failed", fields...)
		}
		return result, err
	}

	elements, diag := summarize(result)
	tracing.AddTag(ctx, "geodist.evaluations", diag.Evaluations)
	tracing.AddTag(ctx, "geodist.converged", diag.Converged())
	if c.metrics != nil {
		c.metrics.ResultElements.WithLabelValues(method, operation).Observe(float64(elements))
		c.metrics.SolverEvaluationsTotal.WithLabelValues(method).Add(float64(diag.Evaluations))
		if diag.NonConverged > 0 {
			c.metrics.NonConvergenceTotal.WithLabelValues(method).Add(float64(diag.NonConverged))
		}
	}

	fields = append(fields, "elements", elements, "evaluations", diag.Evaluations)
	if c.slow > 0 && duration > c.slow {
		c.logger.WarnContext(ctx, "slow calculation", fields...)
		return result, nil
	}
	c.logger.DebugContext(ctx, "calculation processed", fields...)
	return result, nil
}
