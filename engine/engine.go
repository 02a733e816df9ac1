// Package engine 是距离计算的批量执行层。
//
// Engine 在 Haversine 与 Vincenty 求解器之上提供点集两两距离矩阵、点到点集距离、
// 阈值判定、阈值命中下标以及位移计算。计算按行（或较长的一维）切分成连续块并行执行，
// 每个块只写自己的输出区域，结果顺序与 worker 数量和调度顺序无关。
//
// 两个输入是同一点集时（y 为 nil 或与 x 为同一指针）只计算上三角并镜像填充下三角，
// 输出与完整计算逐位一致。
package engine

import (
	"context"
	"log/slog"
	"math"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/geodesic"
	"github.com/wyfcoding/geodist/logging"
	"github.com/wyfcoding/geodist/worker"
	"github.com/wyfcoding/geodist/xerrors"
)

// Calculator 是距离计算的统一接口，Engine 与各装饰器（埋点、缓存）均实现它。
// 所有操作运行至完成，ctx 只用于日志、追踪等上下文传递，不支持中途取消。
type Calculator interface {
	Method() geodesic.Method
	Settings() *geodesic.Settings

	// Distance 计算 x 与 y 两两之间的距离矩阵；y 为 nil 表示 x 与自身。
	Distance(ctx context.Context, x, y *geo.CoordinateSet) (*DistanceMatrix, error)
	// DistanceFromPoint 计算 p 到 x 中每个点的距离。
	DistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point) (*DistanceVector, error)
	// WithinDistance 判定两两距离是否不超过 threshold。
	WithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*WithinMatrix, error)
	// WithinDistanceFromPoint 判定 p 到各点的距离是否不超过 threshold。
	WithinDistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*WithinVector, error)
	// IndicesWithinDistance 返回距离不超过 threshold 的全部 (行, 列) 下标。
	IndicesWithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*IndexPairs, error)
	// IndicesWithinDistanceOfPoint 返回距 p 不超过 threshold 的点下标。
	IndicesWithinDistanceOfPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*Indices, error)

	// Displace 从 p 沿 bearing（度）前进 dist 后的终点。
	Displace(ctx context.Context, p geo.Point, bearing, dist float64) (*Displacement, error)
	// DisplaceAll 对 x 中每个点使用相同的方位角与距离。
	DisplaceAll(ctx context.Context, x *geo.CoordinateSet, bearing, dist float64) (*Displacement, error)
	// DisplaceEach 对 x 中每个点使用逐元素对应的方位角与距离。
	DisplaceEach(ctx context.Context, x *geo.CoordinateSet, bearings, dists []float64) (*Displacement, error)

	// Explain 返回当前参数的诊断报告。
	Explain(ctx context.Context) geodesic.Report
}

// Engine 是 Calculator 的核心实现。构造后只读，可被并发使用。
type Engine struct {
	method     geodesic.Method
	settings   *geodesic.Settings
	solver     geodesic.Solver
	dispatcher *worker.Dispatcher
	logger     *slog.Logger
}

type engineOptions struct {
	logger  *slog.Logger
	metrics *worker.Metrics
}

// Option 定义配置选项。
type Option func(*engineOptions)

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithWorkerMetrics 为内部分发器注入指标。
func WithWorkerMetrics(m *worker.Metrics) Option {
	return func(o *engineOptions) {
		o.metrics = m
	}
}

// New 创建 Engine。settings 为 nil 时使用默认参数。
func New(method geodesic.Method, settings *geodesic.Settings, opts ...Option) (*Engine, error) {
	if settings == nil {
		settings = geodesic.DefaultSettings()
	}
	solver, err := method.Solver(settings)
	if err != nil {
		return nil, err
	}

	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Default().Logger
	}

	dispatcher := worker.NewDispatcher(
		worker.WithName(method.String()),
		worker.WithSize(settings.EffectiveWorkers()),
		worker.WithLogger(o.logger),
		worker.WithMetrics(o.metrics),
	)

	return &Engine{
		method:     method,
		settings:   settings,
		solver:     solver,
		dispatcher: dispatcher,
		logger:     o.logger.With("method", method.String()),
	}, nil
}

// Method 返回算法标签。
func (e *Engine) Method() geodesic.Method { return e.method }

// Settings 返回计算参数。
func (e *Engine) Settings() *geodesic.Settings { return e.settings }

// Explain 返回当前参数的诊断报告。
func (e *Engine) Explain(context.Context) geodesic.Report {
	return geodesic.Explain(e.settings)
}

// warnNonConvergence 在存在未收敛结果时记录告警。
func (e *Engine) warnNonConvergence(ctx context.Context, op string, d Diagnostics) {
	if d.Converged() {
		return
	}
	e.logger.WarnContext(ctx, "solver did not converge",
		"operation", op,
		"non_converged", d.NonConverged,
		"evaluations", d.Evaluations,
		"max_iterations", e.settings.MaxIterations(),
	)
}

func normalizePoint(p geo.Point) (geo.Point, error) {
	np, err := geo.NewPoint(p.Lat, p.Lon)
	if err != nil {
		return geo.Point{}, xerrors.Wrap(err, xerrors.ErrInvalidArg, "invalid reference point")
	}
	return np, nil
}

func checkThreshold(t float64) error {
	if math.IsNaN(t) {
		return xerrors.ErrInvalidThreshold.Detailf("threshold must not be NaN")
	}
	return nil
}

func isIdentity(x, y *geo.CoordinateSet) bool {
	return y == nil || y == x
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
