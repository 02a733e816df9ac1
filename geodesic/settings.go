// Package geodesic 实现 Haversine（球面）与 Vincenty（椭球迭代）两种测地线算法，
// 以及驱动它们的不可变计算参数 Settings。
package geodesic

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/xerrors"
)

const (
	// DefaultSphericalRadius 球面模型下的地球半径（千米）。
	DefaultSphericalRadius = 6371.0
	// DefaultTolerance Vincenty 迭代的收敛阈值（作用于弧度 λ/σ 的变化量）。
	DefaultTolerance = 1e-12
	// DefaultMaxIterations Vincenty 迭代次数上限。
	DefaultMaxIterations = 1000
	// DefaultSerialThreshold 点到集合计算低于该长度时不做并行拆分。
	DefaultSerialThreshold = 8192
)

// DefaultEps 分母保护用的极小值，默认取 float64 机器精度。
var DefaultEps = math.Nextafter(1, 2) - 1

// Settings 是一次计算使用的不可变参数集合。
// 只能通过 NewSettings / DefaultSettings 构造，构造成功即保证参数合法。
type Settings struct {
	ellipsoid       geo.Ellipsoid
	sphericalRadius float64
	eps             float64
	tolerance       float64
	maxIterations   int
	workers         int
	serialThreshold int
}

type settingsOptions struct {
	ellipseA        *float64
	ellipseB        *float64
	ellipseF        *float64
	sphericalRadius float64
	eps             float64
	tolerance       float64
	maxIterations   int
	workers         int
	serialThreshold int
}

// Option 定义配置选项。
type Option func(*settingsOptions)

// WithEllipseA 设置椭球长半轴。
func WithEllipseA(a float64) Option {
	return func(o *settingsOptions) {
		o.ellipseA = &a
	}
}

// WithEllipseB 设置椭球短半轴。
func WithEllipseB(b float64) Option {
	return func(o *settingsOptions) {
		o.ellipseB = &b
	}
}

// WithEllipseF 设置椭球扁率 f = (a-b)/a。
func WithEllipseF(f float64) Option {
	return func(o *settingsOptions) {
		o.ellipseF = &f
	}
}

// WithEllipsoid 一次性设置完整的椭球三元组。
func WithEllipsoid(e geo.Ellipsoid) Option {
	return func(o *settingsOptions) {
		o.ellipseA, o.ellipseB, o.ellipseF = &e.A, &e.B, &e.F
	}
}

// WithSphericalRadius 设置 Haversine 使用的球半径。
func WithSphericalRadius(r float64) Option {
	return func(o *settingsOptions) {
		o.sphericalRadius = r
	}
}

// WithEps 设置分母保护阈值。
func WithEps(eps float64) Option {
	return func(o *settingsOptions) {
		o.eps = eps
	}
}

// WithTolerance 设置 Vincenty 收敛阈值。
func WithTolerance(tol float64) Option {
	return func(o *settingsOptions) {
		o.tolerance = tol
	}
}

// WithMaxIterations 设置 Vincenty 迭代上限，0 表示只使用初始估计。
func WithMaxIterations(n int) Option {
	return func(o *settingsOptions) {
		o.maxIterations = n
	}
}

// WithWorkers 设置并行 worker 数量，0 表示使用全部逻辑 CPU。
func WithWorkers(n int) Option {
	return func(o *settingsOptions) {
		o.workers = n
	}
}

// WithSerialThreshold 设置点到集合计算的串行阈值。
func WithSerialThreshold(n int) Option {
	return func(o *settingsOptions) {
		o.serialThreshold = n
	}
}

// DefaultSettings 返回 WGS84 默认参数。
func DefaultSettings() *Settings {
	return &Settings{
		ellipsoid:       geo.WGS84,
		sphericalRadius: DefaultSphericalRadius,
		eps:             DefaultEps,
		tolerance:       DefaultTolerance,
		maxIterations:   DefaultMaxIterations,
		workers:         0,
		serialThreshold: DefaultSerialThreshold,
	}
}

// NewSettings 基于默认值应用选项并校验。
// 椭球三元组只给出一部分时按以下规则补全：
// 给出两项则推导第三项；只给 a 或只给 f 时保留另一项的默认值并推导 b；只给 b 时保留默认扁率推导 a。
// 不合法的参数直接返回错误，不做静默截断。
func NewSettings(opts ...Option) (*Settings, error) {
	def := DefaultSettings()
	o := &settingsOptions{
		sphericalRadius: def.sphericalRadius,
		eps:             def.eps,
		tolerance:       def.tolerance,
		maxIterations:   def.maxIterations,
		workers:         def.workers,
		serialThreshold: def.serialThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}

	ellipsoid, err := resolveEllipsoid(o.ellipseA, o.ellipseB, o.ellipseF)
	if err != nil {
		return nil, err
	}

	switch {
	case !(o.sphericalRadius > 0) || math.IsInf(o.sphericalRadius, 0):
		return nil, xerrors.ErrInvalidSettings.Detailf("spherical_radius must be positive, got %v", o.sphericalRadius)
	case !(o.eps > 0) || math.IsInf(o.eps, 0):
		return nil, xerrors.ErrInvalidSettings.Detailf("eps must be positive, got %v", o.eps)
	case !(o.tolerance > 0) || math.IsInf(o.tolerance, 0):
		return nil, xerrors.ErrInvalidSettings.Detailf("tolerance must be positive, got %v", o.tolerance)
	case o.maxIterations < 0:
		return nil, xerrors.ErrInvalidSettings.Detailf("max_iterations must be non-negative, got %d", o.maxIterations)
	case o.workers < 0:
		return nil, xerrors.ErrInvalidSettings.Detailf("workers must be non-negative, got %d", o.workers)
	case o.serialThreshold < 0:
		return nil, xerrors.ErrInvalidSettings.Detailf("serial_threshold must be non-negative, got %d", o.serialThreshold)
	}

	return &Settings{
		ellipsoid:       ellipsoid,
		sphericalRadius: o.sphericalRadius,
		eps:             o.eps,
		tolerance:       o.tolerance,
		maxIterations:   o.maxIterations,
		workers:         o.workers,
		serialThreshold: o.serialThreshold,
	}, nil
}

func resolveEllipsoid(a, b, f *float64) (geo.Ellipsoid, error) {
	def := geo.WGS84
	switch {
	case a != nil && b != nil && f != nil:
		return geo.NewEllipsoid(*a, *b, *f)
	case a != nil && b != nil:
		return geo.EllipsoidFromAxes(*a, *b)
	case a != nil && f != nil:
		return geo.EllipsoidFromFlattening(*a, *f)
	case b != nil && f != nil:
		if math.IsNaN(*f) || *f < 0 || *f >= 1 {
			return geo.Ellipsoid{}, xerrors.ErrInvalidEllipsoid.Detailf("flattening %v must be within [0, 1)", *f)
		}
		return geo.EllipsoidFromAxes(*b/(1-*f), *b)
	case a != nil:
		return geo.EllipsoidFromFlattening(*a, def.F)
	case b != nil:
		return geo.EllipsoidFromAxes(*b/(1-def.F), *b)
	case f != nil:
		return geo.EllipsoidFromFlattening(def.A, *f)
	default:
		return def, nil
	}
}

// Ellipsoid 返回参考椭球。
func (s *Settings) Ellipsoid() geo.Ellipsoid { return s.ellipsoid }

// EllipseA 返回长半轴。
func (s *Settings) EllipseA() float64 { return s.ellipsoid.A }

// EllipseB 返回短半轴。
func (s *Settings) EllipseB() float64 { return s.ellipsoid.B }

// EllipseF 返回扁率。
func (s *Settings) EllipseF() float64 { return s.ellipsoid.F }

// SphericalRadius 返回球半径。
func (s *Settings) SphericalRadius() float64 { return s.sphericalRadius }

// Eps 返回分母保护阈值。
func (s *Settings) Eps() float64 { return s.eps }

// Tolerance 返回收敛阈值。
func (s *Settings) Tolerance() float64 { return s.tolerance }

// MaxIterations 返回迭代上限。
func (s *Settings) MaxIterations() int { return s.maxIterations }

// Workers 返回配置的 worker 数量（0 表示自动）。
func (s *Settings) Workers() int { return s.workers }

// SerialThreshold 返回串行阈值。
func (s *Settings) SerialThreshold() int { return s.serialThreshold }

// EffectiveWorkers 返回实际使用的 worker 数量。
func (s *Settings) EffectiveWorkers() int {
	if s.workers > 0 {
		return s.workers
	}
	return max(runtime.NumCPU(), 1)
}

// With 在当前参数基础上应用额外选项，返回新的 Settings。
func (s *Settings) With(opts ...Option) (*Settings, error) {
	base := []Option{
		WithEllipsoid(s.ellipsoid),
		WithSphericalRadius(s.sphericalRadius),
		WithEps(s.eps),
		WithTolerance(s.tolerance),
		WithMaxIterations(s.maxIterations),
		WithWorkers(s.workers),
		WithSerialThreshold(s.serialThreshold),
	}
	return NewSettings(append(base, opts...)...)
}

// String 返回参数的单行表示，也作为缓存指纹使用。
func (s *Settings) String() string {
	params := []string{
		fmt.Sprintf("spherical_radius=%v", s.sphericalRadius),
		fmt.Sprintf("ellipse_a=%v", s.ellipsoid.A),
		fmt.Sprintf("ellipse_b=%v", s.ellipsoid.B),
		fmt.Sprintf("ellipse_f=%v", s.ellipsoid.F),
		fmt.Sprintf("tolerance=%v", s.tolerance),
		fmt.Sprintf("max_iterations=%d", s.maxIterations),
		fmt.Sprintf("eps=%v", s.eps),
		fmt.Sprintf("serial_threshold=%d", s.serialThreshold),
		fmt.Sprintf("workers=%d", s.workers),
	}
	return "CalculationSettings(" + strings.Join(params, ", ") + ")"
}
