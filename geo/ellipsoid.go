package geo

import (
	"math"

	"github.com/wyfcoding/geodist/xerrors"
)

// ellipsoidTolerance 是 (a, b, f) 三元组一致性校验允许的数值误差。
const ellipsoidTolerance = 1e-9

// Ellipsoid 描述参考椭球：长半轴 A、短半轴 B 与扁率 F = (A-B)/A。
// 三者可互相推导，构造函数保证不会出现不一致的组合。
type Ellipsoid struct {
	A float64
	B float64
	F float64
}

// WGS84 参考椭球（单位：千米）。
var WGS84 = Ellipsoid{
	A: 6378.137,
	B: 6356.752314245,
	F: 1 / 298.257223563,
}

// NewEllipsoid 校验完整的 (a, b, f) 三元组。
func NewEllipsoid(a, b, f float64) (Ellipsoid, error) {
	if err := checkAxes(a, b); err != nil {
		return Ellipsoid{}, err
	}
	derived := (a - b) / a
	if math.IsNaN(f) || math.Abs(f-derived) > ellipsoidTolerance {
		return Ellipsoid{}, xerrors.ErrInvalidEllipsoid.Detailf("f=%v but (a-b)/a=%v", f, derived)
	}
	return Ellipsoid{A: a, B: b, F: f}, nil
}

// EllipsoidFromAxes 由长短半轴推导扁率。
func EllipsoidFromAxes(a, b float64) (Ellipsoid, error) {
	if err := checkAxes(a, b); err != nil {
		return Ellipsoid{}, err
	}
	return Ellipsoid{A: a, B: b, F: (a - b) / a}, nil
}

// EllipsoidFromFlattening 由长半轴与扁率推导短半轴。
func EllipsoidFromFlattening(a, f float64) (Ellipsoid, error) {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return Ellipsoid{}, xerrors.ErrInvalidEllipsoid.Detailf("flattening %v must be within [0, 1)", f)
	}
	return EllipsoidFromAxes(a, a*(1-f))
}

// SecondEccentricitySquared 返回 e'² = (a²-b²)/b²。
func (e Ellipsoid) SecondEccentricitySquared() float64 {
	return (e.A*e.A - e.B*e.B) / (e.B * e.B)
}

func checkAxes(a, b float64) error {
	if !isPositiveFinite(a) || !isPositiveFinite(b) {
		return xerrors.ErrInvalidEllipsoid.Detailf("axes must be positive and finite, got a=%v b=%v", a, b)
	}
	if b > a {
		return xerrors.ErrInvalidEllipsoid.Detailf("semi-minor axis %v exceeds semi-major axis %v", b, a)
	}
	return nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
