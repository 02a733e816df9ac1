// Package geo 提供了地理坐标的基础几何工具。
// 包括角度与弧度换算、方位角归一化、坐标点集合以及参考椭球模型。
package geo

import "math"

const (
	degToRadFactor = math.Pi / 180.0
	radToDegFactor = 180.0 / math.Pi
	fullTurn       = 360.0
)

// ToRadians 将角度转换为弧度。
func ToRadians(deg float64) float64 {
	return deg * degToRadFactor
}

// ToDegrees 将弧度转换为角度。
func ToDegrees(rad float64) float64 {
	return rad * radToDegFactor
}

// NormalizeBearing 将任意实数角度映射到 [0, 360)。
// 负数按模运算回绕（-90 -> 270），而不是截断；非有限值原样返回 NaN。
func NormalizeBearing(deg float64) float64 {
	r := math.Mod(deg, fullTurn)
	if r < 0 {
		r += fullTurn
	}
	// 极小的负数加 360 后会被舍入为 360。
	if r >= fullTurn {
		r = 0
	}
	return r
}

// NormalizeLongitude 将经度映射到规范区间 [0, 360)。
func NormalizeLongitude(deg float64) float64 {
	return NormalizeBearing(deg)
}

// WrapPi 将弧度差映射到 [-π, π]。
func WrapPi(rad float64) float64 {
	if rad >= -math.Pi && rad <= math.Pi {
		return rad
	}
	r := math.Mod(rad+math.Pi, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}
