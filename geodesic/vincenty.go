package geodesic

import (
	"math"

	"github.com/wyfcoding/geodist/geo"
)

// VincentySolver 椭球模型迭代求解器。
// 参数在构造时从 Settings 快照，之后只读。
type VincentySolver struct {
	b, f          float64
	ePrimeSq      float64 // 第二偏心率平方 e'²
	eps           float64
	tolerance     float64
	maxIterations int
}

// NewVincenty 基于 Settings 创建求解器。
func NewVincenty(s *Settings) *VincentySolver {
	e := s.Ellipsoid()
	return &VincentySolver{
		b:             e.B,
		f:             e.F,
		ePrimeSq:      e.SecondEccentricitySquared(),
		eps:           s.Eps(),
		tolerance:     s.Tolerance(),
		maxIterations: s.MaxIterations(),
	}
}

// Method 实现 Solver。
func (v *VincentySolver) Method() Method { return Vincenty }

// Inverse 迭代求解两点间的椭球测地线长度。
//
// 收敛条件为相邻两次 λ 的差值小于 tolerance；达到 maxIterations 仍未收敛时返回最后一次的估计值，
// 并将 Converged 置为 false。sinσ 小于 eps 时视为退化情形：
// 重合点返回 0，对跖点返回半条子午线长度 π·b·A(e'²)。
func (v *VincentySolver) Inverse(lat1, lon1, lat2, lon2 float64) Solution {
	// 规范化点对顺序，保证 d(p, q) 与 d(q, p) 逐位相等。
	if lat1 > lat2 || (lat1 == lat2 && lon1 > lon2) {
		lat1, lon1, lat2, lon2 = lat2, lon2, lat1, lon1
	}
	if math.IsNaN(lat1) || math.IsNaN(lon1) || math.IsNaN(lat2) || math.IsNaN(lon2) {
		return Solution{Distance: math.NaN(), Converged: true}
	}

	L := geo.WrapPi(lon2 - lon1)
	if lat1 == lat2 && L == 0 {
		return Solution{Distance: 0, Converged: true}
	}

	sinU1, cosU1 := v.reducedLatitude(lat1)
	sinU2, cosU2 := v.reducedLatitude(lat2)

	var (
		lambda     = L
		sinSigma   float64
		cosSigma   float64
		sigma      float64
		cosSqAlpha float64
		cos2SigmaM float64
		iterations int
		converged  bool
	)
	for {
		sinLambda, cosLambda := math.Sincos(lambda)
		t1 := cosU2 * sinLambda
		t2 := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(t1*t1 + t2*t2)
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda

		if sinSigma < v.eps {
			if cosSigma > 0 {
				return Solution{Distance: 0, Iterations: iterations, Converged: true}
			}
			return Solution{Distance: v.halfMeridian(), Iterations: iterations, Converged: true}
		}

		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		// 赤道线上 cos²α 为 0。
		if math.Abs(cosSqAlpha) > v.eps {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			cos2SigmaM = 0
		}

		c := v.f / 16 * cosSqAlpha * (4 + v.f*(4-3*cosSqAlpha))
		next := L + (1-c)*v.f*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(next-lambda) < v.tolerance {
			converged = true
			break
		}
		if iterations >= v.maxIterations {
			break
		}
		lambda = next
		iterations++
	}

	uSq := cosSqAlpha * v.ePrimeSq
	bigA, bigB := seriesCoefficients(uSq)
	dSigma := deltaSigma(bigB, sinSigma, cosSigma, cos2SigmaM)

	return Solution{
		Distance:   v.b * bigA * (sigma - dSigma),
		Iterations: iterations,
		Converged:  converged,
	}
}

// Direct 迭代求解椭球正解问题，终点经度规范化到 [0, 2π)。
func (v *VincentySolver) Direct(lat, lon, bearing, dist float64) Destination {
	sinAlpha1, cosAlpha1 := math.Sincos(bearing)
	sinU1, cosU1 := v.reducedLatitude(lat)
	tanU1 := (1 - v.f) * math.Tan(lat)

	sigma1 := math.Atan2(tanU1, cosAlpha1)
	sinAlpha := cosU1 * sinAlpha1
	cosSqAlpha := 1 - sinAlpha*sinAlpha
	uSq := cosSqAlpha * v.ePrimeSq
	bigA, bigB := seriesCoefficients(uSq)

	base := dist / (v.b * bigA)
	var (
		sigma      = base
		sinSigma   float64
		cosSigma   float64
		cos2SigmaM float64
		iterations int
		converged  bool
	)
	for {
		cos2SigmaM = math.Cos(2*sigma1 + sigma)
		sinSigma, cosSigma = math.Sincos(sigma)

		next := base + deltaSigma(bigB, sinSigma, cosSigma, cos2SigmaM)
		if math.Abs(next-sigma) < v.tolerance {
			converged = true
			break
		}
		if iterations >= v.maxIterations {
			break
		}
		sigma = next
		iterations++
	}

	x := sinU1*sinSigma - cosU1*cosSigma*cosAlpha1
	lat2 := math.Atan2(
		sinU1*cosSigma+cosU1*sinSigma*cosAlpha1,
		(1-v.f)*math.Sqrt(sinAlpha*sinAlpha+x*x),
	)
	lambda := math.Atan2(sinSigma*sinAlpha1, cosU1*cosSigma-sinU1*sinSigma*cosAlpha1)
	c := v.f / 16 * cosSqAlpha * (4 + v.f*(4-3*cosSqAlpha))
	L := lambda - (1-c)*v.f*sinAlpha*
		(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

	return Destination{
		Lat:        lat2,
		Lon:        geo.ToRadians(geo.NormalizeLongitude(geo.ToDegrees(lon + L))),
		Iterations: iterations,
		Converged:  converged,
	}
}

// reducedLatitude 返回归化纬度 U 的 (sin, cos)，tanU = (1-f)·tanφ。
func (v *VincentySolver) reducedLatitude(lat float64) (float64, float64) {
	tanU := (1 - v.f) * math.Tan(lat)
	cosU := 1 / math.Sqrt(1+tanU*tanU)
	return tanU * cosU, cosU
}

// halfMeridian 对跖点退化情形的距离：沿子午线走半圈。
func (v *VincentySolver) halfMeridian() float64 {
	bigA, _ := seriesCoefficients(v.ePrimeSq)
	return math.Pi * v.b * bigA
}

func seriesCoefficients(uSq float64) (float64, float64) {
	bigA := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	bigB := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	return bigA, bigB
}

func deltaSigma(bigB, sinSigma, cosSigma, cos2SigmaM float64) float64 {
	c2 := cos2SigmaM * cos2SigmaM
	return bigB * sinSigma * (cos2SigmaM + bigB/4*(cosSigma*(-1+2*c2)-
		bigB/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*c2)))
}
