package geodesic

import (
	"math"

	"github.com/wyfcoding/geodist/geo"
)

// HaversineSolver 球面模型求解器。
type HaversineSolver struct {
	radius float64
}

// NewHaversine 以给定球半径创建求解器。
func NewHaversine(radius float64) *HaversineSolver {
	return &HaversineSolver{radius: radius}
}

// Method 实现 Solver。
func (h *HaversineSolver) Method() Method { return Haversine }

// Inverse 计算大圆距离：2R·asin(√(sin²(Δφ/2) + cosφ1·cosφ2·sin²(Δλ/2)))。
func (h *HaversineSolver) Inverse(lat1, lon1, lat2, lon2 float64) Solution {
	sinDLat := math.Sin((lat2 - lat1) / 2)
	sinDLon := math.Sin((lon2 - lon1) / 2)
	a := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	// 舍入误差可能让 a 略大于 1。
	a = math.Min(a, 1)
	return Solution{
		Distance:  2 * h.radius * math.Asin(math.Sqrt(a)),
		Converged: true,
	}
}

// Direct 球面正解，终点经度规范化到 [0, 2π)。
func (h *HaversineSolver) Direct(lat, lon, bearing, dist float64) Destination {
	delta := dist / h.radius
	sinLat, cosLat := math.Sincos(lat)
	sinDelta, cosDelta := math.Sincos(delta)

	sinLat2 := sinLat*cosDelta + cosLat*sinDelta*math.Cos(bearing)
	sinLat2 = math.Max(-1, math.Min(1, sinLat2))
	lat2 := math.Asin(sinLat2)
	lon2 := lon + math.Atan2(math.Sin(bearing)*sinDelta*cosLat, cosDelta-sinLat*sinLat2)

	return Destination{
		Lat:       lat2,
		Lon:       geo.ToRadians(geo.NormalizeLongitude(geo.ToDegrees(lon2))),
		Converged: true,
	}
}
