package geo

import (
	"math"

	"github.com/wyfcoding/geodist/xerrors"
)

// Point 表示一个地理经纬度坐标点（单位：度）。
type Point struct {
	Lat float64 // 纬度，[-90, 90]
	Lon float64 // 经度，规范化到 [0, 360)
}

// NewPoint 校验纬度并规范化经度。
// 非有限值不会报错，而是在后续计算中传播为 NaN。
func NewPoint(lat, lon float64) (Point, error) {
	if err := checkLatitude(lat); err != nil {
		return Point{}, err
	}
	return Point{Lat: lat, Lon: NormalizeLongitude(lon)}, nil
}

// Radians 返回弧度形式的 (lat, lon)。
func (p Point) Radians() (float64, float64) {
	return ToRadians(p.Lat), ToRadians(p.Lon)
}

func checkLatitude(lat float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return nil
	}
	if lat < -90 || lat > 90 {
		return xerrors.ErrInvalidCoordinate.Detailf("latitude %v is outside [-90, 90]", lat)
	}
	return nil
}
