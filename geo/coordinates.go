package geo

import (
	"github.com/wyfcoding/geodist/xerrors"
)

// CoordinateSet 是一组只读的坐标点，按列存储（structure of arrays）。
// 构造时即完成经度规范化与弧度预计算，批量计算时各 worker 只读共享。
type CoordinateSet struct {
	lat    []float64
	lon    []float64
	latRad []float64
	lonRad []float64
}

// NewCoordinateSet 由两个等长的纬度、经度切片构造点集。
// 输入切片会被复制，调用方之后的修改不影响点集。
func NewCoordinateSet(lats, lons []float64) (*CoordinateSet, error) {
	if len(lats) != len(lons) {
		return nil, xerrors.ErrShapeMismatch.Detailf("latitudes has %d elements, longitudes has %d", len(lats), len(lons))
	}

	n := len(lats)
	s := &CoordinateSet{
		lat:    make([]float64, n),
		lon:    make([]float64, n),
		latRad: make([]float64, n),
		lonRad: make([]float64, n),
	}
	for idx := range n {
		if err := checkLatitude(lats[idx]); err != nil {
			return nil, xerrors.Wrap(err, xerrors.ErrInvalidArg, "invalid coordinate set").WithContext("index", idx)
		}
		s.lat[idx] = lats[idx]
		s.lon[idx] = NormalizeLongitude(lons[idx])
		s.latRad[idx] = ToRadians(s.lat[idx])
		s.lonRad[idx] = ToRadians(s.lon[idx])
	}
	return s, nil
}

// FromPoints 由点切片构造点集。
func FromPoints(points []Point) (*CoordinateSet, error) {
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for idx, p := range points {
		lats[idx] = p.Lat
		lons[idx] = p.Lon
	}
	return NewCoordinateSet(lats, lons)
}

// Len 返回点的数量。nil 点集视为空集。
func (s *CoordinateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.lat)
}

// At 返回第 idx 个点（度）。
func (s *CoordinateSet) At(idx int) Point {
	return Point{Lat: s.lat[idx], Lon: s.lon[idx]}
}

// RadiansAt 返回第 idx 个点的弧度坐标。
func (s *CoordinateSet) RadiansAt(idx int) (float64, float64) {
	return s.latRad[idx], s.lonRad[idx]
}

// Lats 返回纬度的副本。
func (s *CoordinateSet) Lats() []float64 {
	return append([]float64(nil), s.lat...)
}

// Lons 返回规范化后经度的副本。
func (s *CoordinateSet) Lons() []float64 {
	return append([]float64(nil), s.lon...)
}

// Points 以点切片形式返回全部坐标。
func (s *CoordinateSet) Points() []Point {
	out := make([]Point, s.Len())
	for idx := range out {
		out[idx] = s.At(idx)
	}
	return out
}
