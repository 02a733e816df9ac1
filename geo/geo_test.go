package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/geodist/xerrors"
)

func TestNormalizeBearing(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{90, 90},
		{360, 0},
		{-90, 270},
		{-360, 0},
		{725, 5},
		{-725, 355},
		{359.5, 359.5},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, NormalizeBearing(tc.in), 1e-12, "bearing %v", tc.in)
	}

	got := NormalizeBearing(-1e-20)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, 360.0)
	assert.True(t, math.IsNaN(NormalizeBearing(math.NaN())))
}

func TestWrapPi(t *testing.T) {
	assert.InDelta(t, 0.5, WrapPi(0.5), 1e-15)
	assert.InDelta(t, -math.Pi/2, WrapPi(3*math.Pi/2), 1e-12)
	assert.InDelta(t, math.Pi/2, WrapPi(-3*math.Pi/2), 1e-12)
	assert.InDelta(t, 0.0, WrapPi(2*math.Pi), 1e-12)
}

func TestRadiansRoundTrip(t *testing.T) {
	assert.InDelta(t, math.Pi, ToRadians(180), 1e-15)
	assert.InDelta(t, 57.29577951308232, ToDegrees(1), 1e-12)
	assert.InDelta(t, 123.456, ToDegrees(ToRadians(123.456)), 1e-12)
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(10, -10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.Lat)
	assert.Equal(t, 350.0, p.Lon)

	_, err = NewPoint(90.5, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidCoordinate))

	p, err = NewPoint(math.NaN(), 0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(p.Lat))
}

func TestNewCoordinateSet(t *testing.T) {
	lats := []float64{0, 45, -45}
	lons := []float64{-180, 190, 10}

	s, err := NewCoordinateSet(lats, lons)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{180, 190, 10}, s.Lons())

	// 点集不受外部切片修改影响。
	lats[0] = 89
	assert.Equal(t, 0.0, s.At(0).Lat)

	latR, lonR := s.RadiansAt(1)
	assert.InDelta(t, math.Pi/4, latR, 1e-15)
	assert.InDelta(t, ToRadians(190), lonR, 1e-15)

	_, err = NewCoordinateSet([]float64{1, 2}, []float64{1})
	assert.True(t, errors.Is(err, xerrors.ErrShapeMismatch))

	_, err = NewCoordinateSet([]float64{1, -91}, []float64{1, 1})
	assert.True(t, errors.Is(err, xerrors.ErrInvalidCoordinate))

	empty, err := NewCoordinateSet(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	var nilSet *CoordinateSet
	assert.Equal(t, 0, nilSet.Len())
}

func TestFromPoints(t *testing.T) {
	s, err := FromPoints([]Point{{Lat: 1, Lon: 2}, {Lat: 3, Lon: -4}})
	require.NoError(t, err)
	assert.Equal(t, []Point{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 356}}, s.Points())
}

func TestEllipsoid(t *testing.T) {
	e, err := NewEllipsoid(WGS84.A, WGS84.B, WGS84.F)
	require.NoError(t, err)
	assert.Equal(t, WGS84, e)

	_, err = NewEllipsoid(WGS84.A, WGS84.B, 1/300.0)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidEllipsoid))

	_, err = NewEllipsoid(-1, -2, 0)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidEllipsoid))

	_, err = EllipsoidFromAxes(6000, 6100)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidEllipsoid))

	fromAxes, err := EllipsoidFromAxes(WGS84.A, WGS84.B)
	require.NoError(t, err)
	assert.InDelta(t, WGS84.F, fromAxes.F, 1e-12)

	fromF, err := EllipsoidFromFlattening(WGS84.A, WGS84.F)
	require.NoError(t, err)
	assert.InDelta(t, WGS84.B, fromF.B, 1e-6)

	_, err = EllipsoidFromFlattening(WGS84.A, 1)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidEllipsoid))

	sphere, err := EllipsoidFromAxes(6371, 6371)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sphere.F)
	assert.Equal(t, 0.0, sphere.SecondEccentricitySquared())
}
