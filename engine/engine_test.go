package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/geodesic"
	"github.com/wyfcoding/geodist/xerrors"
)

var methods = []geodesic.Method{geodesic.Haversine, geodesic.Vincenty}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, m geodesic.Method, opts ...geodesic.Option) *Engine {
	t.Helper()
	s, err := geodesic.NewSettings(opts...)
	require.NoError(t, err)
	e, err := New(m, s, WithLogger(quietLogger()))
	require.NoError(t, err)
	return e
}

func randomSet(t *testing.T, seed int64, n int) *geo.CoordinateSet {
	t.Helper()
	faker := gofakeit.New(seed)
	lats := make([]float64, n)
	lons := make([]float64, n)
	for i := range n {
		lats[i] = faker.Latitude()
		lons[i] = faker.Longitude()
	}
	set, err := geo.NewCoordinateSet(lats, lons)
	require.NoError(t, err)
	return set
}

func cloneSet(t *testing.T, s *geo.CoordinateSet) *geo.CoordinateSet {
	t.Helper()
	c, err := geo.NewCoordinateSet(s.Lats(), s.Lons())
	require.NoError(t, err)
	return c
}

func TestDistanceIdentityIsTransparent(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 1, 57)
	for _, m := range methods {
		e := newEngine(t, m, geodesic.WithWorkers(3))

		mirrored, err := e.Distance(ctx, x, nil)
		require.NoError(t, err)
		full, err := e.Distance(ctx, x, cloneSet(t, x))
		require.NoError(t, err)

		require.Equal(t, 57, mirrored.Rows)
		require.Equal(t, 57, mirrored.Cols)
		assert.Equal(t, full.Values, mirrored.Values, "%s", m)

		for i := range mirrored.Rows {
			assert.Equal(t, 0.0, mirrored.At(i, i))
			for j := range mirrored.Cols {
				assert.Equal(t, mirrored.At(i, j), mirrored.At(j, i))
			}
		}
		// 只计算上三角。
		assert.Equal(t, 57*56/2, mirrored.Diagnostics.Evaluations)
		assert.Equal(t, 57*57, full.Diagnostics.Evaluations)

		same, err := e.Distance(ctx, x, x)
		require.NoError(t, err)
		assert.Equal(t, mirrored.Values, same.Values)
	}
}

func TestDistanceSymmetricAcrossSets(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 2, 5)
	y := randomSet(t, 3, 17)
	for _, m := range methods {
		e := newEngine(t, m, geodesic.WithWorkers(4))
		xy, err := e.Distance(ctx, x, y)
		require.NoError(t, err)
		yx, err := e.Distance(ctx, y, x)
		require.NoError(t, err)

		require.Equal(t, 5, xy.Rows)
		require.Equal(t, 17, xy.Cols)
		for i := range xy.Rows {
			assert.Len(t, xy.Row(i), 17)
			for j := range xy.Cols {
				assert.Equal(t, xy.At(i, j), yx.At(j, i))
			}
		}
	}
}

func TestWorkerCountDoesNotChangeResults(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 4, 41)
	y := randomSet(t, 5, 23)
	p := geo.Point{Lat: 48.85, Lon: 2.35}

	for _, m := range methods {
		single := newEngine(t, m, geodesic.WithWorkers(1), geodesic.WithSerialThreshold(0))
		multi := newEngine(t, m, geodesic.WithWorkers(7), geodesic.WithSerialThreshold(0))

		for _, other := range []*geo.CoordinateSet{nil, y} {
			a, err := single.Distance(ctx, x, other)
			require.NoError(t, err)
			b, err := multi.Distance(ctx, x, other)
			require.NoError(t, err)
			assert.Equal(t, a.Values, b.Values)
			assert.Equal(t, 1, a.Diagnostics.Chunks)
			assert.Greater(t, b.Diagnostics.Chunks, 1)

			ia, err := single.IndicesWithinDistance(ctx, x, other, 5000)
			require.NoError(t, err)
			ib, err := multi.IndicesWithinDistance(ctx, x, other, 5000)
			require.NoError(t, err)
			assert.Equal(t, ia.Pairs, ib.Pairs)
		}

		va, err := single.DistanceFromPoint(ctx, x, p)
		require.NoError(t, err)
		vb, err := multi.DistanceFromPoint(ctx, x, p)
		require.NoError(t, err)
		assert.Equal(t, va.Values, vb.Values)
	}
}

func TestSerialThreshold(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 6, 100)
	p := geo.Point{Lat: 0, Lon: 0}

	serial := newEngine(t, geodesic.Haversine, geodesic.WithWorkers(4))
	v, err := serial.DistanceFromPoint(ctx, x, p)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Diagnostics.Chunks)

	parallel := newEngine(t, geodesic.Haversine, geodesic.WithWorkers(4), geodesic.WithSerialThreshold(50))
	w, err := parallel.DistanceFromPoint(ctx, x, p)
	require.NoError(t, err)
	assert.Equal(t, 4, w.Diagnostics.Chunks)
	assert.Equal(t, v.Values, w.Values)
}

func TestHalfCircumferenceThroughEngine(t *testing.T) {
	set, err := geo.FromPoints([]geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 180}})
	require.NoError(t, err)

	e := newEngine(t, geodesic.Haversine)
	m, err := e.Distance(context.Background(), set, nil)
	require.NoError(t, err)
	assert.InDelta(t, 20015.09, m.At(0, 1), 0.01)
	assert.Equal(t, m.At(0, 1), m.At(1, 0))
}

func TestThresholdAndIndicesAgree(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 7, 30)
	y := randomSet(t, 8, 11)
	p := geo.Point{Lat: 10, Lon: -20}
	thresholds := []float64{-1, 0, 2500, 8000, math.Inf(1)}

	for _, m := range methods {
		e := newEngine(t, m, geodesic.WithWorkers(3), geodesic.WithSerialThreshold(0))
		for _, th := range thresholds {
			for _, pair := range [][2]*geo.CoordinateSet{{x, nil}, {x, y}, {y, x}} {
				within, err := e.WithinDistance(ctx, pair[0], pair[1], th)
				require.NoError(t, err)
				idx, err := e.IndicesWithinDistance(ctx, pair[0], pair[1], th)
				require.NoError(t, err)

				var want []IndexPair
				for i := range within.Rows {
					for j := range within.Cols {
						if within.At(i, j) {
							want = append(want, IndexPair{Row: i, Col: j})
						}
					}
				}
				if want == nil {
					want = []IndexPair{}
				}
				assert.Equal(t, want, idx.Pairs, "%s threshold=%v", m, th)
			}

			wv, err := e.WithinDistanceFromPoint(ctx, x, p, th)
			require.NoError(t, err)
			iv, err := e.IndicesWithinDistanceOfPoint(ctx, x, p, th)
			require.NoError(t, err)
			want := []int{}
			for i, ok := range wv.Values {
				if ok {
					want = append(want, i)
				}
			}
			assert.Equal(t, want, iv.Values)
		}
	}
}

func TestZeroThresholdMatchesOnlyCoincidentPoints(t *testing.T) {
	ctx := context.Background()
	set, err := geo.NewCoordinateSet([]float64{10, 20, 10}, []float64{30, 40, 390})
	require.NoError(t, err)

	for _, m := range methods {
		e := newEngine(t, m)
		idx, err := e.IndicesWithinDistance(ctx, set, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []IndexPair{
			{0, 0}, {0, 2},
			{1, 1},
			{2, 0}, {2, 2},
		}, idx.Pairs)

		within, err := e.WithinDistanceFromPoint(ctx, set, geo.Point{Lat: 20, Lon: 40}, 0)
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, false}, within.Values)
	}
}

func TestEmptyInputs(t *testing.T) {
	ctx := context.Background()
	empty, err := geo.NewCoordinateSet(nil, nil)
	require.NoError(t, err)
	x := randomSet(t, 9, 4)
	e := newEngine(t, geodesic.Vincenty)

	m, err := e.Distance(ctx, empty, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows)
	assert.Empty(t, m.Values)

	rect, err := e.Distance(ctx, x, empty)
	require.NoError(t, err)
	assert.Equal(t, 4, rect.Rows)
	assert.Equal(t, 0, rect.Cols)
	assert.Empty(t, rect.Values)

	v, err := e.DistanceFromPoint(ctx, empty, geo.Point{})
	require.NoError(t, err)
	assert.Empty(t, v.Values)

	w, err := e.WithinDistance(ctx, empty, x, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Rows)
	assert.Equal(t, 4, w.Cols)

	idx, err := e.IndicesWithinDistance(ctx, empty, nil, 10)
	require.NoError(t, err)
	assert.NotNil(t, idx.Pairs)
	assert.Empty(t, idx.Pairs)

	pi, err := e.IndicesWithinDistanceOfPoint(ctx, empty, geo.Point{}, 10)
	require.NoError(t, err)
	assert.Empty(t, pi.Values)

	d, err := e.DisplaceAll(ctx, empty, 90, 10)
	require.NoError(t, err)
	assert.Empty(t, d.Points)
	assert.True(t, d.Diagnostics.Converged())
}

func TestInvalidInputs(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 10, 3)
	e := newEngine(t, geodesic.Haversine)

	_, err := e.WithinDistance(ctx, x, nil, math.NaN())
	assert.True(t, errors.Is(err, xerrors.ErrInvalidThreshold))
	_, err = e.IndicesWithinDistanceOfPoint(ctx, x, geo.Point{}, math.NaN())
	assert.True(t, errors.Is(err, xerrors.ErrInvalidThreshold))

	_, err = e.DistanceFromPoint(ctx, x, geo.Point{Lat: 91})
	assert.True(t, errors.Is(err, xerrors.ErrInvalidCoordinate))

	_, err = e.DisplaceEach(ctx, x, []float64{1, 2}, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, xerrors.ErrShapeMismatch))

	_, err = New(geodesic.Method(42), nil)
	assert.True(t, errors.Is(err, xerrors.ErrUnknownMethod))
}

func TestNonConvergenceIsObservable(t *testing.T) {
	ctx := context.Background()
	set, err := geo.FromPoints([]geo.Point{{Lat: 10, Lon: 20}, {Lat: 40, Lon: 80}, {Lat: -30, Lon: 150}})
	require.NoError(t, err)

	e := newEngine(t, geodesic.Vincenty, geodesic.WithMaxIterations(0))
	m, err := e.Distance(ctx, set, nil)
	require.NoError(t, err)
	assert.False(t, m.Diagnostics.Converged())
	assert.Equal(t, 3, m.Diagnostics.NonConverged)
	assert.Equal(t, 0, m.Diagnostics.MaxIterationsUsed)
	assert.True(t, errors.Is(m.Diagnostics.Err(), xerrors.ErrNonConvergence))
	for _, v := range m.Values {
		assert.False(t, math.IsNaN(v))
	}

	ok := newEngine(t, geodesic.Vincenty)
	m, err = ok.Distance(ctx, set, nil)
	require.NoError(t, err)
	assert.True(t, m.Diagnostics.Converged())
	assert.NoError(t, m.Diagnostics.Err())
	assert.Positive(t, m.Diagnostics.MaxIterationsUsed)
	assert.Equal(t, "vincenty", m.Diagnostics.Method)
}

func TestNaNCoordinatesPropagate(t *testing.T) {
	ctx := context.Background()
	set, err := geo.NewCoordinateSet([]float64{math.NaN(), 10}, []float64{0, 10})
	require.NoError(t, err)

	for _, m := range methods {
		e := newEngine(t, m)
		mirrored, err := e.Distance(ctx, set, nil)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(mirrored.At(0, 0)))
		assert.True(t, math.IsNaN(mirrored.At(0, 1)))
		assert.Equal(t, 0.0, mirrored.At(1, 1))

		w, err := e.WithinDistance(ctx, set, nil, math.Inf(1))
		require.NoError(t, err)
		assert.Equal(t, []bool{false, false, false, true}, w.Values)
	}
}

func TestDisplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	origin := geo.Point{Lat: -33.86, Lon: 151.21}

	for _, m := range methods {
		e := newEngine(t, m)
		for _, bearing := range []float64{-90, 0, 33.3, 180, 725} {
			d, err := e.Displace(ctx, origin, bearing, 1234.5)
			require.NoError(t, err)
			dest := d.Point()
			assert.GreaterOrEqual(t, dest.Lon, 0.0)
			assert.Less(t, dest.Lon, 360.0)

			back, err := e.DistanceFromPoint(ctx, mustSet(t, dest), origin)
			require.NoError(t, err)
			assert.InDelta(t, 1234.5, back.Values[0], 1e-6, "%s bearing=%v", m, bearing)
		}
	}
}

func TestDisplaceAllAndEach(t *testing.T) {
	ctx := context.Background()
	x := randomSet(t, 12, 9)
	e := newEngine(t, geodesic.Vincenty, geodesic.WithWorkers(2), geodesic.WithSerialThreshold(0))

	all, err := e.DisplaceAll(ctx, x, 45, 100)
	require.NoError(t, err)
	require.Len(t, all.Points, 9)
	assert.Equal(t, 9, all.Diagnostics.Evaluations)

	bearings := make([]float64, 9)
	dists := make([]float64, 9)
	for i := range bearings {
		bearings[i] = 45
		dists[i] = 100
	}
	each, err := e.DisplaceEach(ctx, x, bearings, dists)
	require.NoError(t, err)
	assert.Equal(t, all.Points, each.Points)

	for i, p := range x.Points() {
		single, err := e.Displace(ctx, p, 45, 100)
		require.NoError(t, err)
		assert.Equal(t, single.Point(), all.Points[i])
	}
}

func TestExplain(t *testing.T) {
	e := newEngine(t, geodesic.Vincenty, geodesic.WithTolerance(1e-9))
	report := e.Explain(context.Background())
	v, ok := report.Get("tolerance")
	require.True(t, ok)
	assert.Equal(t, "1e-09", v)
	assert.Equal(t, geodesic.Vincenty, e.Method())
	assert.Equal(t, 1e-9, e.Settings().Tolerance())
}

func mustSet(t *testing.T, points ...geo.Point) *geo.CoordinateSet {
	t.Helper()
	s, err := geo.FromPoints(points)
	require.NoError(t, err)
	return s
}
