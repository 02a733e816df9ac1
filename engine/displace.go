package engine

import (
	"context"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/worker"
	"github.com/wyfcoding/geodist/xerrors"
)

// Displace 从 p 沿 bearing（度，任意实数，按 [0, 360) 归一化）前进 dist 后的终点。
func (e *Engine) Displace(ctx context.Context, p geo.Point, bearing, dist float64) (*Displacement, error) {
	p, err := normalizePoint(p)
	if err != nil {
		return nil, err
	}

	var diag Diagnostics
	dest := e.direct(p, bearing, dist, &diag)
	diag = mergeAll(e.method, []Diagnostics{diag})
	e.warnNonConvergence(ctx, "displace", diag)

	return &Displacement{Points: []geo.Point{dest}, Diagnostics: diag}, nil
}

// DisplaceAll 对 x 中每个点使用相同的方位角与距离。
func (e *Engine) DisplaceAll(ctx context.Context, x *geo.CoordinateSet, bearing, dist float64) (*Displacement, error) {
	points, diag := e.displaceSet(x, func(int) (float64, float64) { return bearing, dist })
	e.warnNonConvergence(ctx, "displace_all", diag)
	return &Displacement{Points: points, Diagnostics: diag}, nil
}

// DisplaceEach 对 x 中第 i 个点使用 bearings[i] 与 dists[i]，三者长度必须一致。
func (e *Engine) DisplaceEach(ctx context.Context, x *geo.CoordinateSet, bearings, dists []float64) (*Displacement, error) {
	n := x.Len()
	if len(bearings) != n || len(dists) != n {
		return nil, xerrors.ErrShapeMismatch.Detailf("%d points, %d bearings, %d distances", n, len(bearings), len(dists))
	}

	points, diag := e.displaceSet(x, func(i int) (float64, float64) { return bearings[i], dists[i] })
	e.warnNonConvergence(ctx, "displace_each", diag)
	return &Displacement{Points: points, Diagnostics: diag}, nil
}

func (e *Engine) displaceSet(x *geo.CoordinateSet, vector func(i int) (float64, float64)) ([]geo.Point, Diagnostics) {
	points := make([]geo.Point, x.Len())
	ranges := e.vectorRanges(x.Len())
	parts := make([]Diagnostics, len(ranges))

	e.dispatcher.Run(ranges, func(idx int, r worker.Range) {
		for i := r.Start; i < r.End; i++ {
			bearing, dist := vector(i)
			points[i] = e.direct(x.At(i), bearing, dist, &parts[idx])
		}
	})
	return points, mergeAll(e.method, parts)
}

func (e *Engine) direct(p geo.Point, bearing, dist float64, diag *Diagnostics) geo.Point {
	lat, lon := p.Radians()
	d := e.solver.Direct(lat, lon, geo.ToRadians(geo.NormalizeBearing(bearing)), dist)
	diag.record(d.Iterations, d.Converged)
	return geo.Point{
		Lat: geo.ToDegrees(d.Lat),
		Lon: geo.NormalizeLongitude(geo.ToDegrees(d.Lon)),
	}
}
