package engine

import (
	"context"

	"github.com/wyfcoding/geodist/geo"
)

// Distance 计算 x 与 y 两两之间的距离矩阵（Rows = x.Len(), Cols = y.Len()）。
// y 为 nil 或与 x 为同一点集时走对称路径。
func (e *Engine) Distance(ctx context.Context, x, y *geo.CoordinateSet) (*DistanceMatrix, error) {
	other := y
	if other == nil {
		other = x
	}
	rows, cols := x.Len(), other.Len()
	values := make([]float64, rows*cols)

	diag := e.evalMatrix(x, y, func(i, j int, d float64) {
		values[i*cols+j] = d
	})
	e.warnNonConvergence(ctx, "distance", diag)

	return &DistanceMatrix{
		Rows:        rows,
		Cols:        cols,
		Values:      values,
		Diagnostics: diag,
	}, nil
}

// DistanceFromPoint 计算 p 到 x 中每个点的距离。
func (e *Engine) DistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point) (*DistanceVector, error) {
	p, err := normalizePoint(p)
	if err != nil {
		return nil, err
	}

	values := make([]float64, x.Len())
	diag := e.evalVector(x, p, func(i int, d float64) {
		values[i] = d
	})
	e.warnNonConvergence(ctx, "distance_from_point", diag)

	return &DistanceVector{Values: values, Diagnostics: diag}, nil
}
