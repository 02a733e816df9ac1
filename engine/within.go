package engine

import (
	"context"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/worker"
)

// WithinDistance 判定两两距离是否不超过 threshold（含等于）。
// 非有限距离恒为 false；阈值为 0 时只有重合点命中。
func (e *Engine) WithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*WithinMatrix, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	other := y
	if other == nil {
		other = x
	}
	rows, cols := x.Len(), other.Len()
	values := make([]bool, rows*cols)

	diag := e.evalMatrix(x, y, func(i, j int, d float64) {
		values[i*cols+j] = d <= threshold
	})
	e.warnNonConvergence(ctx, "within_distance", diag)

	return &WithinMatrix{
		Rows:        rows,
		Cols:        cols,
		Values:      values,
		Diagnostics: diag,
	}, nil
}

// WithinDistanceFromPoint 判定 p 到 x 中每个点的距离是否不超过 threshold。
func (e *Engine) WithinDistanceFromPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*WithinVector, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	p, err := normalizePoint(p)
	if err != nil {
		return nil, err
	}

	values := make([]bool, x.Len())
	diag := e.evalVector(x, p, func(i int, d float64) {
		values[i] = d <= threshold
	})
	e.warnNonConvergence(ctx, "within_distance_from_point", diag)

	return &WithinVector{Values: values, Diagnostics: diag}, nil
}

// IndicesWithinDistance 返回 WithinDistance 结果中全部为 true 的位置，按行优先顺序排列。
// 不分配稠密矩阵，适合命中稀疏的场景。
func (e *Engine) IndicesWithinDistance(ctx context.Context, x, y *geo.CoordinateSet, threshold float64) (*IndexPairs, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}

	var (
		pairs []IndexPair
		diag  Diagnostics
	)
	if isIdentity(x, y) {
		pairs, diag = e.symmetricHits(x, threshold)
	} else {
		pairs, diag = e.rectHits(x, y, threshold)
	}
	e.warnNonConvergence(ctx, "indices_within_distance", diag)

	return &IndexPairs{Pairs: pairs, Diagnostics: diag}, nil
}

// IndicesWithinDistanceOfPoint 返回距 p 不超过 threshold 的点下标（升序）。
func (e *Engine) IndicesWithinDistanceOfPoint(ctx context.Context, x *geo.CoordinateSet, p geo.Point, threshold float64) (*Indices, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	p, err := normalizePoint(p)
	if err != nil {
		return nil, err
	}

	ranges := e.vectorRanges(x.Len())
	hits := make([][]int, len(ranges))
	parts := make([]Diagnostics, len(ranges))
	lat1, lon1 := p.Radians()

	e.dispatcher.Run(ranges, func(idx int, r worker.Range) {
		diag := &parts[idx]
		for j := r.Start; j < r.End; j++ {
			lat2, lon2 := x.RadiansAt(j)
			s := e.solver.Inverse(lat1, lon1, lat2, lon2)
			diag.record(s.Iterations, s.Converged)
			if s.Distance <= threshold {
				hits[idx] = append(hits[idx], j)
			}
		}
	})

	values := make([]int, 0)
	for _, h := range hits {
		values = append(values, h...)
	}
	diag := mergeAll(e.method, parts)
	e.warnNonConvergence(ctx, "indices_within_distance_of_point", diag)

	return &Indices{Values: values, Diagnostics: diag}, nil
}

// symmetricHits 只对上三角求解，再按行拼出 (下三角镜像, 对角线, 上三角)。
func (e *Engine) symmetricHits(x *geo.CoordinateSet, threshold float64) ([]IndexPair, Diagnostics) {
	n := x.Len()
	upper := make([][]int, n)
	ranges := e.dispatcher.PartitionTriangular(n)
	parts := make([]Diagnostics, len(ranges))

	e.dispatcher.Run(ranges, func(idx int, r worker.Range) {
		diag := &parts[idx]
		for i := r.Start; i < r.End; i++ {
			lat1, lon1 := x.RadiansAt(i)
			for j := i + 1; j < n; j++ {
				lat2, lon2 := x.RadiansAt(j)
				s := e.solver.Inverse(lat1, lon1, lat2, lon2)
				diag.record(s.Iterations, s.Converged)
				if s.Distance <= threshold {
					upper[i] = append(upper[i], j)
				}
			}
		}
	})

	// 按 i 升序遍历，lower[j] 天然有序。
	lower := make([][]int, n)
	for i, cols := range upper {
		for _, j := range cols {
			lower[j] = append(lower[j], i)
		}
	}

	pairs := make([]IndexPair, 0)
	for row := range n {
		for _, col := range lower[row] {
			pairs = append(pairs, IndexPair{Row: row, Col: col})
		}
		lat, lon := x.RadiansAt(row)
		if selfDistance(lat, lon) <= threshold {
			pairs = append(pairs, IndexPair{Row: row, Col: row})
		}
		for _, col := range upper[row] {
			pairs = append(pairs, IndexPair{Row: row, Col: col})
		}
	}
	return pairs, mergeAll(e.method, parts)
}

// rectHits 沿较长的一维切分。按行切分时各块结果直接拼接；
// 按列切分时每块内部为行优先，需要按行归并。
func (e *Engine) rectHits(x, y *geo.CoordinateSet, threshold float64) ([]IndexPair, Diagnostics) {
	rows, cols := x.Len(), y.Len()
	byRows := rows >= cols

	var ranges []worker.Range
	if byRows {
		ranges = e.dispatcher.Partition(rows)
	} else {
		ranges = e.dispatcher.Partition(cols)
	}
	hits := make([][]IndexPair, len(ranges))
	parts := make([]Diagnostics, len(ranges))

	e.dispatcher.Run(ranges, func(idx int, r worker.Range) {
		rowStart, rowEnd, colStart, colEnd := 0, rows, 0, cols
		if byRows {
			rowStart, rowEnd = r.Start, r.End
		} else {
			colStart, colEnd = r.Start, r.End
		}

		diag := &parts[idx]
		for i := rowStart; i < rowEnd; i++ {
			lat1, lon1 := x.RadiansAt(i)
			for j := colStart; j < colEnd; j++ {
				lat2, lon2 := y.RadiansAt(j)
				s := e.solver.Inverse(lat1, lon1, lat2, lon2)
				diag.record(s.Iterations, s.Converged)
				if s.Distance <= threshold {
					hits[idx] = append(hits[idx], IndexPair{Row: i, Col: j})
				}
			}
		}
	})

	pairs := make([]IndexPair, 0)
	if byRows {
		for _, h := range hits {
			pairs = append(pairs, h...)
		}
		return pairs, mergeAll(e.method, parts)
	}

	cursor := make([]int, len(hits))
	for row := range rows {
		for c, h := range hits {
			for cursor[c] < len(h) && h[cursor[c]].Row == row {
				pairs = append(pairs, h[cursor[c]])
				cursor[c]++
			}
		}
	}
	return pairs, mergeAll(e.method, parts)
}
