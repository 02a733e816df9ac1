package engine

import (
	"math"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/worker"
)

// cellFunc 接收矩阵元素 (i, j) 的距离。不同块以不相交的 (i, j) 并发调用。
type cellFunc func(i, j int, d float64)

// elemFunc 接收向量元素 i 的距离。
type elemFunc func(i int, d float64)

// evalMatrix 计算 x 与 y 之间的全部距离。
func (e *Engine) evalMatrix(x, y *geo.CoordinateSet, cell cellFunc) Diagnostics {
	if isIdentity(x, y) {
		return e.evalSymmetric(x, cell)
	}
	return e.evalRect(x, y, cell)
}

// evalSymmetric 只计算上三角，(i, j) 与 (j, i) 由同一个块写入，因此各块的写入区域仍然互不相交。
func (e *Engine) evalSymmetric(x *geo.CoordinateSet, cell cellFunc) Diagnostics {
	n := x.Len()
	ranges := e.dispatcher.PartitionTriangular(n)
	parts := make([]Diagnostics, len(ranges))

	e.dispatcher.Run(ranges, func(idx int, r worker.Range) {
		diag := &parts[idx]
		for i := r.Start; i < r.End; i++ {
			lat1, lon1 := x.RadiansAt(i)
			cell(i, i, selfDistance(lat1, lon1))
			for j := i + 1; j < n; j++ {
				lat2, lon2 := x.RadiansAt(j)
				s := e.solver.Inverse(lat1, lon1, lat2, lon2)
				diag.record(s.Iterations, s.Converged)
				cell(i, j, s.Distance)
				cell(j, i, s.Distance)
			}
		}
	})
	return mergeAll(e.method, parts)
}

// evalRect 沿较长的一维切分。
func (e *Engine) evalRect(x, y *geo.CoordinateSet, cell cellFunc) Diagnostics {
	rows, cols := x.Len(), y.Len()
	byRows := rows >= cols

	var ranges []worker.Range
	if byRows {
		ranges = e.dispatcher.Partition(rows)
	} else {
		ranges = e.dispatcher.Partition(cols)
	}
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
				cell(i, j, s.Distance)
			}
		}
	})
	return mergeAll(e.method, parts)
}

// vectorRanges 点集长度低于串行阈值时整体作为一个块，由调用方 goroutine 直接执行。
func (e *Engine) vectorRanges(n int) []worker.Range {
	if n == 0 {
		return nil
	}
	if n < e.settings.SerialThreshold() {
		return []worker.Range{{Start: 0, End: n}}
	}
	return e.dispatcher.Partition(n)
}

// evalVector 计算 p（已规范化）到 x 中每个点的距离。
func (e *Engine) evalVector(x *geo.CoordinateSet, p geo.Point, elem elemFunc) Diagnostics {
	ranges := e.vectorRanges(x.Len())
	parts := make([]Diagnostics, len(ranges))
	lat1, lon1 := p.Radians()

	e.dispatcher.Run(ranges, func(idx int, r worker.Range) {
		diag := &parts[idx]
		for j := r.Start; j < r.End; j++ {
			lat2, lon2 := x.RadiansAt(j)
			s := e.solver.Inverse(lat1, lon1, lat2, lon2)
			diag.record(s.Iterations, s.Converged)
			elem(j, s.Distance)
		}
	})
	return mergeAll(e.method, parts)
}

// selfDistance 点到自身的距离：有限坐标为 0，非有限坐标传播为 NaN。
func selfDistance(lat, lon float64) float64 {
	if finite(lat) && finite(lon) {
		return 0
	}
	return math.NaN()
}
