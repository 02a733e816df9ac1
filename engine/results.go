package engine

import (
	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/geodesic"
	"github.com/wyfcoding/geodist/xerrors"
)

// Diagnostics 记录一次调用中求解器的运行情况，是未收敛等非致命状况的观测通道。
type Diagnostics struct {
	Method            string `msgpack:"method" json:"method"`
	Evaluations       int    `msgpack:"evaluations" json:"evaluations"`                 // 求解器调用次数
	NonConverged      int    `msgpack:"non_converged" json:"non_converged"`             // 达到迭代上限仍未收敛的次数
	MaxIterationsUsed int    `msgpack:"max_iterations_used" json:"max_iterations_used"` // 单次求解的最大迭代次数
	Chunks            int    `msgpack:"chunks" json:"chunks"`                           // 实际并行执行的块数
}

// Converged 报告是否所有求解都在迭代上限内收敛。
func (d Diagnostics) Converged() bool {
	return d.NonConverged == 0
}

// Err 在存在未收敛结果时返回 ErrNonConvergence，否则返回 nil。
// 结果值本身依然可用，调用方可自行决定是否视为失败。
func (d Diagnostics) Err() error {
	if d.Converged() {
		return nil
	}
	return xerrors.ErrNonConvergence.Detailf("%s: %d of %d evaluations exhausted the iteration limit",
		d.Method, d.NonConverged, d.Evaluations)
}

func (d *Diagnostics) record(iterations int, converged bool) {
	d.Evaluations++
	if !converged {
		d.NonConverged++
	}
	d.MaxIterationsUsed = max(d.MaxIterationsUsed, iterations)
}

func (d *Diagnostics) merge(o Diagnostics) {
	d.Evaluations += o.Evaluations
	d.NonConverged += o.NonConverged
	d.MaxIterationsUsed = max(d.MaxIterationsUsed, o.MaxIterationsUsed)
}

func mergeAll(method geodesic.Method, parts []Diagnostics) Diagnostics {
	total := Diagnostics{Method: method.String(), Chunks: len(parts)}
	for _, p := range parts {
		total.merge(p)
	}
	return total
}

// DistanceMatrix 是按行存储的稠密距离矩阵。
type DistanceMatrix struct {
	Rows        int         `msgpack:"rows"`
	Cols        int         `msgpack:"cols"`
	Values      []float64   `msgpack:"values"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// At 返回第 i 行第 j 列的距离。
func (m *DistanceMatrix) At(i, j int) float64 {
	return m.Values[i*m.Cols+j]
}

// Row 返回第 i 行（与底层存储共享内存）。
func (m *DistanceMatrix) Row(i int) []float64 {
	return m.Values[i*m.Cols : (i+1)*m.Cols]
}

// DistanceVector 是点到点集的距离。
type DistanceVector struct {
	Values      []float64   `msgpack:"values"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// WithinMatrix 是按行存储的阈值判定矩阵，true 表示距离不超过阈值。
type WithinMatrix struct {
	Rows        int         `msgpack:"rows"`
	Cols        int         `msgpack:"cols"`
	Values      []bool      `msgpack:"values"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// At 返回第 i 行第 j 列的判定结果。
func (m *WithinMatrix) At(i, j int) bool {
	return m.Values[i*m.Cols+j]
}

// WithinVector 是点到点集的阈值判定结果。
type WithinVector struct {
	Values      []bool      `msgpack:"values"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// IndexPair 是矩阵中的一个位置。
type IndexPair struct {
	Row int `msgpack:"row"`
	Col int `msgpack:"col"`
}

// IndexPairs 是满足阈值的全部位置，按行优先顺序排列。
type IndexPairs struct {
	Pairs       []IndexPair `msgpack:"pairs"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// Indices 是满足阈值的点下标，升序排列。
type Indices struct {
	Values      []int       `msgpack:"values"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// Displacement 是位移计算得到的终点，顺序与输入一致。
type Displacement struct {
	Points      []geo.Point `msgpack:"points"`
	Diagnostics Diagnostics `msgpack:"diagnostics"`
}

// Point 返回第一个终点，用于单点位移。
func (d *Displacement) Point() geo.Point {
	return d.Points[0]
}
