package worker

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/geodist/metrics"
)

func TestPartition(t *testing.T) {
	assert.Nil(t, Partition(0, 4))
	assert.Equal(t, []Range{{0, 3}}, Partition(3, 1))
	assert.Equal(t, []Range{{0, 3}, {3, 6}, {6, 9}, {9, 10}}, Partition(10, 4))
	assert.Equal(t, []Range{{0, 1}, {1, 2}}, Partition(2, 8))
	assert.Equal(t, []Range{{0, 5}}, Partition(5, 0))
}

func TestPartitionCoversEveryIndexOnce(t *testing.T) {
	for n := 0; n < 60; n++ {
		for workers := 1; workers <= 9; workers++ {
			for _, ranges := range [][]Range{Partition(n, workers), PartitionTriangular(n, workers)} {
				assert.LessOrEqual(t, len(ranges), workers)
				next := 0
				for _, r := range ranges {
					require.Equal(t, next, r.Start, "n=%d workers=%d", n, workers)
					require.Positive(t, r.Len())
					next = r.End
				}
				assert.Equal(t, n, next)
			}
		}
	}
}

func TestPartitionTriangularBalancesPairs(t *testing.T) {
	n, workers := 1000, 4
	ranges := PartitionTriangular(n, workers)
	require.Len(t, ranges, workers)

	total := n * (n - 1) / 2
	for _, r := range ranges {
		pairs := 0
		for row := r.Start; row < r.End; row++ {
			pairs += n - 1 - row
		}
		assert.InEpsilon(t, float64(total)/float64(workers), float64(pairs), 0.05)
	}
	// 靠前的行更重，第一块行数最少。
	assert.Less(t, ranges[0].Len(), ranges[workers-1].Len())
}

func TestDispatcherRun(t *testing.T) {
	d := NewDispatcher(WithName("test"), WithSize(4))
	assert.Equal(t, 4, d.Size())

	out := make([]int, 103)
	d.Run(d.Partition(len(out)), func(_ int, r Range) {
		for i := r.Start; i < r.End; i++ {
			out[i] = i * i
		}
	})
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}

	var calls atomic.Int32
	d.Run(nil, func(int, Range) { calls.Add(1) })
	assert.Equal(t, int32(0), calls.Load())

	assert.GreaterOrEqual(t, NewDispatcher().Size(), 1)
}

func TestDispatcherRepanics(t *testing.T) {
	d := NewDispatcher(WithSize(2))
	assert.Panics(t, func() {
		d.Run([]Range{{0, 1}, {1, 2}}, func(idx int, _ Range) {
			if idx == 1 {
				panic("boom")
			}
		})
	})
}

func TestDispatcherMetrics(t *testing.T) {
	reg := metrics.NewMetrics("worker-test")
	wm := NewMetrics(reg)
	d := NewDispatcher(WithName("metered"), WithSize(3), WithMetrics(wm))

	d.Run(d.Partition(9), func(int, Range) {})

	assert.Equal(t, 3.0, testutil.ToFloat64(wm.chunksTotal.WithLabelValues("metered")))
	assert.Equal(t, 0.0, testutil.ToFloat64(wm.activeWorkers.WithLabelValues("metered")))
}
