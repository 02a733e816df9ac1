// Package worker 提供批量计算的并行分发：将行区间切分为连续块，
// 由固定数量的 goroutine 并发执行，并在统一的屏障处汇合。
package worker

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"

	"github.com/wyfcoding/geodist/metrics"
)

// Task 处理一个区间。idx 为区间在切分结果中的序号，可用于写入按块预分配的局部结果。
type Task func(idx int, r Range)

// Metrics 分发器相关指标，同一注册表下只应创建一次，多个分发器通过 name 标签区分。
type Metrics struct {
	activeWorkers *prometheus.GaugeVec
	chunksTotal   *prometheus.CounterVec
	chunkDuration *prometheus.HistogramVec
}

// NewMetrics 在给定注册表上注册分发器指标。
func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{
		activeWorkers: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geodist_dispatcher_active_workers",
			Help: "Number of workers currently computing a chunk",
		}, []string{"dispatcher"}),
		chunksTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_dispatcher_chunks_total",
			Help: "Total number of chunks executed",
		}, []string{"dispatcher"}),
		chunkDuration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geodist_dispatcher_chunk_duration_seconds",
			Help:    "Time spent computing a single chunk",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"dispatcher"}),
	}
}

type dispatcherOptions struct {
	Logger  *slog.Logger
	Metrics *Metrics
	Name    string
	Size    int
}

// Option 定义配置选项。
type Option func(*dispatcherOptions)

// WithName 设置分发器名称。
func WithName(name string) Option {
	return func(o *dispatcherOptions) {
		o.Name = name
	}
}

// WithSize 设置 worker 数量，0 表示使用全部逻辑 CPU。
func WithSize(size int) Option {
	return func(o *dispatcherOptions) {
		o.Size = size
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(o *dispatcherOptions) {
		o.Logger = logger
	}
}

// WithMetrics 注入指标采集器。
func WithMetrics(m *Metrics) Option {
	return func(o *dispatcherOptions) {
		o.Metrics = m
	}
}

// Dispatcher 按块并发执行任务。
// 每个块只读共享输入、只写自己的输出区域，因此执行期间无需加锁；Run 在所有块完成后才返回。
type Dispatcher struct {
	options *dispatcherOptions
}

// NewDispatcher 创建分发器。
func NewDispatcher(opts ...Option) *Dispatcher {
	options := &dispatcherOptions{
		Name:   "default",
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Size <= 0 {
		options.Size = max(runtime.NumCPU(), 1)
	}
	return &Dispatcher{options: options}
}

// Size 返回 worker 数量。
func (d *Dispatcher) Size() int {
	return d.options.Size
}

// Partition 按 worker 数量切分 [0, n)。
func (d *Dispatcher) Partition(n int) []Range {
	return Partition(n, d.options.Size)
}

// PartitionTriangular 按 worker 数量以上三角工作量切分 [0, n)。
func (d *Dispatcher) PartitionTriangular(n int) []Range {
	return PartitionTriangular(n, d.options.Size)
}

// Run 为每个区间启动一个 goroutine 执行 task，并等待全部完成。
// 只有一个区间时直接在调用方 goroutine 上执行。任务中的 panic 会在汇合后重新抛出。
func (d *Dispatcher) Run(ranges []Range, task Task) {
	switch len(ranges) {
	case 0:
		return
	case 1:
		d.execute(0, ranges[0], task)
		return
	}

	d.options.Logger.Debug("dispatching chunks", "dispatcher", d.options.Name, "chunks", len(ranges), "workers", d.options.Size)

	var wg conc.WaitGroup
	for idx, r := range ranges {
		wg.Go(func() {
			d.execute(idx, r, task)
		})
	}
	wg.Wait()
}

func (d *Dispatcher) execute(idx int, r Range, task Task) {
	m := d.options.Metrics
	if m == nil {
		task(idx, r)
		return
	}

	active := m.activeWorkers.WithLabelValues(d.options.Name)
	active.Inc()
	defer active.Dec()

	start := time.Now()
	task(idx, r)
	m.chunksTotal.WithLabelValues(d.options.Name).Inc()
	m.chunkDuration.WithLabelValues(d.options.Name).Observe(time.Since(start).Seconds())
}
