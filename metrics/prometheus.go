// Package metrics 封装了基于 Prometheus 的指标注册表及距离计算的标准监控指标。
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了基于 Prometheus 的指标采集注册表及预定义的标准监控指标。
type Metrics struct {
	registry *prometheus.Registry // 内部独立的 Prometheus 注册中心

	CalculationsTotal      *prometheus.CounterVec   // 计算调用总量 (维度: method, operation, status)
	CalculationDuration    *prometheus.HistogramVec // 计算耗时分布 (维度: method, operation)
	SolverEvaluationsTotal *prometheus.CounterVec   // 求解器调用次数 (维度: method)
	NonConvergenceTotal    *prometheus.CounterVec   // 未收敛的点对数量 (维度: method)

	InputPoints    *prometheus.HistogramVec // 输入点数分布，见 RegisterInputSizeMetrics
	ResultElements *prometheus.HistogramVec // 结果元素数分布，见 RegisterResultSizeMetrics
	BuildInfo      *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器。
// 它会自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.CalculationsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "geodist_calculations_total",
		Help: "Total number of distance calculations",
	}, []string{"method", "operation", "status"})

	m.CalculationDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geodist_calculation_duration_seconds",
		Help:    "Distance calculation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
	}, []string{"method", "operation"})

	m.SolverEvaluationsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "geodist_solver_evaluations_total",
		Help: "Total number of point pairs handed to a solver",
	}, []string{"method"})

	m.NonConvergenceTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "geodist_non_convergence_total",
		Help: "Total number of iterative solutions that exhausted max_iterations",
	}, []string{"method"})

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return m
}

// Registry 返回底层注册表，用于测试中读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExposeHttp 在指定端口启动一个独立的 HTTP 服务器用于暴露指标数据。
// 返回一个清理函数用于优雅关闭该服务器。
func (m *Metrics) ExposeHttp(port string) func() {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
