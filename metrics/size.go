package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterInputSizeMetrics 注册输入点数指标。
func (m *Metrics) RegisterInputSizeMetrics() {
	if m == nil || m.InputPoints != nil {
		return
	}

	m.InputPoints = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geodist_input_points",
		Help:    "Number of coordinates received per calculation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"method", "operation"})
}

// RegisterResultSizeMetrics 注册结果元素数指标（矩阵为行×列，索引结果为命中数）。
func (m *Metrics) RegisterResultSizeMetrics() {
	if m == nil || m.ResultElements != nil {
		return
	}

	m.ResultElements = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geodist_result_elements",
		Help:    "Number of elements produced per calculation",
		Buckets: prometheus.ExponentialBuckets(1, 8, 10),
	}, []string{"method", "operation"})
}
