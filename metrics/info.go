package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo 注册 geodist_build_info，值恒为 1，版本信息放在标签上。重复调用无副作用。
func (m *Metrics) RegisterBuildInfo(serviceName, version string) {
	if m == nil || m.BuildInfo != nil {
		return
	}

	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geodist_build_info",
		Help: "Build information of the running geodist binary",
	}, []string{"service", "version", "go_version"})

	m.BuildInfo.WithLabelValues(orUnknown(serviceName), orUnknown(version), runtime.Version()).Set(1)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
