package geodesic

import (
	"fmt"
	"strings"
)

// ReportEntry 诊断报告中的一行参数。
type ReportEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Report 是 Explain 的结果：解析后的全部计算参数，按固定顺序排列。
type Report struct {
	Entries []ReportEntry `json:"entries"`
}

// Explain 报告 Settings 解析后的椭球参数、eps、tolerance 与迭代上限。
// 纯内省操作，不触发任何计算。
func Explain(s *Settings) Report {
	if s == nil {
		s = DefaultSettings()
	}
	e := s.Ellipsoid()
	entries := []ReportEntry{
		{"spherical_radius", fmt.Sprint(s.SphericalRadius())},
		{"ellipse_a", fmt.Sprint(e.A)},
		{"ellipse_b", fmt.Sprint(e.B)},
		{"ellipse_f", fmt.Sprint(e.F)},
		{"tolerance", fmt.Sprint(s.Tolerance())},
		{"max_iterations", fmt.Sprint(s.MaxIterations())},
		{"eps", fmt.Sprint(s.Eps())},
		{"serial_threshold", fmt.Sprint(s.SerialThreshold())},
		{"workers", fmt.Sprint(s.Workers())},
		{"effective_workers", fmt.Sprint(s.EffectiveWorkers())},
	}
	return Report{Entries: entries}
}

// Get 按名称查询参数值。
func (r Report) Get(name string) (string, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// String 以多行文本输出报告。
func (r Report) String() string {
	var sb strings.Builder
	sb.WriteString("CalculationSettings:")
	for _, e := range r.Entries {
		fmt.Fprintf(&sb, "\n  - %-20s= %22s", e.Name, e.Value)
	}
	return sb.String()
}
