package geodesic

import (
	"strings"

	"github.com/wyfcoding/geodist/xerrors"
)

// Method 距离算法的标签。
type Method uint8

const (
	// Haversine 球面大圆距离，闭式解。
	Haversine Method = iota
	// Vincenty 椭球测地线，迭代求解。
	Vincenty
)

// String 返回算法名称。
func (m Method) String() string {
	switch m {
	case Haversine:
		return "haversine"
	case Vincenty:
		return "vincenty"
	default:
		return "unknown"
	}
}

// ParseMethod 将文本（大小写不敏感）解析为算法标签。
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "haversine":
		return Haversine, nil
	case "vincenty":
		return Vincenty, nil
	default:
		return 0, xerrors.ErrUnknownMethod.Detailf("unsupported distance method %q", s)
	}
}

// Solution 是一次反解（两点求距离）的结果。
type Solution struct {
	Distance   float64
	Iterations int  // 实际迭代次数，闭式解恒为 0
	Converged  bool // 迭代是否在上限内达到收敛阈值
}

// Destination 是一次正解（起点 + 方位角 + 距离求终点）的结果，坐标单位为弧度。
type Destination struct {
	Lat        float64
	Lon        float64
	Iterations int
	Converged  bool
}

// Solver 提供统一的反解与正解能力。
// 所有实现都是纯函数，可被多个 goroutine 并发调用。
type Solver interface {
	Method() Method
	// Inverse 计算两点（弧度）之间的距离。
	Inverse(lat1, lon1, lat2, lon2 float64) Solution
	// Direct 从起点（弧度）沿方位角（弧度）前进 dist 后的终点。
	Direct(lat, lon, bearing, dist float64) Destination
}

// Solver 按算法标签与参数构造求解器。
func (m Method) Solver(s *Settings) (Solver, error) {
	if s == nil {
		s = DefaultSettings()
	}
	switch m {
	case Haversine:
		return NewHaversine(s.SphericalRadius()), nil
	case Vincenty:
		return NewVincenty(s), nil
	default:
		return nil, xerrors.ErrUnknownMethod.Detailf("unsupported distance method %d", m)
	}
}
