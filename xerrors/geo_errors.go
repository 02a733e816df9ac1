package xerrors

var (
	// ErrInvalidEllipsoid 椭球参数 (a, b, f) 不一致或不合法。
	ErrInvalidEllipsoid = New(ErrInvalidArg, 400101, "invalid ellipsoid", "ellipsoid triple must satisfy f = (a-b)/a with 0 < b <= a", nil)
	// ErrInvalidSettings 计算参数不合法（半径、容差、迭代次数等）。
	ErrInvalidSettings = New(ErrInvalidArg, 400102, "invalid settings", "radius, eps and tolerance must be positive; max_iterations and workers must be non-negative", nil)
	// ErrShapeMismatch 需要逐元素对应的输入长度不一致。
	ErrShapeMismatch = New(ErrInvalidArg, 400103, "shape mismatch", "element-wise inputs must have the same length", nil)
	// ErrInvalidCoordinate 纬度超出 [-90, 90]。
	ErrInvalidCoordinate = New(ErrInvalidArg, 400104, "invalid coordinate", "latitude must be within [-90, 90]", nil)
	// ErrInvalidThreshold 距离阈值为 NaN。
	ErrInvalidThreshold = New(ErrInvalidArg, 400105, "invalid threshold", "distance threshold must not be NaN", nil)
	// ErrUnknownMethod 未知的距离算法名称。
	ErrUnknownMethod = New(ErrInvalidArg, 400106, "unknown method", "supported methods: haversine, vincenty", nil)
	// ErrNonConvergence Vincenty 迭代在 max_iterations 内未达到容差，仅作诊断用途。
	ErrNonConvergence = New(ErrInternal, 500101, "vincenty iteration did not converge", "max_iterations exhausted before tolerance was met", nil)
)
