package filter

import "errors"

var (
	// ErrNonFinite 测量值为 NaN 或 ±Inf。
	ErrNonFinite = errors.New("measurement is not finite")
	// ErrInvalidNoise 噪声协方差非法。
	ErrInvalidNoise = errors.New("process noise must be >= 0 and measurement noise > 0")
	// ErrInvalidAlpha EWMA 平滑系数错误。
	ErrInvalidAlpha = errors.New("alpha must be in range (0, 1]")
	// ErrUnsupportedKind 不支持的滤波器类型。
	ErrUnsupportedKind = errors.New("unsupported filter kind")
)
