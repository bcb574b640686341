// Package filter 提供 RSSI 序列的递归平滑滤波器.
package filter

import (
	"fmt"
	"math"

	"github.com/wyfcoding/beaconrange/xerrors"
)

const (
	// DefaultProcessNoise 默认过程噪声。
	DefaultProcessNoise = 0.125
	// DefaultMeasurementNoise 默认测量噪声。
	DefaultMeasurementNoise = 0.8
)

// KalmanFilter 一维卡尔曼滤波器
// 无控制输入，状态按随机游走预测。首个测量值直接作为估算值。
// 非并发安全：同一实例只能被一个信标的有序样本序列驱动。
type KalmanFilter struct {
	q           float64 // 过程噪声协方差 (Process Noise Covariance)
	r           float64 // 测量噪声协方差 (Measurement Noise Covariance)
	x           float64 // 估算值
	p           float64 // 估算误差协方差，恒 >= 0
	k           float64 // 最近一次的卡尔曼增益
	initialized bool
}

// NewKalmanFilter 创建滤波器
// q: 过程噪声，越小系统越稳定（但也越迟钝）
// r: 测量噪声，越大系统越信任历史估算值
func NewKalmanFilter(q, r float64) (*KalmanFilter, error) {
	if math.IsNaN(q) || math.IsInf(q, 0) || math.IsNaN(r) || math.IsInf(r, 0) || q < 0 || r <= 0 {
		return nil, xerrors.InvalidArg("invalid kalman noise", ErrInvalidNoise).
			WithContext("process_noise", q).
			WithContext("measurement_noise", r)
	}
	return &KalmanFilter{q: q, r: r}, nil
}

// DefaultKalmanFilter 使用默认噪声参数 (0.125, 0.8)。
func DefaultKalmanFilter() *KalmanFilter {
	return &KalmanFilter{q: DefaultProcessNoise, r: DefaultMeasurementNoise}
}

// Apply 观测到一个新值，返回过滤后的估算值。
// 非有限值被拒绝，滤波器状态保持不变。
func (f *KalmanFilter) Apply(measurement float64) (float64, error) {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return 0, xerrors.InvalidArg(fmt.Sprintf("cannot filter %v", measurement), ErrNonFinite)
	}

	if !f.initialized {
		f.x = measurement
		f.p = 1
		f.k = 1
		f.initialized = true
		return f.x, nil
	}

	// 1. 预测阶段 p = p + q
	p := f.p + f.q

	// 2. 更新阶段
	f.k = p / (p + f.r)
	f.x = f.x + f.k*(measurement-f.x)
	f.p = (1 - f.k) * p

	return f.x, nil
}

// Estimate 获取当前估算值
func (f *KalmanFilter) Estimate() float64 {
	return f.x
}

// ErrorCovariance 获取当前估算误差协方差。
func (f *KalmanFilter) ErrorCovariance() float64 {
	return f.p
}

// Gain 最近一次更新使用的卡尔曼增益，首个样本为 1。
func (f *KalmanFilter) Gain() float64 {
	return f.k
}

// Initialized 是否已经接收过至少一个测量值。
func (f *KalmanFilter) Initialized() bool {
	return f.initialized
}

// Confidence 获取估算的相对置信度 (0.0 到 1.0)
// 基于协方差 p 计算。p 越小，置信度越高。未初始化时为 0。
func (f *KalmanFilter) Confidence() float64 {
	if !f.initialized {
		return 0
	}
	if f.p <= 0 {
		return 1.0
	}
	return 1.0 / (1.0 + f.p)
}

// SteadyStateCovariance 协方差递推 p' = (1-k)(p+q) 的不动点。
// 令 s = p+q，则 s^2 - q*s - q*r = 0。
func SteadyStateCovariance(q, r float64) float64 {
	s := (q + math.Sqrt(q*q+4*q*r)) / 2
	return s - q
}
