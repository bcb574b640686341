package filter

import (
	"fmt"
	"math"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// EWMA (Exponentially Weighted Moving Average) 指数加权移动平均。
// 作为卡尔曼滤波之外的轻量平滑器，对近期的 RSSI 给予更高权重。
// 与 KalmanFilter 一样不做内部加锁。
type EWMA struct {
	alpha float64 // 平滑系数 (0 < alpha <= 1)，值越大对新数据越灵敏
	value float64 // 当前的平均值
	init  bool    // 是否已初始化
}

// NewEWMA 创建一个新的 EWMA 实例
// alpha 通常取 2/(N+1)，其中 N 是你想要平均的数据点周期。
// 例如：N=10, alpha=0.18
func NewEWMA(alpha float64) (*EWMA, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		return nil, xerrors.InvalidArg("invalid ewma alpha", ErrInvalidAlpha).WithContext("alpha", alpha)
	}
	return &EWMA{alpha: alpha}, nil
}

// Apply 更新平均值并返回。首个样本原样返回。
func (e *EWMA) Apply(measurement float64) (float64, error) {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return 0, xerrors.InvalidArg(fmt.Sprintf("cannot filter %v", measurement), ErrNonFinite)
	}

	if !e.init {
		e.value = measurement
		e.init = true
		return e.value, nil
	}

	e.value = e.alpha*measurement + (1-e.alpha)*e.value
	return e.value, nil
}

// Value 获取当前平均值
func (e *EWMA) Value() float64 {
	return e.value
}
