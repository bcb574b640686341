// Package propagation 将平滑后的 RSSI 换算为物理距离.
package propagation

import "math"

// 内置参考天线的曲线拟合系数。
const (
	DefaultCoefficientA = 0.42093
	DefaultCoefficientB = 6.9476
	DefaultCoefficientC = 0.54992

	// DefaultTxPower 参考天线 1 米处的 RSSI (dBm)。
	DefaultTxPower = -59
)

// UnknownDistance 信号为 0 时返回的哨兵距离。
const UnknownDistance = -1.0

// Model 是某一类天线/设备的传播模型，持有三个校准系数。
// 构造后只读，可被多个信标共享。
type Model struct {
	a, b, c float64
}

// NewModel 以给定系数构造传播模型。
func NewModel(a, b, c float64) *Model {
	return &Model{a: a, b: b, c: c}
}

// Default 返回参考天线的模型。每次调用返回新值，调用方无法修改共享实例。
func Default() *Model {
	return NewModel(DefaultCoefficientA, DefaultCoefficientB, DefaultCoefficientC)
}

// A 幂律项系数.
func (m *Model) A() float64 { return m.a }

// B 幂律项指数.
func (m *Model) B() float64 { return m.b }

// C 常数偏移.
func (m *Model) C() float64 { return m.c }

// Distance 由信号强度与参考发射功率估算距离。
//
//	signal == 0      -> UnknownDistance，不计算比值
//	ratio  < 1.0     -> ratio^10
//	否则             -> A * ratio^B + C
//
// 不做截断；txPower 为 0 或输入非有限时结果同样非有限。
func (m *Model) Distance(signal float64, txPower int) float64 {
	if signal == 0 {
		return UnknownDistance
	}

	ratio := signal / float64(txPower)
	if ratio < 1.0 {
		return math.Pow(ratio, 10)
	}
	return m.a*math.Pow(ratio, m.b) + m.c
}

// IsUnknown 判断距离是否为哨兵值。
func IsUnknown(distance float64) bool {
	return distance == UnknownDistance
}
