package filter

import (
	"fmt"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// 平滑器类型，对应配置项 filter.kind.
const (
	// KindKalman 一维卡尔曼滤波，默认值.
	KindKalman = "kalman"
	// KindEWMA 指数加权移动平均.
	KindEWMA = "ewma"
)

// Smoother 将带噪声的标量序列转换为平滑序列。
// 实现是有状态的、与顺序相关的，每个样本调用一次。
type Smoother interface {
	Apply(measurement float64) (float64, error)
}

// Config 描述一个平滑器的构造参数。
type Config struct {
	Kind             string  `mapstructure:"kind"              toml:"kind"              validate:"omitempty,oneof=kalman ewma"`
	ProcessNoise     float64 `mapstructure:"process_noise"     toml:"process_noise"     validate:"gte=0"`
	MeasurementNoise float64 `mapstructure:"measurement_noise" toml:"measurement_noise" validate:"gt=0"`
	Alpha            float64 `mapstructure:"alpha"             toml:"alpha"`
}

// DefaultConfig 默认使用卡尔曼滤波 (0.125, 0.8)。
func DefaultConfig() Config {
	return Config{
		Kind:             KindKalman,
		ProcessNoise:     DefaultProcessNoise,
		MeasurementNoise: DefaultMeasurementNoise,
		Alpha:            0.2,
	}
}

// New 根据配置创建一个全新的平滑器，每次调用都返回独立状态。
func New(cfg Config) (Smoother, error) {
	switch cfg.Kind {
	case KindKalman, "":
		kf, err := NewKalmanFilter(cfg.ProcessNoise, cfg.MeasurementNoise)
		if err != nil {
			return nil, err
		}
		return kf, nil
	case KindEWMA:
		e, err := NewEWMA(cfg.Alpha)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, xerrors.Configuration(fmt.Sprintf("filter kind %q", cfg.Kind), ErrUnsupportedKind)
	}
}
