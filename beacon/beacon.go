// Package beacon 将一个信标的原始 RSSI 与其滤波器、传播模型绑定，
// 按 "先平滑后测距" 的顺序惰性派生平滑值与距离。
package beacon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wyfcoding/beaconrange/filter"
	"github.com/wyfcoding/beaconrange/fsm"
	"github.com/wyfcoding/beaconrange/propagation"
	"github.com/wyfcoding/beaconrange/xerrors"
)

var (
	// ErrFilterMissing 未挂载 RSSI 滤波器。
	ErrFilterMissing = errors.New("rssi filter must be attached before filtering")
	// ErrModelMissing 未挂载传播模型。
	ErrModelMissing = errors.New("propagation model must be attached before distance calculation")
	// ErrNoSignal 尚未设置任何信号。
	ErrNoSignal = errors.New("no signal recorded")
)

// Beacon 单个信标的跟踪状态。非并发安全，一个信标的样本必须按顺序串行喂入。
type Beacon struct {
	address  string
	txPower  int
	raw      float64
	smoothed float64
	distance float64
	seeded   bool

	filter  filter.Smoother
	model   *propagation.Model
	machine *fsm.Machine[State, Event]
	logger  *slog.Logger
}

// Option 配置 Beacon.
type Option func(*Beacon)

// WithFilter 挂载平滑滤波器，Beacon 独占该实例。
func WithFilter(f filter.Smoother) Option {
	return func(b *Beacon) { b.filter = f }
}

// WithModel 引用共享的只读传播模型。
func WithModel(m *propagation.Model) Option {
	return func(b *Beacon) { b.model = m }
}

// WithLogger 注入诊断日志.
func WithLogger(l *slog.Logger) Option {
	return func(b *Beacon) { b.logger = l }
}

// WithSignal 预置一个未经滤波的原始信号，首次 Distance 时才进行平滑。
func WithSignal(rssi float64) Option {
	return func(b *Beacon) {
		b.raw = rssi
		b.seeded = true
	}
}

// New 以地址和参考发射功率创建信标.
func New(address string, txPower int, opts ...Option) *Beacon {
	b := &Beacon{
		address: address,
		txPower: txPower,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("beacon", address)

	initial := StateEmpty
	if b.seeded {
		initial = StateStale
	}
	b.machine = fsm.NewMachine[State, Event](initial, fsm.WithLogger(b.logger))

	for _, s := range []State{StateEmpty, StateStale, StateFiltered, StateReady} {
		b.machine.AddTransition(s, EventSample, StateStale)
	}
	b.machine.
		AddTransition(StateStale, EventSmooth, StateFiltered).
		AddTransition(StateFiltered, EventMeasure, StateReady).
		AddTransition(StateReady, EventRecalibrate, StateFiltered).
		AddHandler(StateStale, StateFiltered, b.smooth).
		AddHandler(StateFiltered, StateReady, b.measure)

	return b
}

// AttachFilter 替换滤波器，已有的平滑值与距离随之失效。
func (b *Beacon) AttachFilter(f filter.Smoother) {
	b.filter = f
	if b.State() != StateEmpty {
		b.mustTrigger(EventSample)
	}
}

// AttachModel 替换传播模型，已缓存的距离随之失效。
func (b *Beacon) AttachModel(m *propagation.Model) {
	b.model = m
	if b.State() == StateReady {
		b.mustTrigger(EventRecalibrate)
	}
}

// SetRawSignal 记录一个新的原始信号并立即平滑。
// 未挂载滤波器时返回 Configuration 错误，原始值仍被保存，状态停留在 StateStale。
func (b *Beacon) SetRawSignal(ctx context.Context, rssi float64) error {
	b.raw = rssi
	b.mustTrigger(EventSample)

	if b.filter == nil {
		return xerrors.Configuration("cannot smooth rssi", ErrFilterMissing).WithContext("beacon", b.address)
	}
	return b.trigger(ctx, EventSmooth)
}

// Distance 返回当前平滑信号对应的距离，必要时补做平滑与测距。
// 任一依赖缺失都返回 Configuration 错误，绝不返回默认数值。
func (b *Beacon) Distance(ctx context.Context) (float64, error) {
	if b.filter == nil {
		return 0, xerrors.Configuration("cannot compute distance", ErrFilterMissing).WithContext("beacon", b.address)
	}
	if b.model == nil {
		return 0, xerrors.Configuration("cannot compute distance", ErrModelMissing).WithContext("beacon", b.address)
	}

	if b.State() == StateEmpty {
		return 0, xerrors.InvalidArg("cannot compute distance", ErrNoSignal).WithContext("beacon", b.address)
	}
	if b.State() == StateStale {
		if err := b.trigger(ctx, EventSmooth); err != nil {
			return 0, err
		}
	}
	if b.State() == StateFiltered {
		if err := b.trigger(ctx, EventMeasure); err != nil {
			return 0, err
		}
	}
	return b.distance, nil
}

func (b *Beacon) smooth(_ context.Context, _, _ State) error {
	v, err := b.filter.Apply(b.raw)
	if err != nil {
		return err
	}
	b.smoothed = v
	return nil
}

func (b *Beacon) measure(_ context.Context, _, _ State) error {
	b.distance = b.model.Distance(b.smoothed, b.txPower)
	return nil
}

func (b *Beacon) trigger(ctx context.Context, e Event) error {
	if err := b.machine.Trigger(ctx, e); err != nil {
		return xerrors.Wrap(err, xerrors.ErrInternal, "beacon "+string(e)+" failed").WithContext("beacon", b.address)
	}
	return nil
}

// mustTrigger 用于无处理器且在所有状态都定义了的转移。
func (b *Beacon) mustTrigger(e Event) {
	if err := b.machine.Trigger(context.Background(), e); err != nil {
		panic(err)
	}
}

// Address 信标地址 (BSSID).
func (b *Beacon) Address() string { return b.address }

// TxPower 1 米处的参考发射功率 (dBm).
func (b *Beacon) TxPower() int { return b.txPower }

// Raw 最近一次输入的原始信号，不会被平滑值覆盖。
func (b *Beacon) Raw() float64 { return b.raw }

// Smoothed 返回平滑值；仅在 StateFiltered / StateReady 时有效。
func (b *Beacon) Smoothed() (float64, bool) {
	s := b.State()
	return b.smoothed, s == StateFiltered || s == StateReady
}

// State 当前新鲜度状态.
func (b *Beacon) State() State {
	return b.machine.Current()
}
