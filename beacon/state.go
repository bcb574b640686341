package beacon

// State 信标派生值的新鲜度。单一状态取代两个独立的布尔标志。
type State int

const (
	// StateEmpty 尚未收到任何信号。
	StateEmpty State = iota
	// StateStale 原始信号已更新，平滑值与距离均未计算。
	StateStale
	// StateFiltered 平滑值有效，距离未计算。
	StateFiltered
	// StateReady 平滑值与距离均有效。
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateStale:
		return "stale"
	case StateFiltered:
		return "filtered"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Event 驱动状态转移的事件。
type Event string

const (
	// EventSample 收到新的原始信号，任何状态都回到 StateStale.
	EventSample Event = "sample"
	// EventSmooth 运行滤波器，StateStale -> StateFiltered.
	EventSmooth Event = "smooth"
	// EventMeasure 运行传播模型，StateFiltered -> StateReady.
	EventMeasure Event = "measure"
	// EventRecalibrate 模型被替换，缓存的距离失效。
	EventRecalibrate Event = "recalibrate"
)
