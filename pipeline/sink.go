package pipeline

import (
	"context"

	"github.com/wyfcoding/beaconrange/storage"
)

// Sink 接收一次运行的全部输出行.
type Sink interface {
	WriteLines(ctx context.Context, lines []string) error
}

// SinkFunc 让普通函数实现 Sink.
type SinkFunc func(ctx context.Context, lines []string) error

// WriteLines 调用 f 本身.
func (f SinkFunc) WriteLines(ctx context.Context, lines []string) error { return f(ctx, lines) }

// LocationSink 把输出写到存储中的固定位置.
type LocationSink struct {
	store    storage.LineStore
	location string
}

// NewLocationSink 创建写入 location 的 Sink.
func NewLocationSink(store storage.LineStore, location string) *LocationSink {
	return &LocationSink{store: store, location: location}
}

// WriteLines 整体写入目标位置，覆盖已有内容.
func (s *LocationSink) WriteLines(ctx context.Context, lines []string) error {
	return s.store.WriteLines(ctx, s.location, lines)
}
