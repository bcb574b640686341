// Package fsm 提供通用的有限状态机 (Finite State Machine) 基础设施.
// Machine 不做内部加锁，由持有者保证单线程使用。
package fsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrInvalidTransition 无效的状态转移.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrHandlerFailed 处理器执行失败.
	ErrHandlerFailed = errors.New("fsm handler failed")
)

// Handler 定义状态流转时执行的回调函数. 返回错误时状态不变.
type Handler[S comparable] func(ctx context.Context, from, to S) error

// Machine 封装了有限状态机的核心状态与流转逻辑.
type Machine[S comparable, E comparable] struct {
	transitions map[S]map[E]S
	handlers    map[S]map[S]Handler[S]
	current     S
	logger      *slog.Logger
}

// Option 配置状态机.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger 注入转移日志的输出目标 (Debug 级别).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewMachine 创建一个新的状态机.
func NewMachine[S comparable, E comparable](initial S, opts ...Option) *Machine[S, E] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Machine[S, E]{
		current:     initial,
		transitions: make(map[S]map[E]S),
		handlers:    make(map[S]map[S]Handler[S]),
		logger:      o.logger,
	}
}

// AddTransition 添加一条状态转移规则.
func (m *Machine[S, E]) AddTransition(from S, event E, to S) *Machine[S, E] {
	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[E]S)
	}

	m.transitions[from][event] = to
	return m
}

// AddHandler 为特定的状态转移注册回调动作.
func (m *Machine[S, E]) AddHandler(from, to S, handler Handler[S]) *Machine[S, E] {
	if _, ok := m.handlers[from]; !ok {
		m.handlers[from] = make(map[S]Handler[S])
	}

	m.handlers[from][to] = handler
	return m
}

// Current 获取状态机当前所处的状态.
func (m *Machine[S, E]) Current() S {
	return m.current
}

// Can 判断当前状态下事件是否有对应的转移.
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.transitions[m.current][event]
	return ok
}

// Trigger 触发一个事件.
func (m *Machine[S, E]) Trigger(ctx context.Context, event E) error {
	from := m.current
	to, ok := m.transitions[from][event]
	if !ok {
		return fmt.Errorf("%w: event %v for state %v", ErrInvalidTransition, event, from)
	}

	if handler, okH := m.handlers[from][to]; okH {
		if err := handler(ctx, from, to); err != nil {
			return fmt.Errorf("%w (%v -> %v): %w", ErrHandlerFailed, from, to, err)
		}
	}

	m.current = to

	m.logger.DebugContext(ctx, "fsm state transitioned",
		"from", from,
		"to", to,
		"event", event,
	)

	return nil
}
