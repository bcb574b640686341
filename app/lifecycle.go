package app

import (
	"context"
	"log/slog"
	"sync"
)

// Hook 一个需要在任务执行前后启停的组件，例如追踪导出器或指标输出.
type Hook struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Lifecycle 按注册顺序启动组件，按相反顺序停止.
type Lifecycle struct {
	mu      sync.Mutex
	logger  *slog.Logger
	hooks   []Hook
	started int // 只有启动成功的前 started 个钩子会被停止
}

// NewLifecycle 创建空的生命周期管理器.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Append 注册钩子，需在 Start 之前调用.
func (l *Lifecycle) Append(hook Hook) {
	l.mu.Lock()
	l.hooks = append(l.hooks, hook)
	l.mu.Unlock()
}

// Start 依次启动组件，遇到第一个失败立即返回.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, h := range l.hooks[l.started:] {
		if h.OnStart != nil {
			l.logger.DebugContext(ctx, "starting component", "component", h.Name)
			if err := h.OnStart(ctx); err != nil {
				l.logger.ErrorContext(ctx, "component failed to start", "component", h.Name, "error", err)
				return err
			}
		}
		l.started++
	}
	return nil
}

// Stop 逆序停止已启动的组件。单个组件失败不会中断其余组件，返回第一个错误.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for ; l.started > 0; l.started-- {
		h := l.hooks[l.started-1]
		if h.OnStop == nil {
			continue
		}
		l.logger.DebugContext(ctx, "stopping component", "component", h.Name)
		if err := h.OnStop(ctx); err != nil {
			l.logger.ErrorContext(ctx, "component failed to stop", "component", h.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
