// Package app 负责批处理任务的组装、并发执行与资源清理。
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// ErrSkipped 收到退出信号时尚未开始的任务被跳过。
var ErrSkipped = errors.New("job skipped after shutdown signal")

// Job 一个独立的批处理任务，通常对应一个信标。
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// App 是应用程序的核心容器，负责任务的并发执行和生命周期管理。
type App struct {
	name      string
	logger    *slog.Logger
	opts      options
	lifecycle *Lifecycle
}

// New 创建一个新的应用程序实例。
func New(name string, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{maxConcurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxConcurrency < 1 {
		o.maxConcurrency = 1
	}
	if o.runID != "" {
		logger = logger.With("run_id", o.runID)
	}

	lc := NewLifecycle(logger)
	for _, h := range o.hooks {
		lc.Append(h)
	}

	return &App{
		name:      name,
		logger:    logger,
		opts:      o,
		lifecycle: lc,
	}
}

// Run 启动全部任务并阻塞到结束。
// SIGINT/SIGTERM 只会阻止尚未开始的任务，已开始的任务会完整执行。
// 返回所有失败任务错误的合并结果。
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.InfoContext(ctx, "application starting", "name", a.name, "pid", os.Getpid(), "jobs", len(a.opts.jobs))
	start := time.Now()

	if err := a.lifecycle.Start(ctx); err != nil {
		// 已启动的组件仍需回滚
		return errors.Join(err, a.shutdown())
	}

	p := pool.New().WithErrors().WithMaxGoroutines(a.opts.maxConcurrency)
	for _, job := range a.opts.jobs {
		p.Go(func() error {
			return a.runJob(ctx, job)
		})
	}
	runErr := p.Wait()

	stopErr := a.shutdown()

	if runErr != nil {
		a.logger.ErrorContext(ctx, "application finished with errors", "duration", time.Since(start), "error", runErr)
	} else {
		a.logger.InfoContext(ctx, "application finished", "duration", time.Since(start))
	}
	return errors.Join(runErr, stopErr)
}

func (a *App) runJob(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		a.logger.WarnContext(ctx, "job skipped", "job", job.Name)
		return xerrors.Internal("job "+job.Name, ErrSkipped)
	}
	// 一旦开始就不再响应取消
	if err := job.Run(context.WithoutCancel(ctx)); err != nil {
		a.logger.ErrorContext(ctx, "job failed", "job", job.Name, "error", err)
		return err
	}
	a.logger.InfoContext(ctx, "job finished", "job", job.Name)
	return nil
}

// shutdown 停止组件使用独立的超时上下文，不受退出信号影响。
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.lifecycle.Stop(ctx)
}
