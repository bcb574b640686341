package app

import "context"

// Option 是一个函数类型，用于配置应用程序选项。
type Option func(*options)

// options 是应用程序的内部配置结构体。
type options struct {
	jobs           []Job
	hooks          []Hook
	maxConcurrency int
	runID          string
}

// WithJob 添加一个或多个批处理任务，任务之间互相独立。
func WithJob(jobs ...Job) Option {
	return func(o *options) {
		o.jobs = append(o.jobs, jobs...)
	}
}

// WithHook 注册生命周期钩子，例如刷新指标、关闭追踪。
func WithHook(hook Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

// WithCleanup 注册应用关闭时执行的清理函数，按注册的相反顺序执行。
func WithCleanup(name string, cleanup func()) Option {
	return WithHook(Hook{Name: name, OnStop: func(_ context.Context) error {
		cleanup()
		return nil
	}})
}

// WithMaxConcurrency 同时运行的任务数上限，小于 1 时按 1 处理。
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithRunID 为本次运行的日志打上编号。
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}
