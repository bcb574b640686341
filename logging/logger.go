// Package logging 提供了统一的结构化日志（slog）封装，支持 OpenTelemetry 追踪上下文注入与文件切割。
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"go.opentelemetry.io/otel/trace" // OpenTelemetry追踪
)

var (
	// defaultLogger 是全局默认的Logger实例。
	defaultLogger *Logger
	mu            sync.Mutex

	// level 全局日志级别，所有由本包创建的 Handler 共享，SetLevel 可在运行时调整。
	level = new(slog.LevelVar)
)

// Config 定义日志配置
type Config struct {
	Service    string `mapstructure:"service" toml:"service"`
	Module     string `mapstructure:"module" toml:"module"`
	Level      string `mapstructure:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output     string `mapstructure:"output" toml:"output" validate:"omitempty,oneof=stdout file both"`
	File       string `mapstructure:"file" toml:"file"`               // 日志文件路径，为空则只输出到 stdout
	MaxSize    int    `mapstructure:"max_size" toml:"max_size"`       // 每个日志文件最大尺寸 (MB)
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 保留旧日志文件的最大个数
	MaxAge     int    `mapstructure:"max_age" toml:"max_age"`         // 保留旧日志文件的最大天数
	Compress   bool   `mapstructure:"compress" toml:"compress"`       // 是否压缩旧日志
}

// Logger 封装了原生的 `*slog.Logger`，并记录服务名和模块名，方便在日志中区分来源。
type Logger struct {
	*slog.Logger
	Service string
	Module  string

	closer io.Closer
}

// Close 关闭文件输出，stdout 模式下为空操作。
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// TraceHandler 是一个自定义的 `slog.Handler` 装饰器，用于从 `context.Context` 中提取并注入 `trace_id` 和 `span_id` 到日志记录中。
type TraceHandler struct {
	slog.Handler
}

// Handle 如果上下文中存在有效的 SpanContext，则将 trace_id 和 span_id 添加到日志属性中。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel 将配置中的级别字符串转换为 slog.Level，未知值按 info 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel 动态调整全局日志级别。
func SetLevel(s string) {
	level.Set(ParseLevel(s))
}

// NewFromConfig 创建一个新的Logger实例。
// Output 为 file 或 both 时需要 File，使用 lumberjack 进行日志切割。
func NewFromConfig(cfg Config) *Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) *Logger {
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}

	var (
		handler slog.Handler
		closer  io.Closer
	)

	output := cfg.Output
	if output == "" {
		output = "stdout"
		if cfg.File != "" {
			output = "file"
		}
	}

	if output != "stdout" && cfg.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
		closer = fileWriter
		handler = slog.NewJSONHandler(fileWriter, opts)
		if output == "both" {
			handler = newMultiHandler(slog.NewJSONHandler(stdout, opts), handler)
		}
	} else {
		handler = slog.NewJSONHandler(stdout, opts)
	}

	logger := slog.New(&TraceHandler{Handler: handler}).With(
		slog.String("service", cfg.Service),
		slog.String("module", cfg.Module),
	)

	return &Logger{
		Logger:  logger,
		Service: cfg.Service,
		Module:  cfg.Module,
		closer:  closer,
	}
}

// Init 按配置初始化全局默认日志记录器并设置为 slog 默认值，可重复调用。
func Init(cfg Config) *Logger {
	l := NewFromConfig(cfg)

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
	defaultLogger = l
	slog.SetDefault(l.Logger)
	return l
}

// LogDuration 记录操作耗时
func LogDuration(ctx context.Context, logger *slog.Logger, operation string, args ...any) func() {
	start := time.Now()
	return func() {
		logArgs := append(args, "duration", time.Since(start))
		logger.InfoContext(ctx, fmt.Sprintf("%s finished", operation), logArgs...)
	}
}
