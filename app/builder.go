package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/beaconrange/config"
	"github.com/wyfcoding/beaconrange/idgen"
	"github.com/wyfcoding/beaconrange/logging"
	"github.com/wyfcoding/beaconrange/metrics"
	"github.com/wyfcoding/beaconrange/pipeline"
	"github.com/wyfcoding/beaconrange/storage"
	"github.com/wyfcoding/beaconrange/text"
	"github.com/wyfcoding/beaconrange/tracing"
	"github.com/wyfcoding/beaconrange/xerrors"
)

// Builder 根据配置组装日志、追踪、指标、存储与测距任务。
type Builder struct {
	serviceName string
	version     string
	conf        *config.Config
	store       storage.LineStore
	logger      *logging.Logger
}

// NewBuilder 创建一个新的应用构建器.
func NewBuilder(serviceName string) *Builder {
	return &Builder{serviceName: serviceName}
}

// WithConfig 设置已加载并校验过的配置.
func (b *Builder) WithConfig(conf *config.Config) *Builder {
	b.conf = conf

	return b
}

// WithVersion 设置构建版本，写入 build_info 指标.
func (b *Builder) WithVersion(v string) *Builder {
	b.version = v

	return b
}

// WithStore 替换默认的存储路由，主要用于测试.
func (b *Builder) WithStore(s storage.LineStore) *Builder {
	b.store = s

	return b
}

// WithLogger 使用现成的日志实例，不再按配置初始化全局日志.
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l

	return b
}

// Build 构建并组装完整的 App 实例.
func (b *Builder) Build() (*App, error) {
	if b.conf == nil {
		return nil, xerrors.Configuration("builder requires a config", nil)
	}
	cfg := b.conf

	loggerInstance := b.initLogger(cfg)
	logger := loggerInstance.Logger
	config.PrintWithMask(logger, cfg)

	var opts []Option
	opts = append(opts, WithCleanup("logger", func() { _ = loggerInstance.Close() }))

	opts = append(opts, b.tracingHook(cfg, logger))

	metricsInstance := metrics.NewMetrics(b.serviceName, b.version)
	opts = append(opts, WithHook(Hook{
		Name: "metrics",
		OnStop: func(ctx context.Context) error {
			return metricsInstance.Flush(ctx, cfg.Metrics)
		},
	}))

	gen, err := idgen.NewGenerator(cfg.Snowflake)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithRunID(idgen.RunID(gen)))

	store, err := b.initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokenizer, err := text.NewTokenizer(cfg.Pipeline.Delimiter, cfg.Pipeline.IgnoreCase)
	if err != nil {
		return nil, err
	}
	// 模型只读，所有任务共享
	model := cfg.Antenna.Model()

	for _, jc := range cfg.Jobs {
		jobLogger := logger.With("job", jc.BSSID)
		driver, err := pipeline.New(
			pipeline.WithFilterConfig(cfg.Filter),
			pipeline.WithModel(model),
			pipeline.WithTokenizer(tokenizer),
			pipeline.WithPrecision(cfg.Pipeline.Precision),
			pipeline.WithSampleRule(cfg.Pipeline.SampleRule),
			pipeline.WithSink(pipeline.NewLocationSink(store, jc.Output)),
			pipeline.WithLogger(jobLogger),
			pipeline.WithMetrics(metricsInstance),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithJob(newJob(jc, store, driver, jobLogger)))
	}

	opts = append(opts, WithMaxConcurrency(cfg.Pipeline.MaxConcurrency))

	return New(b.serviceName, logger, opts...), nil
}

func newJob(jc config.JobConfig, store storage.LineStore, driver *pipeline.Driver, logger *slog.Logger) Job {
	return Job{
		Name: fmt.Sprintf("%s (%s -> %s)", jc.BSSID, jc.Input, jc.Output),
		Run: func(ctx context.Context) error {
			done := logging.LogDuration(ctx, logger, "read input", "location", jc.Input)
			lines, err := store.ReadLines(ctx, jc.Input)
			done()
			if err != nil {
				return err
			}
			_, err = driver.Run(ctx, lines, jc.BSSID, jc.TxPower)
			return err
		},
	}
}

func (b *Builder) initLogger(cfg *config.Config) *logging.Logger {
	if b.logger != nil {
		return b.logger
	}
	logConfig := cfg.Log
	if logConfig.Service == "" {
		logConfig.Service = b.serviceName
	}
	return logging.Init(logConfig)
}

func (b *Builder) tracingHook(cfg *config.Config, logger *slog.Logger) Option {
	var shutdown func(context.Context) error
	return WithHook(Hook{
		Name: "tracing",
		OnStart: func(ctx context.Context) error {
			s, err := tracing.InitTracer(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			shutdown = s
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "failed to shutdown tracer", "error", err)
				return xerrors.IO("failed to shutdown tracer", err)
			}
			return nil
		},
	})
}

func (b *Builder) initStore(cfg *config.Config, logger *slog.Logger) (storage.LineStore, error) {
	if b.store != nil {
		return b.store, nil
	}
	var object storage.LineStore
	if cfg.Minio.Endpoint != "" {
		client, err := storage.NewMinIOClient(storage.MinIOOptions{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKeyID,
			SecretAccessKey: cfg.Minio.SecretAccessKey,
			UseSSL:          cfg.Minio.UseSSL,
			Region:          cfg.Minio.Region,
		}, logger)
		if err != nil {
			return nil, err
		}
		object = client
	}
	return storage.NewRouter(storage.NewLocal(), object), nil
}
