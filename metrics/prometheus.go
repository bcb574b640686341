// Package metrics 为批处理任务提供 Prometheus 指标。
// 进程很短，不暴露 HTTP 端点，而是在结束时写 textfile 或推送到 Pushgateway。
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// Reason 无法给出有效距离的原因标签。
const (
	ReasonUnknown   = "unknown"    // 信号为 0，模型返回哨兵值
	ReasonNonFinite = "non_finite" // NaN 或 Inf
)

// Config 指标导出配置，两个目标都为空时只在内存中统计。
type Config struct {
	Textfile    string `mapstructure:"textfile" toml:"textfile"`
	PushGateway string `mapstructure:"push_gateway" toml:"push_gateway" validate:"omitempty,url"`
	Job         string `mapstructure:"job" toml:"job"`
}

// Metrics 封装了基于 Prometheus 的指标注册表及测距流水线的标准指标。
type Metrics struct {
	registry *prometheus.Registry

	SamplesTotal     *prometheus.CounterVec   // 已处理样本 (维度: beacon)
	UnknownDistances *prometheus.CounterVec   // 无效距离 (维度: beacon, reason)
	RunsTotal        *prometheus.CounterVec   // 运行次数 (维度: status)
	RunDuration      *prometheus.HistogramVec // 单次运行耗时
	Distance         *prometheus.HistogramVec // 有效距离分布
	BuildInfo        *prometheus.GaugeVec
	LastSuccess      prometheus.Gauge
}

// NewMetrics 初始化并返回一个新的指标采集器，自动注册 Go 运行时指标。
func NewMetrics(serviceName, version string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{registry: reg}

	m.SamplesTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_samples_processed_total",
		Help: "Total number of RSSI samples smoothed and ranged",
	}, []string{"beacon"})

	m.UnknownDistances = m.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_unknown_distances_total",
		Help: "Samples whose distance is the unknown sentinel or not finite",
	}, []string{"beacon", "reason"})

	m.RunsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_runs_total",
		Help: "Pipeline runs by outcome",
	}, []string{"status"})

	m.RunDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beacon_run_duration_seconds",
		Help:    "Pipeline run latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"beacon"})

	m.Distance = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beacon_distance_meters",
		Help:    "Estimated distance per sample",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	}, []string{"beacon"})

	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build information for the service",
	}, []string{"service", "version"})
	m.BuildInfo.WithLabelValues(orUnknown(serviceName), orUnknown(version)).Set(1)

	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run",
	})
	reg.MustRegister(m.LastSuccess)

	slog.Debug("metrics registry initialized", "service", serviceName)
	return m
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// ObserveRun 记录一次运行的结果与耗时。
func (m *Metrics) ObserveRun(beacon string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = xerrors.TypeOf(err).String()
	} else {
		m.LastSuccess.SetToCurrentTime()
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(beacon).Observe(time.Since(start).Seconds())
}

// WriteTextfile 以 node_exporter textfile 格式原子写出全部指标。
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return xerrors.IO("write metrics textfile", err).WithContext("path", path)
	}
	return nil
}

// Push 把全部指标推送到 Pushgateway，按 job 分组覆盖。
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = "beaconrange"
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return xerrors.IO("push metrics", err).WithContext("gateway", url)
	}
	return nil
}

// Flush 按配置导出指标，未配置的目标跳过。
func (m *Metrics) Flush(ctx context.Context, cfg Config) error {
	if m == nil {
		return nil
	}
	if cfg.Textfile != "" {
		if err := m.WriteTextfile(cfg.Textfile); err != nil {
			return err
		}
	}
	if cfg.PushGateway != "" {
		return m.Push(ctx, cfg.PushGateway, cfg.Job)
	}
	return nil
}
