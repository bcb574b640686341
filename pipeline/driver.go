// Package pipeline 把文本行解析为 RSSI 样本，逐个经过滤波与传播模型，输出 (原始, 平滑, 距离) 三元组.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/beaconrange/beacon"
	"github.com/wyfcoding/beaconrange/filter"
	"github.com/wyfcoding/beaconrange/metrics"
	"github.com/wyfcoding/beaconrange/propagation"
	"github.com/wyfcoding/beaconrange/text"
	"github.com/wyfcoding/beaconrange/tracing"
	"github.com/wyfcoding/beaconrange/xerrors"
)

// FieldSeparator 输出三元组的分隔符.
const FieldSeparator = ","

// sample 一个已解析的读数及其来源行号.
type sample struct {
	value int
	line  int
}

// Driver 执行一次批处理运行。每次 Run 都新建滤波器与信标，运行之间不共享状态.
// Driver 本身不可并发调用 Run。
type Driver struct {
	filterCfg filter.Config
	model     *propagation.Model
	tokenizer *text.Tokenizer
	precision int32
	rule      *SampleRule
	sink      Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option 配置 Driver.
type Option func(*Driver) error

// WithFilterConfig 指定每次运行所用平滑器的构造参数.
func WithFilterConfig(cfg filter.Config) Option {
	return func(d *Driver) error {
		d.filterCfg = cfg
		return nil
	}
}

// WithModel 指定共享的只读传播模型.
func WithModel(m *propagation.Model) Option {
	return func(d *Driver) error {
		d.model = m
		return nil
	}
}

// WithTokenizer 指定输入行的切分方式.
func WithTokenizer(t *text.Tokenizer) Option {
	return func(d *Driver) error {
		d.tokenizer = t
		return nil
	}
}

// WithPrecision 平滑值保留的小数位数，多余部分截断.
func WithPrecision(p int32) Option {
	return func(d *Driver) error {
		if p < 0 {
			return xerrors.Configuration(fmt.Sprintf("precision %d", p), nil)
		}
		d.precision = p
		return nil
	}
}

// WithSampleRule 编译并启用样本校验规则.
func WithSampleRule(source string) Option {
	return func(d *Driver) error {
		r, err := CompileRule(source)
		if err != nil {
			return err
		}
		d.rule = r
		return nil
	}
}

// WithSink 指定输出目标，未指定时只返回结果.
func WithSink(s Sink) Option {
	return func(d *Driver) error {
		d.sink = s
		return nil
	}
}

// WithLogger 指定运行日志，默认 slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) error {
		d.logger = l
		return nil
	}
}

// WithMetrics 启用样本与运行指标，nil 表示不采集.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) error {
		d.metrics = m
		return nil
	}
}

// New 创建 Driver。默认使用卡尔曼滤波、参考天线模型与默认分隔符.
func New(opts ...Option) (*Driver, error) {
	d := &Driver{
		filterCfg: filter.DefaultConfig(),
		model:     propagation.Default(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.tokenizer == nil {
		t, err := text.NewTokenizer(text.DefaultDelimiter, false)
		if err != nil {
			return nil, err
		}
		d.tokenizer = t
	}
	// 提前验证滤波器参数，避免在读取输入之后才失败
	if _, err := filter.New(d.filterCfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Run 处理一个信标的全部输入行，按输入顺序返回输出行.
// 所有行在第一个样本进入滤波器之前完成解析，任一 token 非法则整次运行失败.
// 输出失败时仍返回已计算的结果，同时返回 IO 错误.
func (d *Driver) Run(ctx context.Context, lines []string, address string, txPower int) (out []string, err error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	defer span.End()

	start := time.Now()
	logger := d.logger.With("beacon", address)
	defer func() {
		if err != nil {
			tracing.SetError(ctx, err)
			if e, ok := xerrors.FromError(err); ok {
				if id := tracing.GetTraceID(ctx); id != "" {
					e.WithContext("trace_id", id)
				}
			}
		}
		d.metrics.ObserveRun(address, start, err)
	}()

	tracing.AddTag(ctx, "beacon.address", address)
	tracing.AddTag(ctx, "beacon.tx_power", txPower)
	tracing.AddTag(ctx, "input.lines", len(lines))

	if strings.TrimSpace(address) == "" {
		return nil, xerrors.InvalidArg("beacon address must not be empty", nil)
	}

	samples, err := d.parse(lines)
	if err != nil {
		return nil, err
	}
	for i, s := range samples {
		if err := d.rule.Check(s, i); err != nil {
			return nil, err
		}
	}
	tracing.AddTag(ctx, "input.samples", len(samples))

	smoother, err := filter.New(d.filterCfg)
	if err != nil {
		return nil, err
	}
	b := beacon.New(address, txPower,
		beacon.WithFilter(smoother),
		beacon.WithModel(d.model),
		beacon.WithLogger(logger),
	)

	out = make([]string, 0, len(samples))
	for i, s := range samples {
		line, err := d.step(ctx, b, s, i, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}

	logger.InfoContext(ctx, "pipeline run computed", "samples", len(samples), "duration", time.Since(start))

	if d.sink == nil {
		return out, nil
	}
	if err := d.sink.WriteLines(ctx, out); err != nil {
		logger.ErrorContext(ctx, "failed to write output", "error", err)
		if xerrors.IsType(err, xerrors.ErrIO) {
			return out, err
		}
		return out, xerrors.IO("failed to write output", err).WithContext("beacon", address)
	}
	return out, nil
}

func (d *Driver) step(ctx context.Context, b *beacon.Beacon, s sample, index int, logger *slog.Logger) (string, error) {
	if err := b.SetRawSignal(ctx, float64(s.value)); err != nil {
		return "", err
	}
	dist, err := b.Distance(ctx)
	if err != nil {
		return "", err
	}
	smoothed, _ := b.Smoothed()

	if reason := unknownReason(dist); reason != "" {
		logger.WarnContext(ctx, "distance unavailable for sample",
			"line", s.line, "index", index, "sample", s.value, "reason", reason, "distance", dist)
		if d.metrics != nil {
			d.metrics.UnknownDistances.WithLabelValues(b.Address(), reason).Inc()
		}
	} else if d.metrics != nil {
		d.metrics.Distance.WithLabelValues(b.Address()).Observe(dist)
	}
	if d.metrics != nil {
		d.metrics.SamplesTotal.WithLabelValues(b.Address()).Inc()
	}

	return strings.Join([]string{
		strconv.Itoa(-s.value),
		d.formatSmoothed(-smoothed),
		strconv.FormatFloat(math.Floor(dist), 'f', 0, 64),
	}, FieldSeparator), nil
}

func unknownReason(dist float64) string {
	switch {
	case propagation.IsUnknown(dist):
		return metrics.ReasonUnknown
	case math.IsNaN(dist) || math.IsInf(dist, 0):
		return metrics.ReasonNonFinite
	default:
		return ""
	}
}

// formatSmoothed 截断（而非四舍五入）到 precision 位小数.
func (d *Driver) formatSmoothed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).Truncate(d.precision).StringFixed(d.precision)
}

func (d *Driver) parse(lines []string) ([]sample, error) {
	var samples []sample
	for i, tokens := range d.tokenizer.TokensAll(lines) {
		for _, tok := range tokens {
			// 16 位足够容纳任何 dBm 读数，取反也不会溢出
			v, err := strconv.ParseInt(tok, 10, 16)
			if err != nil {
				return nil, xerrors.Parse(fmt.Sprintf("line %d: token %q is not a 16-bit integer", i+1, tok), err).
					WithContext("line", i+1).
					WithContext("token", tok)
			}
			samples = append(samples, sample{value: int(v), line: i + 1})
		}
	}
	return samples, nil
}
