// Package config 提供了统一的配置加载与管理能力：TOML 文件、BEACON_ 环境变量与命令行参数逐级覆盖.
package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wyfcoding/beaconrange/filter"
	"github.com/wyfcoding/beaconrange/idgen"
	"github.com/wyfcoding/beaconrange/logging"
	"github.com/wyfcoding/beaconrange/metrics"
	"github.com/wyfcoding/beaconrange/propagation"
	"github.com/wyfcoding/beaconrange/text"
	"github.com/wyfcoding/beaconrange/tracing"
	"github.com/wyfcoding/beaconrange/validator"
	"github.com/wyfcoding/beaconrange/xerrors"
)

// EnvPrefix 环境变量前缀，例如 BEACON_LOG_LEVEL.
const EnvPrefix = "BEACON"

// ErrNoJobs 既没有命令行任务也没有配置文件任务.
var ErrNoJobs = errors.New("no jobs configured: pass --bssid or define [[jobs]]")

// Config 全局顶级配置结构.
type Config struct {
	Version   string         `mapstructure:"version"   toml:"version"`
	Log       logging.Config `mapstructure:"log"       toml:"log"`
	Metrics   metrics.Config `mapstructure:"metrics"   toml:"metrics"`
	Tracing   tracing.Config `mapstructure:"tracing"   toml:"tracing"`
	Snowflake idgen.Config   `mapstructure:"snowflake" toml:"snowflake"`
	Minio     MinioConfig    `mapstructure:"minio"     toml:"minio"`
	Filter    filter.Config  `mapstructure:"filter"    toml:"filter"`
	Antenna   AntennaConfig  `mapstructure:"antenna"   toml:"antenna"`
	Pipeline  PipelineConfig `mapstructure:"pipeline"  toml:"pipeline"`
	Jobs      []JobConfig    `mapstructure:"jobs"      toml:"jobs"      validate:"dive"`
}

// MinioConfig 定义 S3 兼容对象存储 MinIO 的连接参数，Endpoint 为空时不支持 s3:// 位置.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"          toml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"     toml:"access_key_id"     validate:"required_with=Endpoint"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key" validate:"required_with=Endpoint"`
	UseSSL          bool   `mapstructure:"use_ssl"           toml:"use_ssl"`
	Region          string `mapstructure:"region"            toml:"region"`
}

// AntennaConfig 参考天线的传播模型系数与默认发射功率.
type AntennaConfig struct {
	A       float64 `mapstructure:"a"        toml:"a"`
	B       float64 `mapstructure:"b"        toml:"b"`
	C       float64 `mapstructure:"c"        toml:"c"`
	TxPower int     `mapstructure:"tx_power" toml:"tx_power" validate:"ne=0"`
}

// Model 构造只读传播模型.
func (a AntennaConfig) Model() *propagation.Model {
	return propagation.NewModel(a.A, a.B, a.C)
}

// PipelineConfig 输入解析与并发参数.
type PipelineConfig struct {
	Delimiter      string `mapstructure:"delimiter"       toml:"delimiter"`
	IgnoreCase     bool   `mapstructure:"ignore_case"     toml:"ignore_case"`
	Precision      int32  `mapstructure:"precision"       toml:"precision"       validate:"gte=0,lte=6"`
	SampleRule     string `mapstructure:"sample_rule"     toml:"sample_rule"`
	MaxConcurrency int    `mapstructure:"max_concurrency" toml:"max_concurrency" validate:"gte=1"`
}

// JobConfig 单个信标的一次批处理任务，信标之间互不融合.
type JobConfig struct {
	BSSID   string `mapstructure:"bssid"    toml:"bssid"    validate:"required,bssid"`
	Input   string `mapstructure:"input"    toml:"input"    validate:"required"`
	Output  string `mapstructure:"output"   toml:"output"   validate:"required"`
	TxPower int    `mapstructure:"tx_power" toml:"tx_power"` // 0 表示沿用 antenna.tx_power
}

// 命令行参数名.
const (
	FlagConfig     = "config"
	FlagBSSID      = "bssid"
	FlagInput      = "input-source"
	FlagOutput     = "output-source"
	FlagIgnoreCase = "ignore-case"
	FlagTxPower    = "tx-power"
)

// NewFlagSet 定义命令行参数.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP(FlagConfig, "c", "", "path to a TOML config file")
	fs.StringP(FlagBSSID, "b", "", "access point bssid")
	fs.String(FlagInput, "", "input location (path or s3://bucket/key)")
	fs.String(FlagOutput, "", "output location (path or s3://bucket/key)")
	fs.BoolP(FlagIgnoreCase, "i", false, "lower-case tokens before parsing")
	fs.Int(FlagTxPower, propagation.DefaultTxPower, "reference tx power in dBm")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "dev")

	v.SetDefault("log.service", "beaconrange")
	v.SetDefault("log.module", "pipeline")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.push_gateway", "")
	v.SetDefault("metrics.job", "beaconrange")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "beaconrange")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("snowflake.type", idgen.TypeSnowflake)
	v.SetDefault("snowflake.start_time", "2024-01-01")
	v.SetDefault("snowflake.machine_id", 1)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.region", "")

	fc := filter.DefaultConfig()
	v.SetDefault("filter.kind", fc.Kind)
	v.SetDefault("filter.process_noise", fc.ProcessNoise)
	v.SetDefault("filter.measurement_noise", fc.MeasurementNoise)
	v.SetDefault("filter.alpha", fc.Alpha)

	v.SetDefault("antenna.a", propagation.DefaultCoefficientA)
	v.SetDefault("antenna.b", propagation.DefaultCoefficientB)
	v.SetDefault("antenna.c", propagation.DefaultCoefficientC)
	v.SetDefault("antenna.tx_power", propagation.DefaultTxPower)

	v.SetDefault("pipeline.delimiter", text.DefaultDelimiter)
	v.SetDefault("pipeline.ignore_case", false)
	v.SetDefault("pipeline.precision", 0)
	v.SetDefault("pipeline.sample_rule", "")
	v.SetDefault("pipeline.max_concurrency", 4)
}

// Load 按 默认值 < 配置文件 < 环境变量 < 命令行 的优先级加载配置并校验.
// path 为空时不读文件；flags 可以为 nil.
// 命令行给出 --bssid 时，组成唯一的任务并替换文件中的 [[jobs]].
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, xerrors.Configuration("read config error", err).WithContext("path", path)
		}
	}

	if flags != nil {
		if f := flags.Lookup(FlagIgnoreCase); f != nil {
			if err := v.BindPFlag("pipeline.ignore_case", f); err != nil {
				return nil, xerrors.Configuration("bind flag", err)
			}
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, xerrors.Configuration("unmarshal config error", err)
	}

	if err := applyJobFlags(conf, flags); err != nil {
		return nil, err
	}
	for i := range conf.Jobs {
		if conf.Jobs[i].TxPower == 0 {
			conf.Jobs[i].TxPower = conf.Antenna.TxPower
		}
	}

	if err := Validate(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func applyJobFlags(conf *Config, flags *pflag.FlagSet) error {
	if flags == nil || !flags.Changed(FlagBSSID) {
		return nil
	}
	job := JobConfig{}
	var err error
	if job.BSSID, err = flags.GetString(FlagBSSID); err != nil {
		return xerrors.InvalidArg("--bssid", err)
	}
	if job.Input, err = flags.GetString(FlagInput); err != nil {
		return xerrors.InvalidArg("--input-source", err)
	}
	if job.Output, err = flags.GetString(FlagOutput); err != nil {
		return xerrors.InvalidArg("--output-source", err)
	}
	if job.TxPower, err = flags.GetInt(FlagTxPower); err != nil {
		return xerrors.InvalidArg("--tx-power", err)
	}
	if text.IsAnyEmpty(job.Input, job.Output) {
		return xerrors.Configuration("--bssid requires --input-source and --output-source", nil)
	}
	conf.Jobs = []JobConfig{job}
	return nil
}

// Validate 执行结构体校验，并要求至少存在一个任务.
func Validate(conf *Config) error {
	v := validator.New()
	v.RegisterStructValidation(validateIDGen, idgen.Config{})
	if err := v.Struct(conf); err != nil {
		return xerrors.Configuration("config validation failed", err)
	}
	if len(conf.Jobs) == 0 {
		return xerrors.Configuration("config validation failed", ErrNoJobs)
	}
	return nil
}

// validateIDGen 机器 ID 上限取决于生成器类型.
func validateIDGen(sl govalidator.StructLevel) {
	c, ok := sl.Current().Interface().(idgen.Config)
	if !ok {
		return
	}
	if limit := idgen.MaxMachineID(c.Type); c.MachineID > limit {
		sl.ReportError(c.MachineID, "MachineID", "machine_id", "lte", strconv.FormatInt(limit, 10))
	}
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(logger *slog.Logger, conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		logger.Error("failed to marshal config for printing", "error", err)

		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		logger.Error("failed to unmarshal config for masking", "error", unmarshalErr)

		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.Marshal(configMap)
	if marshalErr != nil {
		logger.Error("failed to marshal masked config", "error", marshalErr)

		return
	}

	logger.Debug("current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "accesskey", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = maskValue(val)

				break
			}
		}
	}
}

// maskValue 较长的字符串保留首尾各两位，其余一律整体遮盖.
func maskValue(val any) string {
	if s, ok := val.(string); ok && len(s) > 8 {
		return text.Mask(s, 2, 2)
	}
	return "******"
}
