// =============================================================================
// 📦 ActionFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("ACTIONFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// TimeoutZeroMode 控制 timeout == 0 时的执行行为
const (
	// TimeoutZeroLegacyDirect 直接在调用方 goroutine 内执行，无并发边界
	TimeoutZeroLegacyDirect = "legacy-direct"
	// TimeoutZeroImmediate 不执行动作，立即返回 Timeout{timeout: 0}
	TimeoutZeroImmediate = "immediate-timeout"
)

// Telemetry 模式
const (
	TelemetryModeFull    = "full"
	TelemetryModeMinimal = "minimal"
	TelemetryModeSilent  = "silent"
)

// Config 是 ActionFlow 引擎的完整配置结构
type Config struct {
	// Executor 执行器配置
	Executor ExecutorConfig `yaml:"executor" env:"EXECUTOR"`

	// Async 异步完成协议配置
	Async AsyncConfig `yaml:"async" env:"ASYNC"`

	// Pool 执行环境（goroutine 池）配置
	Pool PoolConfig `yaml:"pool" env:"POOL"`

	// Workflow 工作流解释器配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ExecutorConfig 执行器配置
type ExecutorConfig struct {
	// 默认执行超时
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	// 默认最大重试次数
	DefaultMaxRetries int `yaml:"default_max_retries" env:"DEFAULT_MAX_RETRIES"`
	// 默认初始退避时间
	DefaultBackoff time.Duration `yaml:"default_backoff" env:"DEFAULT_BACKOFF"`
	// 最大退避时间（指数增长的上限）
	MaxBackoff time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	// 是否为退避时间添加随机抖动
	BackoffJitter bool `yaml:"backoff_jitter" env:"BACKOFF_JITTER"`
	// 默认补偿超时
	DefaultCompensationTimeout time.Duration `yaml:"default_compensation_timeout" env:"DEFAULT_COMPENSATION_TIMEOUT"`
	// timeout == 0 的行为: legacy-direct | immediate-timeout
	TimeoutZeroMode string `yaml:"timeout_zero_mode" env:"TIMEOUT_ZERO_MODE"`
}

// AsyncConfig 异步完成协议配置
type AsyncConfig struct {
	// 默认 await 超时（独立于执行超时）
	DefaultAwaitTimeout time.Duration `yaml:"default_await_timeout" env:"DEFAULT_AWAIT_TIMEOUT"`
	// 正常退出信号后等待完成消息的宽限期
	Grace time.Duration `yaml:"grace" env:"GRACE"`
	// 补偿 worker 的退出宽限期
	CompensationGrace time.Duration `yaml:"compensation_grace" env:"COMPENSATION_GRACE"`
	// 工作流并行分支取消后的收尾宽限期
	WorkflowGrace time.Duration `yaml:"workflow_grace" env:"WORKFLOW_GRACE"`
	// 信箱噪音清理的扫描上限
	MailboxFlushLimit int `yaml:"mailbox_flush_limit" env:"MAILBOX_FLUSH_LIMIT"`
	// 每个 owner 信箱的缓冲容量
	InboxBuffer int `yaml:"inbox_buffer" env:"INBOX_BUFFER"`
}

// PoolConfig 执行环境配置
type PoolConfig struct {
	// 是否启用执行环境（禁用时 RunAsync 返回配置错误）
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 最大 worker 数
	MaxWorkers int `yaml:"max_workers" env:"MAX_WORKERS"`
	// 任务队列长度
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// 空闲 worker 回收时间
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// WorkflowConfig 工作流解释器配置
type WorkflowConfig struct {
	// parallel 步骤的最大并发度
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
	// 工作流级默认超时（0 表示不限制）
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 模式: full（span + 指标导出）| minimal（仅本地 span 事件）| silent（完全关闭）
	Mode string `yaml:"mode" env:"MODE"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用 Prometheus 指标
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "ACTIONFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch c.Executor.TimeoutZeroMode {
	case TimeoutZeroLegacyDirect, TimeoutZeroImmediate:
	default:
		errs = append(errs, fmt.Sprintf("invalid timeout_zero_mode %q", c.Executor.TimeoutZeroMode))
	}

	if c.Executor.DefaultTimeout <= 0 {
		errs = append(errs, "executor.default_timeout must be positive")
	}
	if c.Executor.DefaultMaxRetries < 0 {
		errs = append(errs, "executor.default_max_retries must not be negative")
	}
	if c.Executor.DefaultBackoff <= 0 {
		errs = append(errs, "executor.default_backoff must be positive")
	}

	if c.Async.DefaultAwaitTimeout <= 0 {
		errs = append(errs, "async.default_await_timeout must be positive")
	}
	if c.Async.Grace <= 0 {
		errs = append(errs, "async.grace must be positive")
	}
	if c.Async.MailboxFlushLimit <= 0 {
		errs = append(errs, "async.mailbox_flush_limit must be positive")
	}

	if c.Pool.Enabled && c.Pool.MaxWorkers <= 0 {
		errs = append(errs, "pool.max_workers must be positive when the pool is enabled")
	}

	if c.Workflow.MaxConcurrency <= 0 {
		errs = append(errs, "workflow.max_concurrency must be positive")
	}

	switch c.Telemetry.Mode {
	case TelemetryModeFull, TelemetryModeMinimal, TelemetryModeSilent:
	default:
		errs = append(errs, fmt.Sprintf("invalid telemetry mode %q", c.Telemetry.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
