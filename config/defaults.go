// =============================================================================
// 📦 ActionFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Executor:  DefaultExecutorConfig(),
		Async:     DefaultAsyncConfig(),
		Pool:      DefaultPoolConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultExecutorConfig 返回默认执行器配置
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:             30 * time.Second,
		DefaultMaxRetries:          3,
		DefaultBackoff:             1 * time.Second,
		MaxBackoff:                 30 * time.Second,
		BackoffJitter:              false,
		DefaultCompensationTimeout: 30 * time.Second,
		TimeoutZeroMode:            TimeoutZeroLegacyDirect,
	}
}

// DefaultAsyncConfig 返回默认异步协议配置
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		DefaultAwaitTimeout: 60 * time.Second,
		Grace:               100 * time.Millisecond,
		CompensationGrace:   100 * time.Millisecond,
		WorkflowGrace:       200 * time.Millisecond,
		MailboxFlushLimit:   100,
		InboxBuffer:         64,
	}
}

// DefaultPoolConfig 返回默认执行环境配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Enabled:     true,
		MaxWorkers:  100,
		QueueSize:   1000,
		IdleTimeout: 60 * time.Second,
	}
}

// DefaultWorkflowConfig 返回默认工作流配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxConcurrency: 8,
		DefaultTimeout: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Mode:         TelemetryModeSilent,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "actionflow",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "actionflow",
	}
}
