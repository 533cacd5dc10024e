package executor

import (
	"time"

	"github.com/BaSui01/actionflow/action"
)

// RunOption 调整单次 Run / RunAsync 调用的行为。
type RunOption func(*runOptions)

type runOptions struct {
	timeout    time.Duration
	timeoutSet bool

	maxRetries    int
	maxRetriesSet bool

	compensationTimeout    time.Duration
	compensationTimeoutSet bool

	noCompensation bool

	awaitTimeout    time.Duration
	awaitTimeoutSet bool
}

// WithTimeout 设置本次调用的执行超时。0 进入 timeout-zero 模式，
// 负值回落到引擎默认超时。
func WithTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.timeout = d
		o.timeoutSet = true
	}
}

// WithMaxRetries 设置本次调用的尝试预算（attempt < maxRetries 时重试）。
func WithMaxRetries(n int) RunOption {
	return func(o *runOptions) {
		o.maxRetries = n
		o.maxRetriesSet = true
	}
}

// WithCompensationTimeout 设置本次调用的补偿超时，优先级最高。
func WithCompensationTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.compensationTimeout = d
		o.compensationTimeoutSet = true
	}
}

// WithoutCompensation 跳过补偿，即便元数据声明了 Compensation.Enabled。
func WithoutCompensation() RunOption {
	return func(o *runOptions) {
		o.noCompensation = true
	}
}

// WithAwaitTimeout 设置 RunAsync 派发时记录的默认等待超时，
// Await 未显式给超时时采用。
func WithAwaitTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.awaitTimeout = d
		o.awaitTimeoutSet = true
	}
}

func buildOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// resolveTimeout 解析执行超时：调用级 > 动作元数据 > 引擎默认。
// 调用级 0 保留（timeout-zero 模式处理），负值回落默认。
func (o runOptions) resolveTimeout(meta action.Metadata, def time.Duration) time.Duration {
	if o.timeoutSet {
		if o.timeout < 0 {
			return def
		}
		return o.timeout
	}
	if meta.Timeout > 0 {
		return meta.Timeout
	}
	return def
}

// resolveMaxRetries 解析尝试预算：调用级 > 引擎默认。
func (o runOptions) resolveMaxRetries(def int) int {
	if o.maxRetriesSet {
		if o.maxRetries < 0 {
			return 0
		}
		return o.maxRetries
	}
	if def < 0 {
		return 0
	}
	return def
}

// resolveCompensationTimeout 解析补偿超时：
// 调用级补偿选项 > 元数据 Compensation.Timeout > 调用级执行超时选项 > 引擎默认。
func (o runOptions) resolveCompensationTimeout(meta action.Metadata, def time.Duration) time.Duration {
	if o.compensationTimeoutSet && o.compensationTimeout > 0 {
		return o.compensationTimeout
	}
	if meta.Compensation != nil && meta.Compensation.Timeout > 0 {
		return meta.Compensation.Timeout
	}
	if o.timeoutSet && o.timeout > 0 {
		return o.timeout
	}
	return def
}

// resolveAwaitTimeout 解析默认等待超时：派发选项 > 引擎默认。
func (o runOptions) resolveAwaitTimeout(def time.Duration) time.Duration {
	if o.awaitTimeoutSet && o.awaitTimeout > 0 {
		return o.awaitTimeout
	}
	return def
}
