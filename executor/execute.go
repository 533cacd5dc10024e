package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/config"
	"github.com/BaSui01/actionflow/internal/ctxkeys"
	"github.com/BaSui01/actionflow/internal/metrics"
	"github.com/BaSui01/actionflow/internal/pool"
	"github.com/BaSui01/actionflow/internal/telemetry"
	"github.com/BaSui01/actionflow/schema"
	"github.com/BaSui01/actionflow/types"

	"go.uber.org/zap"
)

// Options 装配 Executor 的依赖。零值字段使用安全默认：
// 缺省配置取 config 包默认值，缺省 Logger/Sink 为 noop，
// 缺省 Schemas 注册内置格式。Pool 缺省时 RunAsync 立即失败。
type Options struct {
	Config   config.ExecutorConfig
	Async    config.AsyncConfig
	Logger   *zap.Logger
	Registry *action.Registry
	Schemas  *schema.Engine
	Pool     *pool.WorkerPool
	Metrics  *metrics.Collector
	Sink     *telemetry.Sink
	History  *HistoryStore
}

// Executor 执行动作：参数校验、超时、重试退避、补偿与异步派发。
type Executor struct {
	cfg      config.ExecutorConfig
	async    config.AsyncConfig
	logger   *zap.Logger
	registry *action.Registry
	schemas  *schema.Engine
	pool     *pool.WorkerPool
	metrics  *metrics.Collector
	sink     *telemetry.Sink
	history  *HistoryStore
	workers  *workerRegistry
}

// New 创建 Executor。
func New(opts Options) *Executor {
	cfg := opts.Config
	if cfg == (config.ExecutorConfig{}) {
		cfg = config.DefaultExecutorConfig()
	}
	async := opts.Async
	if async == (config.AsyncConfig{}) {
		async = config.DefaultAsyncConfig()
	}
	// 部分填充的 AsyncConfig 逐项兜底：竞态宽限与信箱清理界限
	// 不允许因零值而消失
	asyncDefaults := config.DefaultAsyncConfig()
	if async.DefaultAwaitTimeout <= 0 {
		async.DefaultAwaitTimeout = asyncDefaults.DefaultAwaitTimeout
	}
	if async.Grace <= 0 {
		async.Grace = asyncDefaults.Grace
	}
	if async.CompensationGrace <= 0 {
		async.CompensationGrace = asyncDefaults.CompensationGrace
	}
	if async.WorkflowGrace <= 0 {
		async.WorkflowGrace = asyncDefaults.WorkflowGrace
	}
	if async.MailboxFlushLimit <= 0 {
		async.MailboxFlushLimit = asyncDefaults.MailboxFlushLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	schemas := opts.Schemas
	if schemas == nil {
		schemas = schema.NewEngine(logger)
	}
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.NewNopSink()
	}
	return &Executor{
		cfg:      cfg,
		async:    async,
		logger:   logger.With(zap.String("component", "executor")),
		registry: opts.Registry,
		schemas:  schemas,
		pool:     opts.Pool,
		metrics:  opts.Metrics,
		sink:     sink,
		history:  opts.History,
		workers:  newWorkerRegistry(),
	}
}

// Registry 返回装配的动作注册中心，可能为 nil。
func (e *Executor) Registry() *action.Registry {
	return e.registry
}

// DefaultTimeout 返回引擎默认执行超时。
func (e *Executor) DefaultTimeout() time.Duration {
	return e.cfg.DefaultTimeout
}

// ====== 单次尝试执行 ======

// Execute 执行一次动作尝试：参数校验 → 受超时约束的运行 → 严格的
// 返回形态分类 → 输出校验。timeout == 0 进入 timeout-zero 模式，
// 负值回落到引擎默认超时。
func (e *Executor) Execute(ctx context.Context, act action.Action, params map[string]any, timeout time.Duration) types.Outcome {
	if act == nil {
		return types.Fail(types.NewInvalidInput("action is nil"))
	}
	return e.executeAttempt(ctx, act, e.metadataFor(act), params, timeout)
}

func (e *Executor) executeAttempt(ctx context.Context, act action.Action, meta action.Metadata, params map[string]any, timeout time.Duration) types.Outcome {
	if timeout < 0 {
		timeout = e.cfg.DefaultTimeout
	}

	// 参数校验先行：失败是 invalid_input，永不重试
	params, failed := e.validateParams(act, meta, params)
	if failed != nil {
		return types.Fail(failed)
	}

	if timeout == 0 {
		if e.cfg.TimeoutZeroMode == config.TimeoutZeroImmediate {
			return types.Fail(types.NewTimeout("Action timed out after 0s").
				WithDetail(types.DetailTimeout, time.Duration(0)))
		}
		// legacy-direct：无并发边界内联执行，终止分类照常适用
		return e.validateOutcome(e.runInline(ctx, act, params), act, meta)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 带缓冲的 channel 防止 goroutine 泄漏：
	// 即使超时后没人接收，worker 也能正常退出
	resCh := make(chan types.Outcome, 1)

	go func() {
		outcome := types.Fail(types.NewExecutionFailure(
			"action exited: worker terminated without result"))
		defer func() {
			if r := recover(); r != nil {
				outcome = classifyPanic(r)
			}
			select {
			case resCh <- outcome:
			case <-execCtx.Done():
			}
		}()
		outcome = e.invokeAction(execCtx, act, params)
	}()

	select {
	case out := <-resCh:
		return e.validateOutcome(out, act, meta)
	case <-execCtx.Done():
		if ctx.Err() != nil {
			// 父 context 被取消：引擎强制终止，区别于尝试自身超时
			return types.Fail(types.NewExecutionFailure(
				fmt.Sprintf("action killed: %v", ctx.Err())).WithCause(ctx.Err()))
		}
		e.logWith(ctx).Warn("action execution timeout",
			zap.String("action", act.Name()),
			zap.Duration("timeout", timeout),
		)
		return types.Fail(types.NewTimeout(
			fmt.Sprintf("Action timed out after %s", timeout)).
			WithDetail(types.DetailTimeout, timeout))
	}
}

// runInline 在调用方 goroutine 内执行（timeout-zero legacy-direct 模式）。
func (e *Executor) runInline(ctx context.Context, act action.Action, params map[string]any) (out types.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = classifyPanic(r)
		}
	}()
	return e.invokeAction(ctx, act, params)
}

// invokeAction 运行生命周期钩子与动作体，并在动态边界做严格形态分类。
func (e *Executor) invokeAction(ctx context.Context, act action.Action, params map[string]any) types.Outcome {
	if h, ok := act.(action.BeforeRunner); ok {
		if err := h.BeforeRun(ctx, params); err != nil {
			return types.Fail(types.Normalize(err))
		}
	}
	out := types.ParseOutcome(act.Run(ctx, params))
	if h, ok := act.(action.AfterRunner); ok {
		h.AfterRun(ctx, params, out)
	}
	return out
}

// validateParams 应用动作自带校验或声明的参数模式。
func (e *Executor) validateParams(act action.Action, meta action.Metadata, params map[string]any) (map[string]any, *types.Error) {
	if v, ok := act.(action.ParamsValidator); ok {
		if err := v.ValidateParams(params); err != nil {
			return nil, validationError(err)
		}
		return params, nil
	}
	if meta.Params != nil {
		normalized, err := e.schemas.Validate(meta.Params, params)
		if err != nil {
			return nil, coerceTyped(err)
		}
		return normalized, nil
	}
	return params, nil
}

// validateOutcome 对 Ok 结果应用输出校验；校验失败归为 invalid_input。
func (e *Executor) validateOutcome(out types.Outcome, act action.Action, meta action.Metadata) types.Outcome {
	if !out.IsOk() {
		return out
	}
	if v, ok := act.(action.OutputValidator); ok {
		if err := v.ValidateOutput(out.Value()); err != nil {
			return types.Fail(validationError(err))
		}
		return out
	}
	if meta.Output != nil {
		normalized, err := e.schemas.Validate(meta.Output, out.Value())
		if err != nil {
			return types.Fail(coerceTyped(err))
		}
		if d, ok := out.Directive(); ok {
			return types.OkWith(normalized, d)
		}
		return types.Ok(normalized)
	}
	return out
}

// classifyPanic 将 recover 到的值映射到稳定的终止类别前缀。
func classifyPanic(r any) types.Outcome {
	if reason, ok := types.AbortReason(r); ok {
		// 业务主动中止：携带显式不重试提示
		return types.Fail(types.NewErrorf(types.KindExecutionFailure,
			"action aborted: %v", reason).
			WithDetail(types.DetailReason, reason).
			WithDetail(types.DetailRetry, false))
	}
	if err, ok := r.(error); ok {
		return types.Fail(types.NewErrorf(types.KindExecutionFailure,
			"action raised: %v", err).WithCause(err))
	}
	return types.Fail(types.NewErrorf(types.KindExecutionFailure,
		"action threw: %v", r).WithDetail(types.DetailReason, r))
}

// validationError 保留校验器给出的引擎错误，其余归为 invalid_input。
func validationError(err error) *types.Error {
	if typed, ok := err.(*types.Error); ok {
		return typed
	}
	return types.NewInvalidInput(err.Error())
}

// coerceTyped 确保错误是结构化引擎错误。
func coerceTyped(err error) *types.Error {
	if typed, ok := err.(*types.Error); ok {
		return typed
	}
	return types.Normalize(err)
}

// metadataFor 解析动作元数据：注册中心 > 动作自述 > 零值。
func (e *Executor) metadataFor(act action.Action) action.Metadata {
	if e.registry != nil {
		if _, meta, err := e.registry.Get(act.Name()); err == nil {
			return meta
		}
	}
	if d, ok := act.(action.Describer); ok {
		return d.Describe()
	}
	return action.Metadata{}
}

// logWith 附加调用上下文中的 run/trace 身份。
func (e *Executor) logWith(ctx context.Context) *zap.Logger {
	lg := e.logger
	if id, ok := ctxkeys.RunID(ctx); ok {
		lg = lg.With(zap.String("run_id", id))
	}
	if id, ok := ctxkeys.TraceID(ctx); ok {
		lg = lg.With(zap.String("trace_id", id))
	}
	return lg
}

// statusOf 将结果映射到指标状态标签。
func statusOf(out types.Outcome) string {
	if out.IsOk() {
		return metrics.StatusOK
	}
	err := out.Err()
	if err == nil {
		return metrics.StatusError
	}
	if err.Kind == types.KindTimeout {
		return metrics.StatusTimeout
	}
	switch {
	case strings.HasPrefix(err.Message, "action raised:"),
		strings.HasPrefix(err.Message, "action threw:"):
		return metrics.StatusPanic
	case strings.HasPrefix(err.Message, "action aborted:"):
		return metrics.StatusAbort
	}
	return metrics.StatusError
}
