package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/actionflow/config"
	"github.com/BaSui01/actionflow/executor"
	"github.com/BaSui01/actionflow/internal/ctxkeys"
	"github.com/BaSui01/actionflow/internal/metrics"
	"github.com/BaSui01/actionflow/internal/telemetry"
	"github.com/BaSui01/actionflow/types"
)

// ====== 工作流解释器 ======

// Options 装配 Interpreter 的依赖。零值字段使用安全默认：
// 缺省配置取 config 包默认值，缺省 Logger/Sink 为 noop。
type Options struct {
	Config config.WorkflowConfig
	// Grace 是工作流被取消后等待并行残留指令退出的窗口。
	Grace   time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Sink    *telemetry.Sink
}

// Interpreter 把工作流定义解释为对 Executor 的一连串调用。
// 它自身不做重试、超时或补偿，这些都由 Executor 在指令粒度上承担。
type Interpreter struct {
	exec    *executor.Executor
	cfg     config.WorkflowConfig
	grace   time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector
	sink    *telemetry.Sink
}

// New 创建工作流解释器。
func New(exec *executor.Executor, opts Options) *Interpreter {
	cfg := opts.Config
	if cfg == (config.WorkflowConfig{}) {
		cfg = config.DefaultWorkflowConfig()
	}
	grace := opts.Grace
	if grace <= 0 {
		grace = config.DefaultAsyncConfig().WorkflowGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.NewNopSink()
	}
	return &Interpreter{
		exec:    exec,
		cfg:     cfg,
		grace:   grace,
		logger:  logger.With(zap.String("component", "workflow")),
		metrics: opts.Metrics,
		sink:    sink,
	}
}

// ExecuteWorkflow 顺序执行工作流：每一步的结果合并进累积结果，
// 并作为下一步指令参数的底层输入；第一个失败的步骤短路整条工作流，
// 携带其错误与最近一次出现的指示返回。成功时返回最终累积结果。
func (it *Interpreter) ExecuteWorkflow(ctx context.Context, def Definition, input map[string]any) (*Result, error) {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = it.cfg.DefaultTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workflowID := uuid.NewString()
	wctx = ctxkeys.WithWorkflowID(wctx, workflowID)
	wctx, span := it.sink.SpanStart(wctx, "workflow.execute",
		attribute.String("workflow", def.Name),
		attribute.String("workflow_id", workflowID),
	)
	start := time.Now()

	acc := overlay(nil, input)
	var directive any
	for i := range def.Steps {
		if wctx.Err() != nil {
			ferr := it.interruption(ctx, timeout)
			it.recordWorkflow(def.Name, ferr, start)
			span.End(ferr)
			it.logger.Warn("workflow interrupted",
				zap.String("workflow", def.Name),
				zap.Int("step", i),
				zap.String("error", ferr.Message),
			)
			return &Result{Value: acc, Directive: directive}, ferr
		}

		stepResult, d, ferr := it.runStep(wctx, def, def.Steps[i], acc)
		if stepResult != nil {
			acc = overlay(acc, stepResult)
		}
		if d != nil {
			directive = d
		}
		if ferr != nil {
			it.recordWorkflow(def.Name, ferr, start)
			span.End(ferr)
			it.logger.Error("workflow failed",
				zap.String("workflow", def.Name),
				zap.Int("step", i),
				zap.String("kind", string(ferr.Kind)),
				zap.String("error", ferr.Message),
			)
			return &Result{Value: acc, Directive: directive}, ferr
		}
	}

	// 末步完成后若工作流预算已耗尽（典型是 parallel 批次被超时终结），
	// 整条工作流按中断收尾而不是报告成功。
	if wctx.Err() != nil {
		ferr := it.interruption(ctx, timeout)
		it.recordWorkflow(def.Name, ferr, start)
		span.End(ferr)
		it.logger.Warn("workflow interrupted",
			zap.String("workflow", def.Name),
			zap.Int("step", len(def.Steps)),
			zap.String("error", ferr.Message),
		)
		return &Result{Value: acc, Directive: directive}, ferr
	}

	it.recordWorkflow(def.Name, nil, start)
	span.End(nil)
	it.logger.Info("workflow completed",
		zap.String("workflow", def.Name),
		zap.Int("steps", len(def.Steps)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Value: acc, Directive: directive}, nil
}

// runStep 按步骤类型分派。返回该步骤对累积结果的贡献、携带的指示
// 以及失败错误；branch 递归进入被选中的子步骤。
func (it *Interpreter) runStep(ctx context.Context, def Definition, step Step, acc map[string]any) (map[string]any, any, *types.Error) {
	switch step.Kind {
	case StepKindStep, StepKindConverge:
		return it.runInstruction(ctx, step.Instruction, acc)
	case StepKindBranch:
		return it.runBranch(ctx, def, step, acc)
	case StepKindParallel:
		return it.runParallel(ctx, def, step.Parallel, acc)
	default:
		return nil, nil, types.NewErrorf(types.KindInvalidInput,
			"unknown workflow step kind %q", string(step.Kind)).
			WithDetail(types.DetailType, "invalid_step")
	}
}

func (it *Interpreter) runInstruction(ctx context.Context, in *Instruction, acc map[string]any) (map[string]any, any, *types.Error) {
	if in == nil || in.Action == nil {
		return nil, nil, types.NewInvalidInput("workflow step has no instruction").
			WithDetail(types.DetailType, "invalid_step")
	}

	out := it.exec.Run(ctx, in.Action, overlay(acc, in.Params), instructionOpts(in)...)
	d, _ := out.Directive()
	if !out.IsOk() {
		return nil, d, out.Err()
	}
	return out.Value(), d, nil
}

func (it *Interpreter) runBranch(ctx context.Context, def Definition, step Step, acc map[string]any) (map[string]any, any, *types.Error) {
	if step.Condition == nil {
		return nil, nil, types.NewInvalidInput("branch step has no condition").
			WithDetail(types.DetailType, "invalid_condition")
	}

	verdict, ferr := evalCondition(ctx, step.Condition, acc)
	if ferr != nil {
		return nil, nil, ferr
	}

	chosen := step.Else
	if verdict {
		chosen = step.Then
	}
	if chosen == nil {
		// if 无 else：未命中分支等价于空操作
		return nil, nil, nil
	}
	return it.runStep(ctx, def, *chosen, acc)
}

// evalCondition 求值分支条件并做严格布尔检查，条件代码的 panic
// 不会穿透解释器。
func evalCondition(ctx context.Context, cond ConditionFunc, acc map[string]any) (verdict bool, ferr *types.Error) {
	var raw any
	func() {
		defer func() {
			if r := recover(); r != nil {
				ferr = types.NewErrorf(types.KindInvalidInput, "branch condition raised: %v", r).
					WithDetail(types.DetailType, "invalid_condition").
					WithDetail(types.DetailReason, fmt.Sprint(r))
			}
		}()
		raw = cond(ctx, acc)
	}()
	if ferr != nil {
		return false, ferr
	}

	b, ok := raw.(bool)
	if !ok {
		return false, types.NewErrorf(types.KindInvalidInput,
			"branch condition must return a boolean, got %T", raw).
			WithDetail(types.DetailType, "invalid_condition")
	}
	return b, nil
}

// interruption 区分包围超时与上游取消。
func (it *Interpreter) interruption(parent context.Context, timeout time.Duration) *types.Error {
	if err := parent.Err(); err != nil {
		return types.NewErrorf(types.KindExecutionFailure, "workflow killed: %v", err).WithCause(err)
	}
	return types.NewTimeout(fmt.Sprintf("Workflow timed out after %s", timeout)).
		WithDetail(types.DetailTimeout, timeout)
}

func (it *Interpreter) recordWorkflow(name string, ferr *types.Error, start time.Time) {
	status := metrics.StatusOK
	switch {
	case ferr == nil:
	case ferr.Kind == types.KindTimeout:
		status = metrics.StatusTimeout
	default:
		status = metrics.StatusError
	}
	it.metrics.RecordWorkflowExecution(name, status, time.Since(start))
}

// instructionOpts 把指令选项映射为 Run 选项：预算总是显式传递，
// 因此未覆盖的指令默认单次执行。
func instructionOpts(in *Instruction) []executor.RunOption {
	opts := []executor.RunOption{executor.WithMaxRetries(in.MaxRetries)}
	if in.Timeout > 0 {
		opts = append(opts, executor.WithTimeout(in.Timeout))
	}
	return opts
}

// overlay 在 base 之上覆盖 over 的键，返回新 map，两个入参都不被修改。
func overlay(base, over map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}
