package action

import (
	"context"

	"github.com/BaSui01/actionflow/types"
)

// Action 是引擎调度的最小工作单元。
type Action interface {
	// Name returns the unique action name used for registration and logging.
	Name() string
	// Run executes the action against validated params. Implementations
	// report failure through the returned Outcome; the executor contains
	// panics, timeouts and contract violations on its own.
	Run(ctx context.Context, params map[string]any) types.Outcome
}

// RunFunc 是原始函数形态的动作签名，返回值经 ParseOutcome 分类。
type RunFunc func(ctx context.Context, params map[string]any) (any, error)

// CompensateFunc 是补偿处理器的函数形态。
type CompensateFunc func(ctx context.Context, params map[string]any, cause *types.Error) error

// ParamsValidator is implemented by actions that validate their own params
// instead of relying on a declared schema.
type ParamsValidator interface {
	ValidateParams(params map[string]any) error
}

// OutputValidator is implemented by actions that validate their own output
// instead of relying on a declared schema.
type OutputValidator interface {
	ValidateOutput(output map[string]any) error
}

// Compensator 由支持补偿的动作实现。重试耗尽后执行器调用 Compensate
// 撤销已发生的副作用；cause 是导致补偿的最终错误。
// 补偿仅在元数据同时声明 Compensation.Enabled 时触发。
type Compensator interface {
	Compensate(ctx context.Context, params map[string]any, cause *types.Error) error
}

// Describer is implemented by actions that carry their own metadata.
// Registry.Register falls back to it when no explicit metadata is supplied.
type Describer interface {
	Describe() Metadata
}

// BeforeRunner 在每次执行尝试前被调用；返回错误则该次尝试失败。
// 钩子与动作体一样受执行超时约束。
type BeforeRunner interface {
	BeforeRun(ctx context.Context, params map[string]any) error
}

// AfterRunner 在每次执行尝试结束后收到已分类的结果，仅作通知，
// 不能改变结果。
type AfterRunner interface {
	AfterRun(ctx context.Context, params map[string]any, outcome types.Outcome)
}

// ====== 适配器：函数即动作 ======

type funcAction struct {
	name string
	fn   RunFunc
}

// Func adapts an ordinary Go function into an Action. A non-nil error maps
// to a failure outcome; the result value crosses the dynamic boundary and is
// classified by types.ParseOutcome.
func Func(name string, fn RunFunc) Action {
	return &funcAction{name: name, fn: fn}
}

func (a *funcAction) Name() string { return a.name }

func (a *funcAction) Run(ctx context.Context, params map[string]any) types.Outcome {
	res, err := a.fn(ctx, params)
	if err != nil {
		return types.Fail(types.Normalize(err))
	}
	return types.ParseOutcome(res)
}

type rawAction struct {
	name string
	fn   func(ctx context.Context, params map[string]any) any
}

// Raw adapts a function whose single return value is entirely untyped, e.g.
// a plugin or script bridge. Every return passes through ParseOutcome.
func Raw(name string, fn func(ctx context.Context, params map[string]any) any) Action {
	return &rawAction{name: name, fn: fn}
}

func (a *rawAction) Name() string { return a.name }

func (a *rawAction) Run(ctx context.Context, params map[string]any) types.Outcome {
	return types.ParseOutcome(a.fn(ctx, params))
}

type compensableFunc struct {
	funcAction
	comp CompensateFunc
}

// CompensableFunc pairs a run function with a compensation handler. The
// returned action implements Compensator; compensation still has to be
// declared through Metadata.Compensation to take effect.
func CompensableFunc(name string, fn RunFunc, comp CompensateFunc) Action {
	return &compensableFunc{funcAction: funcAction{name: name, fn: fn}, comp: comp}
}

func (a *compensableFunc) Compensate(ctx context.Context, params map[string]any, cause *types.Error) error {
	return a.comp(ctx, params, cause)
}
