package workflow

import (
	"context"
	"time"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/types"
)

// StepKind 标识工作流步骤的类型。
type StepKind string

const (
	// StepKindStep 执行单条指令。
	StepKindStep StepKind = "step"
	// StepKindConverge 在汇聚点执行单条指令。
	StepKindConverge StepKind = "converge"
	// StepKindBranch 按条件分派到 Then / Else 子步骤之一。
	StepKindBranch StepKind = "branch"
	// StepKindParallel 并发执行一批指令。
	StepKindParallel StepKind = "parallel"
)

// ConditionFunc 在分支步骤上求值，入参是当前累积结果。
// 返回值必须是严格的 bool，其余类型按 invalid_condition 处理。
type ConditionFunc func(ctx context.Context, acc map[string]any) any

// Instruction 是工作流里的一条可执行指令。
type Instruction struct {
	Action action.Action
	Params map[string]any
	// Timeout 覆盖该指令的执行超时（>0 时生效），缺省用引擎默认。
	Timeout time.Duration
	// MaxRetries 是该指令的尝试预算，缺省单次执行不重试。
	MaxRetries int
}

// Step 是工作流定义中的一个步骤，Kind 决定哪些字段生效。
type Step struct {
	Kind StepKind
	// Instruction 由 step / converge 使用。
	Instruction *Instruction
	// Condition / Then / Else 由 branch 使用；未命中的分支指针可以为 nil。
	Condition ConditionFunc
	Then      *Step
	Else      *Step
	// Parallel 由 parallel 使用。
	Parallel []Instruction
}

// Definition 描述一个工作流。
type Definition struct {
	Name  string
	Steps []Step
	// Timeout 约束整个工作流；缺省取配置默认。
	Timeout time.Duration
	// MaxConcurrency 约束 parallel 步骤的并发度；缺省取配置默认。
	MaxConcurrency int
}

// Result 是一次工作流或计划执行的产出。
type Result struct {
	// Value 是最终的累积结果。
	Value map[string]any
	// Directive 是执行过程中最近一次出现的指示，原样透传。
	Directive any
}

// ParallelResult 是 parallel 批次中一条指令的结果，Value 与 Err 二选一。
type ParallelResult struct {
	Value map[string]any
	Err   *types.Error
}

// ResultsKey 是 parallel 步骤写入累积结果的键，值为 []ParallelResult。
const ResultsKey = "results"

// Do 构造一个单指令步骤。
func Do(act action.Action, params map[string]any) Step {
	return Step{Kind: StepKindStep, Instruction: &Instruction{Action: act, Params: params}}
}

// Converge 构造一个汇聚步骤。
func Converge(act action.Action, params map[string]any) Step {
	return Step{Kind: StepKindConverge, Instruction: &Instruction{Action: act, Params: params}}
}

// Branch 构造一个条件分支步骤。
func Branch(cond ConditionFunc, then, els Step) Step {
	return Step{Kind: StepKindBranch, Condition: cond, Then: &then, Else: &els}
}

// InParallel 构造一个并行批次步骤。
func InParallel(instrs ...Instruction) Step {
	return Step{Kind: StepKindParallel, Parallel: instrs}
}
