// =============================================================================
// 🧪 测试辅助动作
// =============================================================================
// 提供各包测试共用的脚本化动作与等待辅助
//
// 使用方法:
//
//	act := testutil.Scripted("charge", testutil.FailTimes(2, "transient"), ...)
//	blocker := testutil.Blocking("slow")
//	testutil.Eventually(t, func() bool { return condition }, time.Second)
// =============================================================================
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/actionflow/types"
)

// =============================================================================
// 🎯 脚本化动作
// =============================================================================

// ScriptStep 产生脚本化动作第 n 次调用的结果。
type ScriptStep func(ctx context.Context, params map[string]any) types.Outcome

// ScriptedAction 按脚本顺序逐次返回预设结果，超出脚本长度后重复
// 最后一步。记录每次调用的时间与参数，供测试断言重试间隔与次数。
type ScriptedAction struct {
	name  string
	steps []ScriptStep

	mu      sync.Mutex
	calls   int
	started []time.Time
	params  []map[string]any
}

// Scripted 创建脚本化动作。至少给一步；空脚本恒返回成功。
func Scripted(name string, steps ...ScriptStep) *ScriptedAction {
	return &ScriptedAction{name: name, steps: steps}
}

func (a *ScriptedAction) Name() string { return a.name }

func (a *ScriptedAction) Run(ctx context.Context, params map[string]any) types.Outcome {
	a.mu.Lock()
	n := a.calls
	a.calls++
	a.started = append(a.started, time.Now())
	a.params = append(a.params, params)
	a.mu.Unlock()

	if len(a.steps) == 0 {
		return types.Ok(map[string]any{"call": n + 1})
	}
	if n >= len(a.steps) {
		n = len(a.steps) - 1
	}
	return a.steps[n](ctx, params)
}

// Calls 返回动作被调用的次数。
func (a *ScriptedAction) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Gaps 返回相邻两次调用的时间间隔，用于断言退避增长。
func (a *ScriptedAction) Gaps() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	gaps := make([]time.Duration, 0, len(a.started))
	for i := 1; i < len(a.started); i++ {
		gaps = append(gaps, a.started[i].Sub(a.started[i-1]))
	}
	return gaps
}

// OkStep 返回成功结果的脚本步。
func OkStep(value map[string]any) ScriptStep {
	return func(context.Context, map[string]any) types.Outcome {
		return types.Ok(value)
	}
}

// FailStep 返回可重试执行失败的脚本步。
func FailStep(msg string) ScriptStep {
	return func(context.Context, map[string]any) types.Outcome {
		return types.Fail(types.NewExecutionFailure(msg))
	}
}

// FailTimes 展开为 n 个失败步；与 OkStep 连用构成"先败后成"脚本。
func FailTimes(n int, msg string) []ScriptStep {
	steps := make([]ScriptStep, n)
	for i := range steps {
		steps[i] = FailStep(msg)
	}
	return steps
}

// FlakyThenOk 创建先失败 failures 次再成功的动作。
func FlakyThenOk(name string, failures int, value map[string]any) *ScriptedAction {
	steps := append(FailTimes(failures, "transient failure"), OkStep(value))
	return Scripted(name, steps...)
}

// =============================================================================
// ⏳ 阻塞动作
// =============================================================================

// BlockingAction 阻塞到被 Release 或 ctx 取消，用于取消与超时测试。
type BlockingAction struct {
	name    string
	release chan struct{}
	once    sync.Once
	entered atomic.Int32
}

// Blocking 创建阻塞动作。
func Blocking(name string) *BlockingAction {
	return &BlockingAction{name: name, release: make(chan struct{})}
}

func (a *BlockingAction) Name() string { return a.name }

func (a *BlockingAction) Run(ctx context.Context, params map[string]any) types.Outcome {
	a.entered.Add(1)
	select {
	case <-a.release:
		return types.Ok(map[string]any{"released": true})
	case <-ctx.Done():
		return types.Fail(types.NewExecutionFailure("blocking action canceled"))
	}
}

// Release 放行所有阻塞中的调用。幂等。
func (a *BlockingAction) Release() {
	a.once.Do(func() { close(a.release) })
}

// Entered 返回已进入 Run 的调用次数。
func (a *BlockingAction) Entered() int {
	return int(a.entered.Load())
}

// =============================================================================
// 🔁 补偿记录
// =============================================================================

// CompensationRecorder 记录补偿调用，与 ScriptedAction 组合实现
// Compensator。compErr 非空时补偿本身失败。
type CompensationRecorder struct {
	*ScriptedAction
	CompErr error

	mu     sync.Mutex
	causes []*types.Error
}

// WithCompensation 给脚本化动作挂上可记录的补偿处理器。
func WithCompensation(act *ScriptedAction, compErr error) *CompensationRecorder {
	return &CompensationRecorder{ScriptedAction: act, CompErr: compErr}
}

func (c *CompensationRecorder) Compensate(ctx context.Context, params map[string]any, cause *types.Error) error {
	c.mu.Lock()
	c.causes = append(c.causes, cause)
	c.mu.Unlock()
	return c.CompErr
}

// Compensations 返回补偿被调用时收到的原始错误。
func (c *CompensationRecorder) Compensations() []*types.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Error(nil), c.causes...)
}

// =============================================================================
// ⏱️ 等待辅助
// =============================================================================

// Eventually 轮询 cond 直到为真或超时，超时则使测试失败。
func Eventually(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// Context 返回带超时并自动清理的测试上下文。
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
