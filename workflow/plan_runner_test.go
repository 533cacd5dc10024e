package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/plan"
	"github.com/BaSui01/actionflow/types"
)

// ---------------------------------------------------------------------------
// Plan execution
// ---------------------------------------------------------------------------

func TestExecutePlan_NilPlan(t *testing.T) {
	t.Parallel()

	it := newTestInterpreter(t)

	_, err := it.ExecutePlan(context.Background(), nil, nil)
	require.Error(t, err)

	var ferr *types.Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, types.KindInvalidInput, ferr.Kind)
}

func TestExecutePlan_CyclicPlanErrors(t *testing.T) {
	t.Parallel()

	it := newTestInterpreter(t)

	p := plan.New()
	require.NoError(t, p.Add("x", blockingAction("x", time.Millisecond), plan.WithDeps("y")))
	require.NoError(t, p.Add("y", blockingAction("y", time.Millisecond), plan.WithDeps("x")))

	_, err := it.ExecutePlan(context.Background(), p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependencies")
}

func TestExecutePlan_PhasesRunInOrderAndMerge(t *testing.T) {
	t.Parallel()

	it := newTestInterpreter(t)

	var mu sync.Mutex
	var order []string
	record := func(name string, result map[string]any) action.Action {
		return action.Func(name, func(ctx context.Context, params map[string]any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return result, nil
		})
	}
	merge := action.Raw("merge", func(ctx context.Context, params map[string]any) any {
		mu.Lock()
		order = append(order, "merge")
		mu.Unlock()
		return types.OkWith(map[string]any{"merged": true}, "archive")
	})

	p := plan.New()
	require.NoError(t, p.Add("init", record("init", map[string]any{"init": true})))
	require.NoError(t, p.Add("a", record("a", map[string]any{"a": 1}), plan.WithDeps("init")))
	require.NoError(t, p.Add("b", record("b", map[string]any{"b": 2}), plan.WithDeps("init")))
	require.NoError(t, p.Add("merge", merge, plan.WithDeps("a", "b")))

	res, err := it.ExecutePlan(context.Background(), p, map[string]any{"seed": 7})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.Equal(t, "init", order[0])
	assert.Equal(t, "merge", order[3])
	assert.ElementsMatch(t, []string{"a", "b"}, order[1:3])

	// 各阶段结果与输入一起进入累积，指示原样透传
	assert.Equal(t, 7, res.Value["seed"])
	assert.Equal(t, true, res.Value["init"])
	assert.Equal(t, 1, res.Value["a"])
	assert.Equal(t, 2, res.Value["b"])
	assert.Equal(t, true, res.Value["merged"])
	assert.Equal(t, "archive", res.Directive)
}

func TestExecutePlan_PhaseFailureShortCircuitsAndCancelsSiblings(t *testing.T) {
	t.Parallel()

	it := newTestInterpreter(t)
	var siblingCanceled, laterCalls atomic.Int32

	bad := action.Func("bad", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, fmt.Errorf("phase one broke")
	})
	sibling := action.Func("sibling", func(ctx context.Context, params map[string]any) (any, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return map[string]any{"sibling": true}, nil
		case <-ctx.Done():
			siblingCanceled.Add(1)
			return nil, ctx.Err()
		}
	})

	p := plan.New()
	require.NoError(t, p.Add("bad", bad))
	require.NoError(t, p.Add("sibling", sibling))
	require.NoError(t, p.Add("later", countingAction("later", &laterCalls, nil), plan.WithDeps("bad", "sibling")))

	start := time.Now()
	res, err := it.ExecutePlan(context.Background(), p, nil)
	require.Error(t, err)

	// 第一个失败取消同阶段兄弟指令并短路后续阶段，失败阶段不贡献累积
	assert.Contains(t, err.Error(), "phase one broke")
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, int32(0), laterCalls.Load())
	assert.Eventually(t, func() bool { return siblingCanceled.Load() == 1 },
		time.Second, 5*time.Millisecond)
	assert.NotContains(t, res.Value, "sibling")
}

func TestExecutePlan_InstructionOptsControlRetryAndTimeout(t *testing.T) {
	t.Parallel()

	it := newTestInterpreter(t)

	flaky, calls := flakyAction("flaky", 2)
	p := plan.New()
	require.NoError(t, p.Add("flaky", plan.Step{
		Action: flaky,
		Opts:   plan.Opts{MaxRetries: 3},
	}))

	res, err := it.ExecutePlan(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Value["attempts"])
	assert.Equal(t, int32(3), calls.Load())

	// 计划内步骤缺省单次执行，不继承执行器的默认预算
	flaky2, calls2 := flakyAction("flaky2", 1)
	p2 := plan.New()
	require.NoError(t, p2.Add("flaky2", flaky2))

	_, err = it.ExecutePlan(context.Background(), p2, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls2.Load())
}
