package plan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/types"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func noopAction(name string) action.Action {
	return action.Func(name, func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"done": true}, nil
	})
}

func newPlan(t *testing.T) *Plan {
	t.Helper()
	return New(WithLogger(zaptest.NewLogger(t)))
}

// panicName panics when its name is read, simulating a hostile action handle
// crossing the declarative boundary.
type panicName struct{}

func (panicName) Name() string { panic("no name for you") }
func (panicName) Run(ctx context.Context, params map[string]any) types.Outcome {
	return types.Ok(nil)
}

// ---------------------------------------------------------------------------
// Add: spec forms and validation
// ---------------------------------------------------------------------------

func TestPlan_AddBareAction(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("fetch", noopAction("fetch")))

	in, ok := p.Get("fetch")
	require.True(t, ok)
	assert.Equal(t, "fetch", in.Name)
	assert.Nil(t, in.Params)
	assert.Empty(t, in.DependsOn)
}

func TestPlan_AddStepWithParams(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("fetch", Step{
		Action: noopAction("fetch"),
		Params: map[string]any{"url": "https://example.com"},
	}))

	in, _ := p.Get("fetch")
	assert.Equal(t, "https://example.com", in.Params["url"])
}

func TestPlan_AddStepWithOpts(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("base", noopAction("base")))
	require.NoError(t, p.Add("fetch", Step{
		Action: noopAction("fetch"),
		Params: map[string]any{"url": "x"},
		Opts: Opts{
			Timeout:    5 * time.Second,
			MaxRetries: 2,
			DependsOn:  []string{"base"},
		},
	}))

	in, _ := p.Get("fetch")
	assert.Equal(t, 5*time.Second, in.Opts.Timeout)
	assert.Equal(t, 2, in.Opts.MaxRetries)
	// Declared deps are lifted onto the instruction itself.
	assert.Equal(t, []string{"base"}, in.DependsOn)
	assert.Nil(t, in.Opts.DependsOn)
}

func TestPlan_AddStepPointer(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("fetch", &Step{Action: noopAction("fetch")}))

	_, ok := p.Get("fetch")
	assert.True(t, ok)
}

func TestPlan_AddWithDepsOptionUnionsSpecDeps(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a")))
	require.NoError(t, p.Add("b", noopAction("b")))
	require.NoError(t, p.Add("c", Step{
		Action: noopAction("c"),
		Opts:   Opts{DependsOn: []string{"a", "b"}},
	}, WithDeps("b", "a")))

	in, _ := p.Get("c")
	assert.Equal(t, []string{"a", "b"}, in.DependsOn)
}

func TestPlan_AddRejectsMalformedSpecs(t *testing.T) {
	t.Parallel()

	p := newPlan(t)

	err := p.Add("", noopAction("x"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	err = p.Add("bad", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no action")

	err = p.Add("bad", Step{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no action")

	err = p.Add("bad", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported action spec")
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestPlan_AddRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("fetch", noopAction("fetch")))

	err := p.Add("fetch", noopAction("other"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step")
}

func TestPlan_NamesPreserveDeclarationOrder(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	for _, name := range []string{"z", "m", "a"} {
		require.NoError(t, p.Add(name, noopAction(name)))
	}

	assert.Equal(t, []string{"z", "m", "a"}, p.Names())
	assert.Equal(t, 3, p.Len())
}

// ---------------------------------------------------------------------------
// ParseDeps: the dynamic boundary
// ---------------------------------------------------------------------------

func TestParseDeps_AcceptedForms(t *testing.T) {
	t.Parallel()

	deps, err := ParseDeps(nil)
	require.NoError(t, err)
	assert.Nil(t, deps)

	deps, err = ParseDeps("init")
	require.NoError(t, err)
	assert.Equal(t, []string{"init"}, deps)

	deps, err = ParseDeps([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deps)

	deps, err = ParseDeps([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deps)
}

func TestParseDeps_RejectsNonSymbolicEntries(t *testing.T) {
	t.Parallel()

	for _, input := range []any{
		42,
		[]any{"a", 7},
		[]any{nil},
		[]string{"a", ""},
		"",
		map[string]any{"a": true},
	} {
		_, err := ParseDeps(input)
		require.Error(t, err, "input %#v should be rejected", input)
		assert.True(t, types.IsKind(err, types.KindInvalidInput))
		assert.Contains(t, err.Error(), "dependencies must be a list of step names")
	}
}

// ---------------------------------------------------------------------------
// DependsOn
// ---------------------------------------------------------------------------

func TestPlan_DependsOnUnions(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a")))
	require.NoError(t, p.Add("b", noopAction("b")))
	require.NoError(t, p.Add("c", noopAction("c"), WithDeps("a")))

	require.NoError(t, p.DependsOn("c", "b"))
	require.NoError(t, p.DependsOn("c", "a", "b")) // already present, no dupes

	in, _ := p.Get("c")
	assert.Equal(t, []string{"a", "b"}, in.DependsOn)
}

func TestPlan_DependsOnUnknownStep(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	err := p.DependsOn("ghost", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

func TestBuild_FromDeclarations(t *testing.T) {
	t.Parallel()

	p, err := Build([]Declaration{
		{Name: "init", Spec: noopAction("init")},
		{Name: "load", Spec: Step{
			Action: noopAction("load"),
			Opts:   Opts{DependsOn: []string{"init"}},
		}},
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"init", "load"}, p.Names())
	in, _ := p.Get("load")
	assert.Equal(t, []string{"init"}, in.DependsOn)
}

func TestBuild_StepFailureBecomesError(t *testing.T) {
	t.Parallel()

	_, err := Build([]Declaration{
		{Name: "ok", Spec: noopAction("ok")},
		{Name: "bad", Spec: "not an action"},
	}, WithLogger(zaptest.NewLogger(t)))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestBuild_RecoversPanicsFromSpecNormalization(t *testing.T) {
	t.Parallel()

	// The action's Name() panics while Add wires up the step; Build must
	// surface that as an error result instead of crashing the caller.
	_, err := Build([]Declaration{
		{Name: "bad", Spec: panicName{}},
	}, WithLogger(zaptest.NewLogger(t)))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
	assert.Contains(t, err.Error(), `invalid declaration for step "bad"`)
}

// ---------------------------------------------------------------------------
// Normalize: graph derivation and cycle detection
// ---------------------------------------------------------------------------

func TestNormalize_DiamondGraph(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("init", noopAction("init")))
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("init")))
	require.NoError(t, p.Add("b", noopAction("b"), WithDeps("init")))
	require.NoError(t, p.Add("merge", noopAction("merge"), WithDeps("a", "b")))

	g, instructions, err := p.Normalize()
	require.NoError(t, err)

	assert.Equal(t, []string{"init", "a", "b", "merge"}, g.Vertices)
	assert.Equal(t, []string{"a", "b"}, g.Edges["init"])
	assert.Equal(t, []string{"merge"}, g.Edges["a"])
	assert.Equal(t, []string{"merge"}, g.Edges["b"])

	require.Len(t, instructions, 4)
	assert.Equal(t, "init", instructions[0].Name)
	assert.Equal(t, "merge", instructions[3].Name)
}

func TestNormalize_UnknownDependency(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("ghost")))

	_, _, err := p.Normalize()
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
	assert.Contains(t, err.Error(), `unknown dependency "ghost"`)
}

func TestNormalize_DetectsDirectCycle(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("b")))
	require.NoError(t, p.Add("b", noopAction("b"), WithDeps("a")))

	_, _, err := p.Normalize()
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
	assert.Contains(t, err.Error(), "circular dependencies")
}

func TestNormalize_DetectsSelfDependency(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("a")))

	_, _, err := p.Normalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependencies")
}

func TestNormalize_CycleInDisconnectedSubgraph(t *testing.T) {
	t.Parallel()

	// The acyclic C→D island is declared (and therefore visited) first; the
	// A↔B cycle lives in a separate component and must still be found.
	p := newPlan(t)
	require.NoError(t, p.Add("c", noopAction("c")))
	require.NoError(t, p.Add("d", noopAction("d"), WithDeps("c")))
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("b")))
	require.NoError(t, p.Add("b", noopAction("b"), WithDeps("a")))

	_, _, err := p.Normalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependencies")
}

func TestNormalize_EmptyPlan(t *testing.T) {
	t.Parallel()

	g, instructions, err := newPlan(t).Normalize()
	require.NoError(t, err)
	assert.Empty(t, g.Vertices)
	assert.Empty(t, instructions)
}

// ---------------------------------------------------------------------------
// ExecutionPhases
// ---------------------------------------------------------------------------

func TestExecutionPhases_DiamondPartition(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("init", noopAction("init")))
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("init")))
	require.NoError(t, p.Add("b", noopAction("b"), WithDeps("init")))
	require.NoError(t, p.Add("merge", noopAction("merge"), WithDeps("a", "b")))

	phases, err := p.ExecutionPhases()
	require.NoError(t, err)

	require.Len(t, phases, 3)
	assert.Equal(t, []string{"init"}, phases[0])
	assert.ElementsMatch(t, []string{"a", "b"}, phases[1])
	assert.Equal(t, []string{"merge"}, phases[2])
}

func TestExecutionPhases_LinearChain(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a")))
	require.NoError(t, p.Add("b", noopAction("b"), WithDeps("a")))
	require.NoError(t, p.Add("c", noopAction("c"), WithDeps("b")))

	phases, err := p.ExecutionPhases()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, phases)
}

func TestExecutionPhases_IndependentStepsShareOnePhase(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a")))
	require.NoError(t, p.Add("b", noopAction("b")))
	require.NoError(t, p.Add("c", noopAction("c")))

	phases, err := p.ExecutionPhases()
	require.NoError(t, err)
	require.Len(t, phases, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, phases[0])
}

func TestExecutionPhases_EmptyPlan(t *testing.T) {
	t.Parallel()

	phases, err := newPlan(t).ExecutionPhases()
	require.NoError(t, err)
	assert.Empty(t, phases)
}

func TestExecutionPhases_PropagatesCycleError(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("a", noopAction("a"), WithDeps("b")))
	require.NoError(t, p.Add("b", noopAction("b"), WithDeps("a")))

	_, err := p.ExecutionPhases()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependencies")
}

// ---------------------------------------------------------------------------
// ToDeclarations: minimal serialization and round-trip
// ---------------------------------------------------------------------------

func TestToDeclarations_MinimalForms(t *testing.T) {
	t.Parallel()

	bare := noopAction("bare")
	p := newPlan(t)
	require.NoError(t, p.Add("bare", bare))
	require.NoError(t, p.Add("with-params", Step{
		Action: noopAction("with-params"),
		Params: map[string]any{"n": 1},
	}))
	require.NoError(t, p.Add("with-deps", noopAction("with-deps"), WithDeps("bare")))

	decls := p.ToDeclarations()
	require.Len(t, decls, 3)

	// No params, no opts: degenerates to the bare action form.
	assert.Equal(t, "bare", decls[0].Name)
	assert.Same(t, bare, decls[0].Spec)

	// Params only: Step without opts.
	step, ok := decls[1].Spec.(Step)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"n": 1}, step.Params)
	assert.True(t, step.Opts.isZero())

	// Deps fold back into the opts position.
	step, ok = decls[2].Spec.(Step)
	require.True(t, ok)
	assert.Nil(t, step.Params)
	assert.Equal(t, []string{"bare"}, step.Opts.DependsOn)
}

func TestToDeclarations_RoundTripsThroughBuild(t *testing.T) {
	t.Parallel()

	p := newPlan(t)
	require.NoError(t, p.Add("init", noopAction("init")))
	require.NoError(t, p.Add("a", Step{
		Action: noopAction("a"),
		Params: map[string]any{"k": "v"},
		Opts:   Opts{Timeout: time.Second, MaxRetries: 1},
	}, WithDeps("init")))
	require.NoError(t, p.Add("merge", noopAction("merge"), WithDeps("init", "a")))

	rebuilt, err := Build(p.ToDeclarations(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, p.Names(), rebuilt.Names())
	for _, name := range p.Names() {
		want, _ := p.Get(name)
		got, ok := rebuilt.Get(name)
		require.True(t, ok, "step %q lost in round-trip", name)
		assert.Equal(t, want.DependsOn, got.DependsOn)
		assert.Equal(t, want.Params, got.Params)
		assert.Equal(t, want.Opts.Timeout, got.Opts.Timeout)
		assert.Equal(t, want.Opts.MaxRetries, got.Opts.MaxRetries)
	}

	wantPhases, err := p.ExecutionPhases()
	require.NoError(t, err)
	gotPhases, err := rebuilt.ExecutionPhases()
	require.NoError(t, err)
	assert.Equal(t, wantPhases, gotPhases)
}

func TestNew_DefaultLoggerIsSilent(t *testing.T) {
	t.Parallel()

	// 库默认不往调用方的 stdout 写日志，与执行器/解释器的兜底一致
	p := New()
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.ErrorLevel} {
		assert.False(t, p.logger.Core().Enabled(lvl), "level %v", lvl)
	}

	custom := New(WithLogger(zaptest.NewLogger(t)))
	assert.True(t, custom.logger.Core().Enabled(zapcore.ErrorLevel))
}
