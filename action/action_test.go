package action

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/actionflow/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc_OkResult(t *testing.T) {
	act := Func("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"echo": params["msg"]}, nil
	})

	assert.Equal(t, "echo", act.Name())

	out := act.Run(context.Background(), map[string]any{"msg": "hi"})
	require.True(t, out.IsOk())
	assert.Equal(t, "hi", out.Value()["echo"])
}

func TestFunc_ErrorResult(t *testing.T) {
	act := Func("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("backend unavailable")
	})

	out := act.Run(context.Background(), nil)
	require.True(t, out.IsErr())
	assert.Equal(t, types.KindExecutionFailure, out.Err().Kind)
}

func TestFunc_TypedErrorPassthrough(t *testing.T) {
	want := types.NewInvalidInput("missing field")
	act := Func("strict", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, want
	})

	out := act.Run(context.Background(), nil)
	require.True(t, out.IsErr())
	assert.Equal(t, types.KindInvalidInput, out.Err().Kind)
	assert.Equal(t, "missing field", out.Err().Message)
}

func TestFunc_NilResultIsEmptyOk(t *testing.T) {
	act := Func("void", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, nil
	})

	out := act.Run(context.Background(), nil)
	require.True(t, out.IsOk())
	assert.Empty(t, out.Value())
}

func TestFunc_UnexpectedShape(t *testing.T) {
	act := Func("weird", func(ctx context.Context, params map[string]any) (any, error) {
		return 42, nil
	})

	out := act.Run(context.Background(), nil)
	require.True(t, out.IsErr())
	assert.True(t, out.Err().UnexpectedShape())
}

func TestRaw_DynamicBoundary(t *testing.T) {
	act := Raw("dynamic", func(ctx context.Context, params map[string]any) any {
		if params["fail"] == true {
			return errors.New("told to fail")
		}
		return map[string]any{"done": true}
	})

	ok := act.Run(context.Background(), map[string]any{})
	require.True(t, ok.IsOk())
	assert.Equal(t, true, ok.Value()["done"])

	fail := act.Run(context.Background(), map[string]any{"fail": true})
	require.True(t, fail.IsErr())
}

func TestRaw_OutcomePassthroughKeepsDirective(t *testing.T) {
	act := Raw("directive", func(ctx context.Context, params map[string]any) any {
		return types.OkWith(map[string]any{"v": 1}, "pause")
	})

	out := act.Run(context.Background(), nil)
	require.True(t, out.IsOk())
	d, ok := out.Directive()
	require.True(t, ok)
	assert.Equal(t, "pause", d)
}

func TestCompensableFunc_ImplementsCompensator(t *testing.T) {
	var compensated bool
	act := CompensableFunc("charge",
		func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{"charged": true}, nil
		},
		func(ctx context.Context, params map[string]any, cause *types.Error) error {
			compensated = true
			return nil
		},
	)

	comp, ok := act.(Compensator)
	require.True(t, ok, "CompensableFunc must implement Compensator")

	err := comp.Compensate(context.Background(), nil, types.NewExecutionFailure("final failure"))
	require.NoError(t, err)
	assert.True(t, compensated)
}

func TestMetadata_IsZero(t *testing.T) {
	assert.True(t, Metadata{}.IsZero())
	assert.False(t, Metadata{Description: "x"}.IsZero())
	assert.False(t, Metadata{Compensation: &CompensationSpec{}}.IsZero())
	assert.False(t, Metadata{RateLimit: &RateLimitConfig{MaxCalls: 1}}.IsZero())
}

func TestMetadata_CompensationEnabled(t *testing.T) {
	assert.False(t, Metadata{}.CompensationEnabled())
	assert.False(t, Metadata{Compensation: &CompensationSpec{}}.CompensationEnabled())
	assert.True(t, Metadata{Compensation: &CompensationSpec{Enabled: true}}.CompensationEnabled())
}
