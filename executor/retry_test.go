package executor

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/actionflow/types"
)

// ---------------------------------------------------------------------------
// ShouldRetry
// ---------------------------------------------------------------------------

func TestShouldRetry_NilError(t *testing.T) {
	t.Parallel()
	assert.False(t, ShouldRetry(nil, 1, 3))
}

func TestShouldRetry_NeverRetryKinds(t *testing.T) {
	t.Parallel()

	invalid := types.NewInvalidInput("bad params")
	config := types.NewConfiguration("bad setup")

	// kind alone decides, an explicit retry hint cannot override
	assert.False(t, ShouldRetry(invalid, 1, 10))
	assert.False(t, ShouldRetry(config, 1, 10))
	assert.False(t, ShouldRetry(invalid.WithDetail(types.DetailRetry, true), 1, 10))
}

func TestShouldRetry_UnexpectedShape(t *testing.T) {
	t.Parallel()

	out := types.ParseOutcome(42)
	require.True(t, out.IsErr())
	shaped := out.Err()
	require.True(t, shaped.UnexpectedShape())

	assert.False(t, ShouldRetry(shaped, 1, 10))
	assert.False(t, ShouldRetry(shaped.WithDetail(types.DetailRetry, true), 1, 10))
}

func TestShouldRetry_ExplicitHint(t *testing.T) {
	t.Parallel()

	noRetry := types.NewExecutionFailure("boom").WithDetail(types.DetailRetry, false)
	yesRetry := types.NewExecutionFailure("boom").WithDetail(types.DetailRetry, true)

	assert.False(t, ShouldRetry(noRetry, 1, 10))
	assert.True(t, ShouldRetry(yesRetry, 1, 10))
	assert.False(t, ShouldRetry(yesRetry, 10, 10))
}

func TestShouldRetry_DefaultTransient(t *testing.T) {
	t.Parallel()

	transient := types.NewExecutionFailure("connection reset")
	timeout := types.NewTimeout("Action timed out after 5s")
	internal := types.NewInternal("unexpected state")

	// no hint means default-retryable, gated only by the attempt budget
	assert.True(t, ShouldRetry(transient, 1, 3))
	assert.True(t, ShouldRetry(timeout, 2, 3))
	assert.True(t, ShouldRetry(internal, 1, 2))

	assert.False(t, ShouldRetry(transient, 3, 3))
	assert.False(t, ShouldRetry(transient, 1, 0))
	assert.False(t, ShouldRetry(transient, 1, 1))
}

func TestProperty_RetryBudgetGating(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("transient failures retry exactly while attempt < maxRetries", prop.ForAll(
		func(attempt, maxRetries int) bool {
			err := types.NewExecutionFailure("transient")
			return ShouldRetry(err, attempt, maxRetries) == (attempt < maxRetries)
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

// ---------------------------------------------------------------------------
// BackoffDelay
// ---------------------------------------------------------------------------

func TestPolicy_BackoffDelay_Doubling(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 5, BaseBackoff: time.Second, MaxBackoff: time.Minute}

	assert.Equal(t, 1*time.Second, p.BackoffDelay(1))
	assert.Equal(t, 2*time.Second, p.BackoffDelay(2))
	assert.Equal(t, 4*time.Second, p.BackoffDelay(3))
	assert.Equal(t, 8*time.Second, p.BackoffDelay(4))
}

func TestPolicy_BackoffDelay_Cap(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 10, BaseBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, 4*time.Second, p.BackoffDelay(3))
	assert.Equal(t, 5*time.Second, p.BackoffDelay(4))
	assert.Equal(t, 5*time.Second, p.BackoffDelay(10))
}

func TestPolicy_BackoffDelay_AttemptFloor(t *testing.T) {
	t.Parallel()

	p := Policy{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.BackoffDelay(0))
	assert.Equal(t, 100*time.Millisecond, p.BackoffDelay(-3))
}

func TestPolicy_BackoffDelay_JitterStaysInBounds(t *testing.T) {
	t.Parallel()

	p := Policy{BaseBackoff: time.Second, MaxBackoff: time.Minute, Jitter: true}

	for i := 0; i < 200; i++ {
		d := p.BackoffDelay(2) // nominal 2s
		assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
		assert.LessOrEqual(t, d, 2500*time.Millisecond)
	}
}

func TestProperty_BackoffDoublesBelowCap(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("without jitter each step doubles until the cap", prop.ForAll(
		func(attempt int) bool {
			p := Policy{BaseBackoff: 10 * time.Millisecond, MaxBackoff: time.Hour}
			return p.BackoffDelay(attempt+1) == 2*p.BackoffDelay(attempt)
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

// ---------------------------------------------------------------------------
// WaitBackoff
// ---------------------------------------------------------------------------

func TestWaitBackoff_Completes(t *testing.T) {
	t.Parallel()

	start := time.Now()
	err := WaitBackoff(context.Background(), 20*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitBackoff_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitBackoff(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitBackoff_NonPositiveDelay(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WaitBackoff(context.Background(), 0))
	assert.NoError(t, WaitBackoff(context.Background(), -time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitBackoff(ctx, 0), context.Canceled)
}
