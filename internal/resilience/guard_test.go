package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RetriesThenSucceeds(t *testing.T) {
	g := NewGuard(GuardConfig{Name: "relevance", Retry: fastRetry(3)})

	var calls int32
	v, err := Call(context.Background(), g, func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return "", NewTransientError(errors.New("overloaded"), 529)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), calls)
	assert.Equal(t, CircuitClosed, g.State())
}

func TestGuard_OpensAndFailsFast(t *testing.T) {
	g := NewGuard(GuardConfig{
		Name:    "translate",
		Retry:   fastRetry(1),
		Breaker: CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute},
	})

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), g, func(context.Context) (int, error) { return 0, errUpstream })
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, g.State())

	_, err := Call(context.Background(), g, func(context.Context) (int, error) {
		t.Fatal("must not be called while open")
		return 0, nil
	})
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestGuard_CancellationDoesNotTrip(t *testing.T) {
	g := NewGuard(GuardConfig{
		Name:    "relevance",
		Retry:   fastRetry(1),
		Breaker: CircuitBreakerConfig{FailureThreshold: 1},
	})
	_, err := Call(context.Background(), g, func(context.Context) (int, error) { return 0, context.Canceled })
	require.Error(t, err)
	assert.Equal(t, CircuitClosed, g.State())
}

func TestGuard_AttemptTimeout(t *testing.T) {
	g := NewGuard(GuardConfig{Name: "relevance", Retry: fastRetry(1), AttemptTimeout: 10 * time.Millisecond})

	_, err := Call(context.Background(), g, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	g := NewGuard(GuardConfig{Name: "translate", Retry: fastRetry(1), RatePerSecond: 0.001, Burst: 1})

	_, err := Call(context.Background(), g, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Call(ctx, g, func(context.Context) (int, error) { return 1, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, "translate", g.Name())
}
