package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardConfig configures a Guard for one upstream.
type GuardConfig struct {
	// Name labels logs, e.g. "relevance" or "translate".
	Name string
	// RatePerSecond limits outbound calls. Zero disables the limiter.
	RatePerSecond float64
	Burst         int
	// AttemptTimeout bounds each individual attempt. Zero means no bound
	// beyond the caller's context.
	AttemptTimeout time.Duration
	Retry          RetryConfig
	Breaker        CircuitBreakerConfig
}

// Guard fronts one upstream with a circuit breaker around a retry loop,
// rate-limiting and time-boxing every attempt.
type Guard struct {
	name           string
	limiter        *rate.Limiter
	breaker        *CircuitBreaker
	retry          RetryConfig
	attemptTimeout time.Duration
}

// NewGuard builds a Guard. Caller cancellation never trips the breaker.
func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{
		name:           cfg.Name,
		retry:          cfg.Retry,
		attemptTimeout: cfg.AttemptTimeout,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	bcfg := cfg.Breaker
	if bcfg.ShouldTrip == nil {
		bcfg.ShouldTrip = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if bcfg.OnStateChange == nil {
		name := cfg.Name
		bcfg.OnStateChange = func(from, to CircuitState) {
			zap.L().Warn("upstream circuit state change",
				zap.String("upstream", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	g.breaker = NewCircuitBreaker(bcfg)

	if g.retry.OnRetry == nil {
		g.retry.OnRetry = RetryLogger(cfg.Name)
	}
	return g
}

// Name returns the upstream label.
func (g *Guard) Name() string { return g.name }

// State returns the breaker state.
func (g *Guard) State() CircuitState { return g.breaker.State() }

// Call runs fn under the guard and returns its value.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return ExecuteVal(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return DoVal(ctx, g.retry, func(ctx context.Context) (T, error) {
			return attempt(ctx, g, fn)
		})
	})
}

func attempt[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrapf(err, "%s: rate limit wait", g.name)
		}
	}
	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}
	return fn(ctx)
}
