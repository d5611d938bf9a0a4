package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/bookmark"
	"github.com/sells-group/aid-simulator/internal/catalog"
	"github.com/sells-group/aid-simulator/internal/config"
	"github.com/sells-group/aid-simulator/internal/estimate"
	"github.com/sells-group/aid-simulator/internal/localize"
	"github.com/sells-group/aid-simulator/internal/relevance"
	"github.com/sells-group/aid-simulator/internal/resilience"
	"github.com/sells-group/aid-simulator/internal/simulation"
	"github.com/sells-group/aid-simulator/internal/store"
	"github.com/sells-group/aid-simulator/pkg/anthropic"
)

// appEnv holds the services shared by the serve and simulate commands.
type appEnv struct {
	Store       store.Store
	Simulations *simulation.Service
	Bookmarks   *bookmark.Service

	redis *redis.Client
}

// Close drains pending result writes, then releases connections.
func (e *appEnv) Close() {
	if e.Simulations != nil {
		e.Simulations.Close()
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			zap.L().Warn("close redis", zap.Error(err))
		}
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		return store.NewSQLite(c.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// initEnv builds the simulation pipeline from configuration. The LLM stages
// are only wired when an Anthropic key is set.
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	env := &appEnv{Store: st}

	var client anthropic.Client
	if c.LLMEnabled() {
		client = anthropic.NewClient(c.Anthropic.Key, anthropic.Options{BaseURL: c.Anthropic.BaseURL})
	} else {
		zap.L().Info("no anthropic key configured, relevance uses keyword fallback and translation is off")
	}

	cache := env.relevanceCache(ctx, c.Relevance)
	classifier := relevance.New(relevance.Config{
		Enabled:        c.Relevance.Enabled,
		Model:          c.Relevance.Model,
		MaxTokens:      c.Relevance.MaxTokens,
		DescriptionMax: c.Relevance.DescriptionMax,
		SeniorAge:      c.Relevance.SeniorAge,
		CallTimeout:    callTimeout(c.Relevance.Upstream),
	}, client, resilience.NewGuard(guardConfig("relevance", c.Relevance.Upstream)), cache)

	var translator localize.Translator
	if client != nil && c.Localize.Enabled {
		translator = localize.NewLLMTranslator(client,
			resilience.NewGuard(guardConfig("translate", c.Localize.Upstream)),
			c.Localize.Model, c.Localize.MaxTokens)
	}
	localizer := localize.New(localize.Config{
		NativeLanguage: c.Localize.NativeLanguage,
		BatchSize:      c.Localize.BatchSize,
		Timeout:        callTimeout(c.Localize.Upstream),
	}, translator)

	env.Simulations = simulation.NewService(
		catalog.NewRetriever(st),
		classifier,
		estimate.New(),
		localizer,
		st,
		simulation.Options{
			PersistTimeout: time.Duration(c.Simulation.PersistTimeoutSecs) * time.Second,
			HistoryLimit:   c.Simulation.HistoryLimit,
		},
	)
	env.Bookmarks = bookmark.NewService(st)
	return env, nil
}

// relevanceCache builds the in-process cache and, when configured, layers
// the shared Redis tier behind it. An unreachable Redis is logged and skipped.
func (e *appEnv) relevanceCache(ctx context.Context, c config.RelevanceConfig) relevance.Cache {
	ttl := time.Duration(c.CacheTTLMins) * time.Minute
	local := relevance.NewMemoryCache(c.CacheSize, ttl)
	if c.RedisAddr == "" {
		return local
	}

	rdb := relevance.NewRedisClient(relevance.RedisOptions{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("redis unreachable, using in-process relevance cache only",
			zap.String("addr", c.RedisAddr), zap.Error(err))
		rdb.Close() //nolint:errcheck
		return local
	}
	e.redis = rdb
	return relevance.NewTieredCache(local, relevance.NewRedisCache(rdb, ttl))
}

// guardConfig converts upstream settings into a resilience guard config.
func guardConfig(name string, u config.UpstreamConfig) resilience.GuardConfig {
	retry := resilience.DefaultRetryConfig()
	if u.MaxAttempts > 0 {
		retry.MaxAttempts = u.MaxAttempts
	}
	if u.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(u.InitialBackoffMs) * time.Millisecond
	}

	breaker := resilience.DefaultCircuitBreakerConfig()
	if u.BreakerThreshold > 0 {
		breaker.FailureThreshold = u.BreakerThreshold
	}
	if u.BreakerResetSecs > 0 {
		breaker.ResetTimeout = time.Duration(u.BreakerResetSecs) * time.Second
	}

	return resilience.GuardConfig{
		Name:           name,
		RatePerSecond:  u.RatePerSecond,
		Burst:          u.Burst,
		AttemptTimeout: time.Duration(u.TimeoutMs) * time.Millisecond,
		Retry:          retry,
		Breaker:        breaker,
	}
}

// callTimeout bounds a whole guarded call: every attempt plus backoff.
func callTimeout(u config.UpstreamConfig) time.Duration {
	attempt := time.Duration(u.TimeoutMs) * time.Millisecond
	if attempt <= 0 {
		return 0
	}
	attempts := max(u.MaxAttempts, 1)
	backoff := time.Duration(u.InitialBackoffMs) * time.Millisecond * time.Duration(attempts)
	return attempt*time.Duration(attempts) + backoff
}
