// Package relevance decides which eligible programs are topically relevant to
// a situation, using an LLM with a deterministic keyword fallback.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/aid-simulator/internal/metrics"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/resilience"
	"github.com/sells-group/aid-simulator/pkg/anthropic"
)

// Config configures a Classifier.
type Config struct {
	Enabled        bool
	Model          string
	MaxTokens      int64
	DescriptionMax int
	SeniorAge      int
	// CallTimeout bounds the detached upstream call, retries included.
	CallTimeout time.Duration
}

// Result is the outcome of one classification.
type Result struct {
	Retained  []model.ProgramRecord
	Decisions []model.EligibilityDecision
	Path      model.RelevancePath
}

// Classifier is safe for concurrent use. The cache and the singleflight group
// are the only shared state.
type Classifier struct {
	cfg      Config
	prompt   string
	client   anthropic.Client
	guard    *resilience.Guard
	cache    Cache
	fallback Fallback
	group    singleflight.Group
}

// New creates a Classifier. A nil client or cfg.Enabled=false makes every call
// use the keyword fallback. A nil cache disables caching.
func New(cfg Config, client anthropic.Client, guard *resilience.Guard, cache Cache) *Classifier {
	if cfg.SeniorAge <= 0 {
		cfg.SeniorAge = 60
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if guard == nil {
		guard = resilience.NewGuard(resilience.GuardConfig{
			Name:    "relevance",
			Retry:   resilience.DefaultRetryConfig(),
			Breaker: resilience.DefaultCircuitBreakerConfig(),
		})
	}
	return &Classifier{
		cfg:      cfg,
		prompt:   fmt.Sprintf(systemPrompt, cfg.SeniorAge),
		client:   client,
		guard:    guard,
		cache:    cache,
		fallback: Fallback{SeniorAge: cfg.SeniorAge},
	}
}

// Enabled reports whether the LLM path is active.
func (c *Classifier) Enabled() bool {
	return c.cfg.Enabled && c.client != nil
}

// Classify returns the relevant candidates in input order. It never fails:
// every upstream problem degrades to the keyword fallback.
func (c *Classifier) Classify(ctx context.Context, s model.UserSituation, candidates []model.ProgramRecord) Result {
	if len(candidates) == 0 {
		metrics.RelevanceDecisionsTotal.WithLabelValues(string(model.RelevanceSkipped)).Inc()
		return Result{Path: model.RelevanceSkipped}
	}
	if !c.Enabled() {
		return c.degrade(candidates, s, "disabled", nil)
	}

	key := Key(s, candidates)
	if c.cache != nil {
		if ids, ok := c.cache.Get(ctx, key); ok {
			return c.retain(candidates, ids, model.RelevanceCache)
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
		defer cancel()

		ids, err := c.classifyLLM(callCtx, s, candidates)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Set(callCtx, key, ids)
		}
		return ids, nil
	})

	select {
	case <-ctx.Done():
		return c.degrade(candidates, s, "canceled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return c.degrade(candidates, s, degradeCause(res.Err), res.Err)
		}
		return c.retain(candidates, res.Val.([]string), model.RelevanceLLM)
	}
}

func (c *Classifier) retain(candidates []model.ProgramRecord, ids []string, path model.RelevancePath) Result {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	res := Result{
		Retained:  make([]model.ProgramRecord, 0, len(ids)),
		Decisions: make([]model.EligibilityDecision, 0, len(candidates)),
		Path:      path,
	}
	for _, p := range candidates {
		_, ok := keep[p.ID]
		d := model.EligibilityDecision{ProgramID: p.ID, Eligible: ok, Stage: model.StageClassifier}
		if ok {
			res.Retained = append(res.Retained, p)
		} else {
			d.Reason = "not_relevant"
		}
		res.Decisions = append(res.Decisions, d)
	}
	metrics.RelevanceDecisionsTotal.WithLabelValues(string(path)).Inc()
	return res
}

func (c *Classifier) degrade(candidates []model.ProgramRecord, s model.UserSituation, cause string, err error) Result {
	if err != nil {
		metrics.RelevanceDegradedTotal.WithLabelValues(cause).Inc()
		zap.L().Warn("relevance: degraded to keyword fallback",
			zap.String("cause", cause),
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
	}
	kept, decisions := c.fallback.Retain(candidates, s)
	metrics.RelevanceDecisionsTotal.WithLabelValues(string(model.RelevanceFallback)).Inc()
	return Result{Retained: kept, Decisions: decisions, Path: model.RelevanceFallback}
}

func degradeCause(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errUnparsable):
		return "unparsable"
	case errors.Is(err, errEmptyDecision):
		return "empty"
	default:
		return "error"
	}
}
