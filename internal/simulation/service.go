// Package simulation runs the eligibility and benefit-estimation pipeline and
// records its results.
package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/eligibility"
	"github.com/sells-group/aid-simulator/internal/estimate"
	"github.com/sells-group/aid-simulator/internal/metrics"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/relevance"
	"github.com/sells-group/aid-simulator/internal/store"
)

var tracer = otel.Tracer("aidsim.simulation")

// Catalog yields candidate programs for a geography.
type Catalog interface {
	Candidates(ctx context.Context, geography string) []model.ProgramRecord
}

// Classifier retains the relevant subset of eligible programs.
type Classifier interface {
	Classify(ctx context.Context, s model.UserSituation, candidates []model.ProgramRecord) relevance.Result
}

// Localizer translates result descriptions.
type Localizer interface {
	Resolve(lang string) string
	Localize(ctx context.Context, aides []model.EstimatedAide, lang string) []model.EstimatedAide
}

// History is the persistence side of simulation results.
type History interface {
	InsertSimulation(ctx context.Context, result *model.SimulationResult) error
	GetSimulation(ctx context.Context, id string) (*model.SimulationResult, error)
	ListSimulations(ctx context.Context, userID string, limit int) ([]model.SimulationResult, error)
}

// Options tunes a Service.
type Options struct {
	PersistTimeout time.Duration
	HistoryLimit   int
}

// Service runs simulations. It holds no per-run state, so concurrent runs
// need no coordination.
type Service struct {
	catalog    Catalog
	classifier Classifier
	estimator  *estimate.Estimator
	localizer  Localizer
	history    History
	opts       Options

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	now     func() time.Time
	newID   func() string
}

// NewService wires the pipeline stages. A nil history disables persistence.
func NewService(catalog Catalog, classifier Classifier, estimator *estimate.Estimator, localizer Localizer, history History, opts Options) *Service {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if estimator == nil {
		estimator = estimate.New()
	}
	return &Service{
		catalog:    catalog,
		classifier: classifier,
		estimator:  estimator,
		localizer:  localizer,
		history:    history,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run executes every stage for one situation. The only error is invalid
// input; upstream failures degrade inside their stage.
func (s *Service) Run(ctx context.Context, userID string, situation model.UserSituation, language string) (*model.SimulationResult, error) {
	if err := model.Validate(situation); err != nil {
		return nil, eris.Wrap(err, "simulation: run")
	}

	ctx, span := tracer.Start(ctx, "simulation.Run",
		trace.WithAttributes(
			attribute.String("simulation.geography", situation.Geography),
			attribute.Bool("simulation.authenticated", userID != ""),
		),
	)
	defer span.End()

	start := s.now()
	log := zap.L().With(zap.String("geography", situation.Geography))

	candidates := s.retrieve(ctx, situation)
	eligible := s.filter(ctx, situation, candidates)
	rel := s.classify(ctx, situation, eligible)
	aides := s.estimate(ctx, situation, rel.Retained)

	lang := language
	if s.localizer != nil {
		lang = s.localizer.Resolve(language)
		aides = s.localize(ctx, aides, lang)
	}

	result := &model.SimulationResult{
		ID:           s.newID(),
		UserID:       userID,
		Language:     lang,
		Aides:        aides,
		TotalMonthly: model.SumMonthly(aides),
		Profile:      situation,
		Relevance:    rel.Path,
		CreatedAt:    s.now().UTC(),
	}

	span.SetAttributes(
		attribute.String("simulation.id", result.ID),
		attribute.String("simulation.relevance", string(rel.Path)),
		attribute.Int("simulation.aides", len(aides)),
		attribute.Int("simulation.total_monthly", result.TotalMonthly),
	)
	metrics.SimulationsTotal.WithLabelValues(string(rel.Path)).Inc()
	metrics.SimulationDuration.Observe(s.now().Sub(start).Seconds())

	log.Info("simulation complete",
		zap.String("simulation_id", result.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(eligible)),
		zap.Int("aides", len(aides)),
		zap.String("relevance", string(rel.Path)),
		zap.Int("total_monthly", result.TotalMonthly),
	)

	if userID != "" && s.history != nil {
		s.persist(ctx, *result)
	}
	return result, nil
}

func (s *Service) retrieve(ctx context.Context, situation model.UserSituation) []model.ProgramRecord {
	ctx, span := tracer.Start(ctx, "catalog.candidates")
	defer span.End()

	candidates := s.catalog.Candidates(ctx, situation.Geography)
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	metrics.CandidatesTotal.WithLabelValues("retrieved").Add(float64(len(candidates)))
	return candidates
}

func (s *Service) filter(ctx context.Context, situation model.UserSituation, candidates []model.ProgramRecord) []model.ProgramRecord {
	_, span := tracer.Start(ctx, "eligibility.filter")
	defer span.End()

	survivors, decisions := eligibility.Filter(candidates, situation)
	logDecisions(decisions)
	span.SetAttributes(attribute.Int("eligible", len(survivors)))
	metrics.CandidatesTotal.WithLabelValues("eligible").Add(float64(len(survivors)))
	return survivors
}

func (s *Service) classify(ctx context.Context, situation model.UserSituation, eligible []model.ProgramRecord) relevance.Result {
	ctx, span := tracer.Start(ctx, "relevance.classify")
	defer span.End()

	res := s.classifier.Classify(ctx, situation, eligible)
	logDecisions(res.Decisions)
	span.SetAttributes(
		attribute.String("path", string(res.Path)),
		attribute.Int("relevant", len(res.Retained)),
	)
	metrics.CandidatesTotal.WithLabelValues("relevant").Add(float64(len(res.Retained)))
	return res
}

func (s *Service) estimate(ctx context.Context, situation model.UserSituation, programs []model.ProgramRecord) []model.EstimatedAide {
	_, span := tracer.Start(ctx, "estimate.amounts")
	defer span.End()
	return s.estimator.Estimate(programs, situation)
}

func (s *Service) localize(ctx context.Context, aides []model.EstimatedAide, lang string) []model.EstimatedAide {
	ctx, span := tracer.Start(ctx, "localize.descriptions", trace.WithAttributes(attribute.String("language", lang)))
	defer span.End()
	return s.localizer.Localize(ctx, aides, lang)
}

func logDecisions(decisions []model.EligibilityDecision) {
	log := zap.L()
	if !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	for _, d := range decisions {
		if d.Eligible {
			continue
		}
		log.Debug("candidate excluded",
			zap.String("program_id", d.ProgramID),
			zap.String("stage", string(d.Stage)),
			zap.String("reason", d.Reason),
		)
	}
}

// persist writes result in the background. Failures are logged and counted,
// never returned. Results arriving after Close are dropped.
func (s *Service) persist(ctx context.Context, result model.SimulationResult) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.PersistFailuresTotal.Inc()
		zap.L().Warn("simulation: service closed, result not persisted",
			zap.String("simulation_id", result.ID),
			zap.String("user_id", result.UserID),
		)
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
		defer cancel()

		if err := s.history.InsertSimulation(pctx, &result); err != nil {
			metrics.PersistFailuresTotal.Inc()
			zap.L().Error("simulation: persist failed",
				zap.String("simulation_id", result.ID),
				zap.String("user_id", result.UserID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every background write started so far has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Close stops accepting background writes and waits for the pending ones.
// Runs after Close still return results but are not persisted.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
}

// History returns the user's most recent simulations, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]model.SimulationResult, error) {
	if s.history == nil {
		return nil, nil
	}
	results, err := s.history.ListSimulations(ctx, userID, s.opts.HistoryLimit)
	if err != nil {
		return nil, eris.Wrap(err, "simulation: history")
	}
	return results, nil
}

// Get returns one of the user's simulations. Another user's result is
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (*model.SimulationResult, error) {
	if s.history == nil {
		return nil, eris.Wrapf(store.ErrNotFound, "simulation %s", id)
	}
	result, err := s.history.GetSimulation(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "simulation: get %s", id)
	}
	if result.UserID != userID {
		return nil, eris.Wrapf(store.ErrNotFound, "simulation %s", id)
	}
	return result, nil
}
