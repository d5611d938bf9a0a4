// Package metrics provides Prometheus metrics for the simulator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SimulationsTotal counts completed simulation runs by relevance path.
	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total simulation runs by relevance path",
		},
		[]string{"relevance"},
	)

	// SimulationDuration tracks end-to-end pipeline latency.
	SimulationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aidsim",
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Duration of simulation runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	// CandidatesTotal counts programs observed at each pipeline stage.
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "pipeline",
			Name:      "candidates_total",
			Help:      "Programs surviving each pipeline stage",
		},
		[]string{"stage"},
	)

	// CatalogErrorsTotal counts swallowed catalog read failures.
	CatalogErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "catalog",
			Name:      "errors_total",
			Help:      "Catalog read failures degraded to an empty candidate list",
		},
	)

	// RelevanceDecisionsTotal counts relevance decisions by path.
	RelevanceDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "relevance",
			Name:      "decisions_total",
			Help:      "Relevance decisions by path (llm, cache, fallback, skipped)",
		},
		[]string{"path"},
	)

	// RelevanceDegradedTotal counts fallbacks by cause.
	RelevanceDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "relevance",
			Name:      "degraded_total",
			Help:      "Fallbacks to the keyword classifier by cause",
		},
		[]string{"cause"},
	)

	// CacheLookupsTotal counts relevance cache lookups by tier and result.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "relevance_cache",
			Name:      "lookups_total",
			Help:      "Relevance cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	// TranslationsTotal counts localization outcomes.
	TranslationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "localize",
			Name:      "batches_total",
			Help:      "Translation batches by outcome (translated, passthrough, failed)",
		},
		[]string{"outcome"},
	)

	// PersistFailuresTotal counts swallowed simulation persistence failures.
	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "simulation",
			Name:      "persist_failures_total",
			Help:      "Simulation results that failed to persist",
		},
	)

	// SavedAideTransitionsTotal counts bookmark status changes.
	SavedAideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidsim",
			Subsystem: "bookmark",
			Name:      "transitions_total",
			Help:      "Saved aide status transitions by result",
		},
		[]string{"from", "to", "result"},
	)
)
