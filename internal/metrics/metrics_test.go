package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRelevanceDecisionsTotal(t *testing.T) {
	before := testutil.ToFloat64(RelevanceDecisionsTotal.WithLabelValues("fallback"))
	RelevanceDecisionsTotal.WithLabelValues("fallback").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RelevanceDecisionsTotal.WithLabelValues("fallback")))
}

func TestPersistFailuresTotal(t *testing.T) {
	before := testutil.ToFloat64(PersistFailuresTotal)
	PersistFailuresTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PersistFailuresTotal))
}
