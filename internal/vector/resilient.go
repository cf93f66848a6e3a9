package vector

import (
	"context"

	"github.com/defenda/legal-retrieval/pkg/metrics"
	"github.com/defenda/legal-retrieval/pkg/resilience"
)

// Resilient decorates an Index with a circuit breaker so a flapping
// embeddings service sheds load quickly instead of stalling every query.
type Resilient struct {
	inner   Index
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
}

// NewResilient wraps index with a circuit breaker using the given config.
func NewResilient(index Index, cfg resilience.CircuitBreakerConfig, m *metrics.Metrics) *Resilient {
	return &Resilient{
		inner:   index,
		breaker: resilience.NewCircuitBreaker("vector-index", cfg),
		metrics: m,
	}
}

// SimilaritySearch delegates through the circuit breaker.
func (r *Resilient) SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error) {
	var hits []Hit
	err := r.breaker.Execute(func() error {
		var searchErr error
		hits, searchErr = r.inner.SimilaritySearch(ctx, query, k)
		return searchErr
	})
	if r.metrics != nil {
		r.metrics.CircuitBreakerState.WithLabelValues("vector-index").Set(float64(r.breaker.GetState()))
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
