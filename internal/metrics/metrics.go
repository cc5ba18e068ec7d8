// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_recommendations_total",
			Help: "Recommendation requests by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recsys_recommendation_duration_seconds",
			Help:    "Latency of recommendation requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_cache_lookups_total",
			Help: "Recommendation cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	RetrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_retrains_total",
			Help: "Retrain runs by outcome",
		},
		[]string{"outcome"},
	)

	RetrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recsys_retrain_duration_seconds",
			Help:    "Duration of retrain runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	EmbeddingsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_embeddings_written_total",
			Help: "Embeddings upserted by space",
		},
		[]string{"space"},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recsys_model_version",
			Help: "Id of the model version currently served",
		},
	)

	VectorStoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recsys_vector_store_breaker_state",
			Help: "Vector store circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)
)

func ObserveRecommendation(strategy string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RecommendationsTotal.WithLabelValues(strategy, outcome).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
