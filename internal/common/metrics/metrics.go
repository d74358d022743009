// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_retrievals_total",
			Help: "Total number of listing retrievals by mode",
		},
		[]string{"mode"},
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "listing_retrieval_duration_seconds",
			Help: "Duration of listing retrievals in seconds",
		},
		[]string{"mode"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_cache_lookups_total",
			Help: "Result cache lookups by tier (memo, redis) and outcome (hit, miss)",
		},
		[]string{"tier", "outcome"},
	)

	CacheFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_cache_faults_total",
			Help: "Non-fatal durable cache faults by operation",
		},
		[]string{"op"},
	)

	SearchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_search_failures_total",
			Help: "Document store query failures by error code",
		},
		[]string{"error_code"},
	)

	PacingScoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_pacing_score_writes_total",
			Help: "Pacing score writebacks by outcome",
		},
		[]string{"outcome"},
	)
)
