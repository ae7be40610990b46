package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search orchestration Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"strategy", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolvec",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"strategy"},
	)

	VectorTypeSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "vector_type_searches_total",
			Help:      "Per-vector-type search attempts",
		},
		[]string{"vector_type", "status"},
	)

	VectorTypeSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolvec",
			Name:      "vector_type_search_duration_seconds",
			Help:      "Per-vector-type search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"vector_type"},
	)

	DuplicatesRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "duplicates_removed_total",
			Help:      "Results dropped by deduplication",
		},
	)
)

// Cache Prometheus metrics. The "cache" label distinguishes the embedding
// cache from the result cache.
var (
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by outcome (hit, semantic_hit, miss, expired)",
		},
		[]string{"cache", "outcome"},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "cache_evictions_total",
			Help:      "Cache evictions by policy",
		},
		[]string{"cache", "policy"},
	)

	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "toolvec",
			Name:      "cache_entries",
			Help:      "Current number of live cache entries",
		},
		[]string{"cache"},
	)

	CacheCompressionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "cache_compressions_total",
			Help:      "Embedding compression operations by direction (compress, decompress)",
		},
		[]string{"direction"},
	)
)

// Circuit breaker Prometheus metrics.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "toolvec",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	BreakerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "breaker_failures_total",
			Help:      "Failures observed by circuit breakers",
		},
		[]string{"breaker"},
	)
)

// Embedding provider Prometheus metrics, recorded at the transport layer.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolvec",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolvec",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)
)

var registered bool

// Register registers all toolvec collectors. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchDuration,
		VectorTypeSearchesTotal,
		VectorTypeSearchDuration,
		DuplicatesRemovedTotal,
		CacheLookupsTotal,
		CacheEvictionsTotal,
		CacheSize,
		CacheCompressionsTotal,
		BreakerState,
		BreakerFailuresTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
	)
	registered = true
}
