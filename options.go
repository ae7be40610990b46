package toolvec

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/cache"
	"github.com/kailas-cloud/toolvec/internal/usecase/dedup"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	username string
	password string
	db       int

	embedder   Embedder
	dimensions int

	vectorTypes        []string
	strategy           string
	rrfK               int
	typeWeights        map[string]float64
	perTypeTimeout     time.Duration
	diversityThreshold float64
	scoreMerge         dedup.ScoreMerge

	embCache cache.EmbeddingConfig
	resCache cache.ResultConfig

	logger *zap.Logger
}

// WithRedis sets the Redis-compatible store address(es).
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
	}
}

// WithCredentials sets the database username and password.
func WithCredentials(username, password string) Option {
	return func(c *clientConfig) {
		c.username = username
		c.password = password
	}
}

// WithDB selects a logical database number.
func WithDB(db int) Option {
	return func(c *clientConfig) {
		c.db = db
	}
}

// WithEmbedder sets the text vectorization provider. Required for search.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithDimensions sets the embedding dimensionality and makes New create
// any missing vector indexes on connect.
func WithDimensions(dim int) Option {
	return func(c *clientConfig) {
		c.dimensions = dim
	}
}

// WithVectorTypes sets the default vector types searched when a query
// names none.
func WithVectorTypes(types ...string) Option {
	return func(c *clientConfig) {
		c.vectorTypes = types
	}
}

// WithStrategy sets the default fusion strategy: rrf, weighted or hybrid.
func WithStrategy(strategy string) Option {
	return func(c *clientConfig) {
		c.strategy = strategy
	}
}

// WithRRFK overrides the reciprocal rank fusion constant.
func WithRRFK(k int) Option {
	return func(c *clientConfig) {
		c.rrfK = k
	}
}

// WithTypeWeights overrides the per-type weights used by the weighted
// and hybrid strategies.
func WithTypeWeights(weights map[string]float64) Option {
	return func(c *clientConfig) {
		c.typeWeights = weights
	}
}

// WithPerTypeTimeout bounds each vector type's search.
func WithPerTypeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.perTypeTimeout = d
	}
}

// WithDiversityThreshold caps any single category's share of the final
// ranking. Values outside (0, 1) disable the filter.
func WithDiversityThreshold(t float64) Option {
	return func(c *clientConfig) {
		c.diversityThreshold = t
	}
}

// WithScoreMergeSum makes duplicate groups sum scores instead of keeping
// the maximum.
func WithScoreMergeSum() Option {
	return func(c *clientConfig) {
		c.scoreMerge = dedup.MergeSum
	}
}

// WithEmbeddingCache configures the embedding cache layer.
func WithEmbeddingCache(capacity int, baseTTL time.Duration) Option {
	return func(c *clientConfig) {
		c.embCache.Capacity = capacity
		c.embCache.BaseTTL = baseTTL
	}
}

// WithSemanticFallback enables approximate embedding cache hits above the
// given cosine similarity threshold.
func WithSemanticFallback(threshold float64) Option {
	return func(c *clientConfig) {
		c.embCache.SemanticFallback = true
		c.embCache.SemanticThreshold = threshold
	}
}

// WithCompression enables s2 compression of cached embeddings.
func WithCompression() Option {
	return func(c *clientConfig) {
		c.embCache.Compression = true
	}
}

// WithResultCache configures the result cache layer.
func WithResultCache(capacity int, ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.resCache.Capacity = capacity
		c.resCache.TTL = ttl
	}
}

// WithLogger sets a structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
