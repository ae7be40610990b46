package search

import (
	"context"

	"github.com/kailas-cloud/toolvec/internal/cache"
	"github.com/kailas-cloud/toolvec/internal/domain"
	"github.com/kailas-cloud/toolvec/internal/usecase/dedup"
)

// VectorSearcher is the vector-store contract: one KNN search against one
// vector type. Implementations decide whether a vector type maps to an
// index, a collection, or something else entirely.
type VectorSearcher interface {
	SearchVectors(
		ctx context.Context, vectorType string,
		vector []float32, limit int, filter map[string]string,
	) ([]domain.ScoredItem, error)
}

// Deduplicator merges duplicate results after fusion.
type Deduplicator interface {
	Detect(items []domain.MergedItem) dedup.Result
}

// EmbeddingCache is the consumer contract for query-embedding reuse.
// The orchestrator always passes a nil query vector: exact-text lookups
// only, so query paraphrases never silently reuse another query's vector.
type EmbeddingCache interface {
	Get(key string, queryVec []float32) ([]float32, bool)
	Set(key string, vec []float32, opts cache.SetOptions)
}

// ResultCache is the consumer contract for final-ranking reuse.
type ResultCache interface {
	Get(fingerprint string) (domain.Response, bool)
	Set(fingerprint string, resp domain.Response)
}
