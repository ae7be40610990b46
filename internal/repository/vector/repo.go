// Package vector adapts the FT.SEARCH store to the orchestrator's
// per-vector-type search contract. Each vector type owns one index over
// hash documents keyed toolvec:<type>:<id>.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/toolvec/internal/db"
	"github.com/kailas-cloud/toolvec/internal/domain"
)

// KeyPrefix namespaces every key this service owns.
const KeyPrefix = "toolvec:"

// payloadFields are the hash fields returned with every hit.
var payloadFields = []string{
	"name", "description", "category", "url", "version", "__vector_score",
}

// store is the consumer interface for vector search operations.
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// indexStore is the consumer interface for index bootstrap.
type indexStore interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements usecase/search.VectorSearcher.
type Repo struct {
	store store
}

// New creates a vector search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// IndexName returns the FT index name for a vector type.
func IndexName(vectorType string) string {
	return fmt.Sprintf("%s%s:idx", KeyPrefix, vectorType)
}

// docPrefix returns the hash key prefix for a vector type's documents.
func docPrefix(vectorType string) string {
	return fmt.Sprintf("%s%s:", KeyPrefix, vectorType)
}

// SearchVectors runs one KNN search against the vector type's index and
// converts hits into scored items.
func (r *Repo) SearchVectors(
	ctx context.Context, vectorType string,
	vector []float32, limit int, filter map[string]string,
) ([]domain.ScoredItem, error) {
	q := &db.KNNQuery{
		IndexName:    IndexName(vectorType),
		Vector:       vector,
		K:            limit,
		Filter:       filter,
		ReturnFields: payloadFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", domain.ErrVectorStore, vectorType, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	prefix := docPrefix(vectorType)
	items := make([]domain.ScoredItem, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		items = append(items, domain.ScoredItem{
			ID:      strings.TrimPrefix(entry.Key, prefix),
			Score:   entry.Score,
			Payload: toPayload(entry.Fields),
		})
	}
	return items, nil
}

func toPayload(fields map[string]string) domain.Payload {
	p := make(domain.Payload, len(fields))
	for k, v := range fields {
		p[k] = v
	}
	return p
}

// EnsureIndexes creates the FT index for every vector type that does not
// have one yet. Safe to run on every startup.
func EnsureIndexes(ctx context.Context, s indexStore, vectorTypes []string, dim int) error {
	for _, vt := range vectorTypes {
		name := IndexName(vt)

		exists, err := s.IndexExists(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: probe index %s: %w", domain.ErrVectorStore, name, err)
		}
		if exists {
			continue
		}

		def, err := db.NewIndex(name).
			Prefix(docPrefix(vt)).
			Tag("category").
			Tag("version").
			Text("name").
			Text("description").
			VectorHNSW("vector", dim, db.DistanceCosine, 16, 200).
			Build()
		if err != nil {
			return fmt.Errorf("build index %s: %w", name, err)
		}

		if err := s.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("%w: create index %s: %w", domain.ErrVectorStore, name, err)
		}
	}
	return nil
}
