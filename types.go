package toolvec

import (
	"context"
	"time"

	"github.com/kailas-cloud/toolvec/internal/cache"
	"github.com/kailas-cloud/toolvec/internal/domain"
)

// Embedder vectorizes text. Implementations wrap an embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// SearchOptions configures a single search query. The zero value uses the
// Client defaults and a limit of 10.
type SearchOptions struct {
	VectorTypes []string
	Limit       int
	Filter      map[string]string
	Strategy    string
	RRFK        int
}

// Source records one vector type's contribution to a merged result.
type Source struct {
	VectorType string
	Score      float64
	Rank       int
	Weight     float64
}

// Item is one fused search result.
type Item struct {
	ID         string
	Score      float64
	Payload    map[string]any
	MergedFrom int
	Sources    []Source
}

// TypeMetrics reports one vector type's contribution to a search.
type TypeMetrics struct {
	Count    int
	Latency  time.Duration
	AvgScore float64
	Error    string
}

// Response is the final ranked result of one search.
type Response struct {
	Items     []Item
	PerType   map[string]TypeMetrics
	TotalTime time.Duration
	Cached    bool
}

// CacheStats snapshots both cache layers.
type CacheStats struct {
	EmbeddingEntries     int
	EmbeddingMemoryBytes int64
	Hits                 int64
	Misses               int64
	SemanticHits         int64
	HitRate              float64
	Evictions            int64
	ResultEntries        int
}

func fromDomainResponse(resp domain.Response) Response {
	items := make([]Item, len(resp.Items))
	for i := range resp.Items {
		m := &resp.Items[i]
		sources := make([]Source, len(m.Sources))
		for j, s := range m.Sources {
			sources[j] = Source{
				VectorType: s.VectorType,
				Score:      s.Score,
				Rank:       s.Rank,
				Weight:     s.Weight,
			}
		}
		items[i] = Item{
			ID:         m.ID,
			Score:      m.CombinedScore,
			Payload:    m.Payload,
			MergedFrom: m.MergedFrom,
			Sources:    sources,
		}
	}

	perType := make(map[string]TypeMetrics, len(resp.PerType))
	for vt, m := range resp.PerType {
		perType[vt] = TypeMetrics{
			Count:    m.Count,
			Latency:  m.Latency,
			AvgScore: m.AvgScore,
			Error:    m.Error,
		}
	}

	return Response{
		Items:     items,
		PerType:   perType,
		TotalTime: resp.TotalTime,
		Cached:    resp.Cached,
	}
}

func fromCacheStats(s cache.Stats, resultEntries int) CacheStats {
	return CacheStats{
		EmbeddingEntries:     s.Size,
		EmbeddingMemoryBytes: s.MemoryBytes,
		Hits:                 s.Hits,
		Misses:               s.Misses,
		SemanticHits:         s.SemanticHits,
		HitRate:              s.HitRate,
		Evictions:            s.Evictions,
		ResultEntries:        resultEntries,
	}
}
