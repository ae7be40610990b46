// Package search is the multi-vector orchestrator: it resolves the query
// embedding, fans out per-vector-type searches behind circuit breakers,
// fuses the rankings, deduplicates, applies diversity filtering, and caches
// the final result set.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/breaker"
	"github.com/kailas-cloud/toolvec/internal/cache"
	"github.com/kailas-cloud/toolvec/internal/domain"
	"github.com/kailas-cloud/toolvec/internal/metrics"
)

// Orchestrator defaults.
const (
	DefaultPerTypeTimeout = 5 * time.Second
	DefaultMaxPerVector   = 50
)

// Config tunes the orchestrator.
type Config struct {
	VectorTypes        []string // default types when the query names none
	Strategy           domain.Strategy
	RRFK               int
	TypeWeights        map[string]float64
	PerTypeTimeout     time.Duration
	MaxPerVector       int
	DiversityThreshold float64
	Breaker            breaker.Config // per-vector-type breakers
	EmbedBreaker       breaker.Config // embedding dependency breaker
}

func (c Config) withDefaults() Config {
	if len(c.VectorTypes) == 0 {
		c.VectorTypes = []string{
			domain.TypeSemantic, domain.TypeCategories, domain.TypeFunctionality,
		}
	}
	if c.Strategy == "" {
		c.Strategy = domain.StrategyRRF
	}
	if c.RRFK <= 0 {
		c.RRFK = DefaultRRFK
	}
	if c.PerTypeTimeout <= 0 {
		c.PerTypeTimeout = DefaultPerTypeTimeout
	}
	if c.MaxPerVector <= 0 {
		c.MaxPerVector = DefaultMaxPerVector
	}
	if c.DiversityThreshold <= 0 {
		c.DiversityThreshold = DefaultDiversityThreshold
	}
	if c.EmbedBreaker.ResetTimeout <= 0 {
		c.EmbedBreaker.ResetTimeout = breaker.DefaultEmbedResetTimeout
	}
	return c
}

// Service coordinates one search request end to end.
type Service struct {
	cfg      Config
	embedder domain.Embedder
	searcher VectorSearcher
	deduper  Deduplicator
	embCache EmbeddingCache
	resCache ResultCache
	custom   Fuser
	logger   *zap.Logger

	embedBreaker *breaker.Breaker

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// New creates the orchestrator.
func New(
	cfg Config,
	embedder domain.Embedder,
	searcher VectorSearcher,
	deduper Deduplicator,
	embCache EmbeddingCache,
	resCache ResultCache,
	logger *zap.Logger,
) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:          cfg,
		embedder:     embedder,
		searcher:     searcher,
		deduper:      deduper,
		embCache:     embCache,
		resCache:     resCache,
		logger:       logger,
		embedBreaker: breaker.New("embedding", cfg.EmbedBreaker, logger),
		breakers:     make(map[string]*breaker.Breaker),
	}
}

// WithCustomFuser registers the fuser used by StrategyCustom.
func (s *Service) WithCustomFuser(f Fuser) *Service {
	s.custom = f
	return s
}

// BreakerStates snapshots every breaker for introspection.
func (s *Service) BreakerStates() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.breakers)+1)
	out["embedding"] = s.embedBreaker.State().String()
	for name, b := range s.breakers {
		out[name] = b.State().String()
	}
	return out
}

// Search runs a query. Partial per-type failures degrade the result and are
// reported in the per-type metrics; only embedding failure or all types
// failing surfaces an error.
func (s *Service) Search(ctx context.Context, q domain.Query) (domain.Response, error) {
	start := time.Now()

	if len(q.VectorTypes) == 0 {
		q.VectorTypes = s.cfg.VectorTypes
	}
	if q.Strategy == "" {
		q.Strategy = s.cfg.Strategy
	}
	if q.RRFK <= 0 {
		q.RRFK = s.cfg.RRFK
	}
	if err := q.Validate(); err != nil {
		return domain.Response{}, err
	}

	traceID := uuid.NewString()
	log := s.logger.With(zap.String("trace_id", traceID))

	fingerprint := q.Fingerprint()
	if resp, ok := s.resCache.Get(fingerprint); ok {
		resp.Cached = true
		metrics.SearchRequestsTotal.WithLabelValues(string(q.Strategy), "cached").Inc()
		log.Debug("Result cache hit", zap.String("fingerprint", fingerprint))
		return resp, nil
	}

	queryVec, err := s.resolveEmbedding(ctx, q.Text)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(q.Strategy), "error").Inc()
		return domain.Response{}, err
	}

	lists, perType := s.fanOut(ctx, log, q, queryVec)

	failed := 0
	for _, m := range perType {
		if m.Error != "" {
			failed++
		}
	}
	if failed == len(q.VectorTypes) {
		metrics.SearchRequestsTotal.WithLabelValues(string(q.Strategy), "error").Inc()
		return domain.Response{}, fmt.Errorf("%w: %d vector types", domain.ErrNoResults, failed)
	}

	fuser := NewFuser(q.Strategy, q.RRFK, s.cfg.TypeWeights, s.custom)
	merged := fuser.Fuse(q.VectorTypes, lists)

	dedupRes := s.deduper.Detect(merged)
	diverse := filterDiverse(dedupRes.Unique, s.cfg.DiversityThreshold)

	if len(diverse) > q.Limit {
		diverse = diverse[:q.Limit]
	}

	resp := domain.Response{
		Items:     diverse,
		PerType:   perType,
		TotalTime: time.Since(start),
	}
	s.resCache.Set(fingerprint, resp)

	metrics.SearchRequestsTotal.WithLabelValues(string(q.Strategy), "success").Inc()
	metrics.SearchDuration.WithLabelValues(string(q.Strategy)).Observe(resp.TotalTime.Seconds())

	log.Debug("Search completed",
		zap.Int("results", len(resp.Items)),
		zap.Int("duplicates_removed", dedupRes.DuplicatesRemoved),
		zap.Int("degraded_types", failed),
		zap.Duration("total_time", resp.TotalTime))

	return resp, nil
}

// resolveEmbedding returns the query vector, reusing the embedding cache by
// literal text. Failures here are terminal for the request.
func (s *Service) resolveEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.embCache.Get(text, nil); ok {
		return vec, nil
	}

	var result domain.EmbeddingResult
	err := s.embedBreaker.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		result, embedErr = s.embedder.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}

	s.embCache.Set(text, result.Embedding, cache.SetOptions{Source: "query"})
	return result.Embedding, nil
}

// fanOut runs every per-type search concurrently and waits for all of them
// to settle. A slow or failing type never blocks its siblings past its own
// timeout.
func (s *Service) fanOut(
	ctx context.Context, log *zap.Logger, q domain.Query, queryVec []float32,
) (map[string][]domain.ScoredItem, map[string]domain.TypeMetrics) {
	perTypeK := q.Limit * 2
	if perTypeK > s.cfg.MaxPerVector {
		perTypeK = s.cfg.MaxPerVector
	}

	type typeResult struct {
		items   []domain.ScoredItem
		latency time.Duration
		err     error
	}

	results := make([]typeResult, len(q.VectorTypes))
	var wg sync.WaitGroup
	for i, vt := range q.VectorTypes {
		wg.Add(1)
		go func(i int, vt string) {
			defer wg.Done()

			typeCtx, cancel := context.WithTimeout(ctx, s.cfg.PerTypeTimeout)
			defer cancel()

			typeStart := time.Now()
			var items []domain.ScoredItem
			err := s.breakerFor(vt).Do(typeCtx, func(ctx context.Context) error {
				var searchErr error
				items, searchErr = s.searcher.SearchVectors(ctx, vt, queryVec, perTypeK, q.Filter)
				return searchErr
			})
			latency := time.Since(typeStart)

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					err = fmt.Errorf("%w: after %s", domain.ErrTimeout, s.cfg.PerTypeTimeout)
				}
				results[i] = typeResult{latency: latency, err: domain.NewTypeError(vt, err)}
				return
			}

			for j := range items {
				items[j].VectorType = vt
				items[j].Rank = j + 1
			}
			results[i] = typeResult{items: items, latency: latency}
		}(i, vt)
	}
	wg.Wait()

	lists := make(map[string][]domain.ScoredItem, len(q.VectorTypes))
	perType := make(map[string]domain.TypeMetrics, len(q.VectorTypes))

	for i, vt := range q.VectorTypes {
		res := results[i]
		m := domain.TypeMetrics{Count: len(res.items), Latency: res.latency}

		if res.err != nil {
			m.Error = res.err.Error()
			metrics.VectorTypeSearchesTotal.WithLabelValues(vt, "error").Inc()
			log.Warn("Vector type search failed",
				zap.String("vector_type", vt), zap.Error(res.err))
		} else {
			var sum float64
			for _, item := range res.items {
				sum += item.Score
			}
			if len(res.items) > 0 {
				m.AvgScore = sum / float64(len(res.items))
			}
			lists[vt] = res.items
			metrics.VectorTypeSearchesTotal.WithLabelValues(vt, "success").Inc()
			metrics.VectorTypeSearchDuration.WithLabelValues(vt).Observe(res.latency.Seconds())
		}
		perType[vt] = m
	}
	return lists, perType
}

// breakerFor returns the breaker guarding one vector type, creating it on
// first use.
func (s *Service) breakerFor(vectorType string) *breaker.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[vectorType]
	if !ok {
		b = breaker.New("vector:"+vectorType, s.cfg.Breaker, s.logger)
		s.breakers[vectorType] = b
	}
	return b
}
