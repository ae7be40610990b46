// Package toolvec is the embeddable SDK: a multi-vector search engine
// wired against a Redis-compatible vector store, usable without the
// HTTP server in cmd/toolvec.
package toolvec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/breaker"
	"github.com/kailas-cloud/toolvec/internal/cache"
	dbRedis "github.com/kailas-cloud/toolvec/internal/db/redis"
	"github.com/kailas-cloud/toolvec/internal/domain"
	vectorrepo "github.com/kailas-cloud/toolvec/internal/repository/vector"
	"github.com/kailas-cloud/toolvec/internal/usecase/dedup"
	searchuc "github.com/kailas-cloud/toolvec/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the toolvec SDK entry point.
type Client struct {
	store     *dbRedis.Store
	searchSvc *searchuc.Service
	embCache  *cache.EmbeddingCache
	resCache  *cache.ResultCache
}

// New creates a toolvec Client and connects to the vector store.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("toolvec: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
		DB:       cfg.db,
	})
	if err != nil {
		return nil, fmt.Errorf("toolvec: create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("toolvec: database not ready: %w", err)
	}

	if cfg.dimensions > 0 {
		types := cfg.vectorTypes
		if len(types) == 0 {
			types = []string{domain.TypeSemantic, domain.TypeCategories, domain.TypeFunctionality}
		}
		if err := vectorrepo.EnsureIndexes(ctx, store, types, cfg.dimensions); err != nil {
			store.Close()
			return nil, fmt.Errorf("toolvec: ensure indexes: %w", err)
		}
	}

	return wireClient(store, cfg), nil
}

func wireClient(store *dbRedis.Store, cfg *clientConfig) *Client {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Embedder: noop if not set, every search fails with a clear error.
	var domEmb domain.Embedder = &noopEmbedder{}
	if cfg.embedder != nil {
		domEmb = &embedderAdapter{inner: cfg.embedder}
	}

	embCache := cache.NewEmbeddingCache(cfg.embCache, logger)
	resCache := cache.NewResultCache(cfg.resCache)

	deduper := dedup.New(dedup.Config{
		ScoreMerge: cfg.scoreMerge,
	}, logger)

	repo := vectorrepo.New(store)

	searchSvc := searchuc.New(searchuc.Config{
		VectorTypes:        cfg.vectorTypes,
		Strategy:           domain.Strategy(cfg.strategy),
		RRFK:               cfg.rrfK,
		TypeWeights:        cfg.typeWeights,
		PerTypeTimeout:     cfg.perTypeTimeout,
		DiversityThreshold: cfg.diversityThreshold,
		Breaker:            breaker.Config{},
		EmbedBreaker:       breaker.Config{},
	}, domEmb, repo, deduper, embCache, resCache, logger)

	return &Client{
		store:     store,
		searchSvc: searchSvc,
		embCache:  embCache,
		resCache:  resCache,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.embCache != nil {
		c.embCache.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search runs one multi-vector query and returns the fused ranking.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*Response, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	q := domain.Query{
		Text:        query,
		VectorTypes: opts.VectorTypes,
		Limit:       opts.Limit,
		Filter:      opts.Filter,
		Strategy:    domain.Strategy(opts.Strategy),
		RRFK:        opts.RRFK,
	}
	if q.Limit == 0 {
		q.Limit = 10
	}

	resp, err := c.searchSvc.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := fromDomainResponse(resp)
	return &out, nil
}

// CacheStats snapshots embedding cache counters.
func (c *Client) CacheStats() CacheStats {
	return fromCacheStats(c.embCache.Stats(), c.resCache.Len())
}

// BreakerStates snapshots every circuit breaker.
func (c *Client) BreakerStates() map[string]string {
	return c.searchSvc.BreakerStates()
}

// embedderAdapter wraps a public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"%w: embedder not configured (use WithEmbedder)", domain.ErrEmbedding,
	)
}
