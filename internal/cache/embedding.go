// Package cache implements the engine's two cache tiers: an in-process
// embedding cache with adaptive TTL, compression, pluggable eviction and
// semantic-similarity fallback, and a TTL result cache for final rankings.
//
// Both caches are shared, long-lived structures accessed by concurrent
// requests; all mutation happens under a per-instance mutex.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/domain"
	"github.com/kailas-cloud/toolvec/internal/metrics"
)

// Policy selects the eviction victim when the cache is full.
type Policy string

const (
	// PolicyLRU evicts the entry with the oldest last access.
	PolicyLRU Policy = "lru"
	// PolicyLFU evicts the entry with the lowest access count.
	PolicyLFU Policy = "lfu"
	// PolicyPriority evicts the entry with the lowest priority score.
	PolicyPriority Policy = "priority"
	// PolicyAdaptive is an alias for PolicyPriority.
	PolicyAdaptive Policy = "adaptive"
)

// Embedding cache defaults.
const (
	DefaultCapacity          = 1000
	DefaultBaseTTL           = time.Hour
	DefaultMinTTL            = 5 * time.Minute
	DefaultMaxTTL            = 24 * time.Hour
	DefaultSemanticThreshold = 0.8
	DefaultCleanupInterval   = 5 * time.Minute
)

// EmbeddingConfig tunes the embedding cache.
type EmbeddingConfig struct {
	Capacity          int
	BaseTTL           time.Duration
	MinTTL            time.Duration
	MaxTTL            time.Duration
	Policy            Policy
	Compression       bool
	CompressMinSize   int // skip compression for vectors smaller than this many bytes
	SemanticFallback  bool
	SemanticThreshold float64
	CleanupInterval   time.Duration // 0 disables the janitor
	Warm              WarmFunc      // optional, run by the janitor
}

func (c EmbeddingConfig) withDefaults() EmbeddingConfig {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.BaseTTL <= 0 {
		c.BaseTTL = DefaultBaseTTL
	}
	if c.MinTTL <= 0 {
		c.MinTTL = DefaultMinTTL
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = DefaultMaxTTL
	}
	if c.MaxTTL < c.MinTTL {
		c.MaxTTL = c.MinTTL
	}
	if c.Policy == "" {
		c.Policy = PolicyLRU
	}
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = DefaultSemanticThreshold
	}
	return c
}

// WarmFunc supplies embeddings to pre-populate on each janitor sweep.
// Keys already present are left untouched.
type WarmFunc func() map[string][]float32

// SetOptions carries per-entry write options.
type SetOptions struct {
	Priority float64       // default 1
	Source   string        // provenance tag, informational
	TTL      time.Duration // overrides the base TTL for this entry
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits            int64
	Misses          int64
	SemanticHits    int64
	Evictions       int64
	Compressions    int64
	Decompressions  int64
	HitRate         float64
	SemanticHitRate float64
	Size            int
	MemoryBytes     int64
	AvgTTL          time.Duration
}

// EmbeddingCache maps cache keys (literal query text or fingerprints) to
// embedding vectors.
type EmbeddingCache struct {
	cfg    EmbeddingConfig
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	hits           int64
	misses         int64
	semanticHits   int64
	evictions      int64
	compressions   int64
	decompressions int64

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// NewEmbeddingCache creates the cache and, when a cleanup interval is
// configured, starts its janitor goroutine. Call Close to stop it.
func NewEmbeddingCache(cfg EmbeddingConfig, logger *zap.Logger) *EmbeddingCache {
	c := &EmbeddingCache{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	if c.cfg.CleanupInterval > 0 {
		c.janitorStop = make(chan struct{})
		c.janitorDone = make(chan struct{})
		go c.janitor()
	}
	return c
}

// Get looks up an embedding. The exact key is tried first; when it misses
// and a query embedding is supplied with semantic fallback enabled, the
// closest live entry above the similarity threshold is returned instead,
// counted as a semantic hit.
func (c *EmbeddingCache) Get(key string, queryVec []float32) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if e, ok := c.entries[key]; ok {
		if e.expired(now) {
			c.evictLocked(key, "expired")
			metrics.CacheLookupsTotal.WithLabelValues("embedding", "expired").Inc()
		} else {
			vec, err := c.materialize(e)
			if err != nil {
				// Corrupt stored bytes: drop the entry and treat as a miss.
				c.logger.Warn("Failed to decode cached embedding", zap.String("key", key), zap.Error(err))
				c.evictLocked(key, "corrupt")
			} else {
				c.touch(e, now)
				c.hits++
				metrics.CacheLookupsTotal.WithLabelValues("embedding", "hit").Inc()
				return vec, true
			}
		}
	}

	if c.cfg.SemanticFallback && len(queryVec) > 0 {
		if vec, ok := c.semanticLookup(queryVec, now); ok {
			c.semanticHits++
			metrics.CacheLookupsTotal.WithLabelValues("embedding", "semantic_hit").Inc()
			return vec, true
		}
	}

	c.misses++
	metrics.CacheLookupsTotal.WithLabelValues("embedding", "miss").Inc()
	return nil, false
}

// semanticLookup scans live entries for the highest cosine similarity to
// queryVec. Callers hold the lock.
func (c *EmbeddingCache) semanticLookup(queryVec []float32, now time.Time) ([]float32, bool) {
	var (
		best      *entry
		bestScore float64
	)
	for _, e := range c.entries {
		if e.expired(now) {
			continue
		}
		vec, err := c.materialize(e)
		if err != nil {
			continue
		}
		if sim := domain.Cosine(queryVec, vec); sim > bestScore {
			bestScore = sim
			best = e
		}
	}
	if best == nil || bestScore < c.cfg.SemanticThreshold {
		return nil, false
	}
	vec, err := c.materialize(best)
	if err != nil {
		return nil, false
	}
	c.touch(best, now)
	return vec, true
}

// Set stores an embedding, evicting per policy when at capacity.
func (c *EmbeddingCache) Set(key string, vec []float32, opts SetOptions) {
	if len(vec) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	// One victim per pass; normally a single pass suffices.
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.cfg.Capacity {
			victim := c.victimLocked(now)
			if victim == "" {
				break
			}
			c.evictLocked(victim, string(c.cfg.Policy))
		}
	}

	raw := vectorToBytes(vec)
	e := &entry{
		createdAt:    now,
		lastAccess:   now,
		priority:     opts.Priority,
		source:       opts.Source,
		contentHash:  contentHash(raw),
		semanticHash: semanticHash(vec),
	}
	if e.priority <= 0 {
		e.priority = 1
	}

	base := c.cfg.BaseTTL
	if opts.TTL > 0 {
		base = opts.TTL
	}
	e.ttl = clampTTL(base, c.cfg.MinTTL, c.cfg.MaxTTL)

	if c.cfg.Compression && len(raw) >= c.cfg.CompressMinSize {
		e.compressed = compress(raw)
		e.size = len(e.compressed)
		c.compressions++
		metrics.CacheCompressionsTotal.WithLabelValues("compress").Inc()
	} else {
		e.vec = vec
		e.size = len(raw)
	}

	c.entries[key] = e
	metrics.CacheSize.WithLabelValues("embedding").Set(float64(len(c.entries)))
}

// Has reports whether a live entry exists without touching access metadata.
func (c *EmbeddingCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && !e.expired(c.now())
}

// Delete removes an entry.
func (c *EmbeddingCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	metrics.CacheSize.WithLabelValues("embedding").Set(float64(len(c.entries)))
}

// Clear removes every entry, leaving counters intact.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	metrics.CacheSize.WithLabelValues("embedding").Set(0)
}

// GetBatch looks up many keys at once. Missing keys are absent from the map.
func (c *EmbeddingCache) GetBatch(keys []string) map[string][]float32 {
	out := make(map[string][]float32, len(keys))
	for _, k := range keys {
		if vec, ok := c.Get(k, nil); ok {
			out[k] = vec
		}
	}
	return out
}

// SetBatch stores many embeddings with shared options.
func (c *EmbeddingCache) SetBatch(vecs map[string][]float32, opts SetOptions) {
	for k, v := range vecs {
		c.Set(k, v, opts)
	}
}

// Len returns the number of entries, expired ones included until swept.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes every expired entry and returns how many were evicted.
func (c *EmbeddingCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			c.evictLocked(k, "expired")
			n++
		}
	}
	return n
}

// Stats snapshots the cache counters.
func (c *EmbeddingCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var mem int64
	var ttlSum time.Duration
	live := 0
	for _, e := range c.entries {
		mem += int64(e.size)
		if !e.expired(now) {
			ttlSum += e.ttl
			live++
		}
	}

	s := Stats{
		Hits:           c.hits,
		Misses:         c.misses,
		SemanticHits:   c.semanticHits,
		Evictions:      c.evictions,
		Compressions:   c.compressions,
		Decompressions: c.decompressions,
		Size:           len(c.entries),
		MemoryBytes:    mem,
	}
	if total := c.hits + c.semanticHits + c.misses; total > 0 {
		s.HitRate = float64(c.hits+c.semanticHits) / float64(total)
		s.SemanticHitRate = float64(c.semanticHits) / float64(total)
	}
	if live > 0 {
		s.AvgTTL = ttlSum / time.Duration(live)
	}
	return s
}

// Close stops the janitor. Safe to call when no janitor is running.
func (c *EmbeddingCache) Close() {
	if c.janitorStop == nil {
		return
	}
	close(c.janitorStop)
	<-c.janitorDone
}

// janitor periodically sweeps expired entries and runs the warm hook.
func (c *EmbeddingCache) janitor() {
	defer close(c.janitorDone)

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.janitorStop:
			return
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				c.logger.Debug("Embedding cache sweep", zap.Int("evicted", n))
			}
			c.warm()
		}
	}
}

// warm pre-populates entries supplied by the configured warm hook.
func (c *EmbeddingCache) warm() {
	if c.cfg.Warm == nil {
		return
	}
	for key, vec := range c.cfg.Warm() {
		if !c.Has(key) {
			c.Set(key, vec, SetOptions{Source: "warmer"})
		}
	}
}

// materialize returns the entry's vector, decompressing when needed.
func (c *EmbeddingCache) materialize(e *entry) ([]float32, error) {
	if e.vec != nil {
		return e.vec, nil
	}
	raw, err := decompress(e.compressed)
	if err != nil {
		return nil, err
	}
	c.decompressions++
	metrics.CacheCompressionsTotal.WithLabelValues("decompress").Inc()
	return bytesToVector(raw)
}

// touch updates access metadata and recomputes the adaptive TTL.
// Callers hold the lock.
func (c *EmbeddingCache) touch(e *entry, now time.Time) {
	e.lastAccess = now
	e.accessCount++
	e.ttl = adaptiveTTL(c.cfg.BaseTTL, c.cfg.MinTTL, c.cfg.MaxTTL, e.accessesPerSecond(now))
}

// victimLocked picks the eviction victim per the configured policy.
func (c *EmbeddingCache) victimLocked(now time.Time) string {
	var victim string
	switch c.cfg.Policy {
	case PolicyLFU:
		var minCount int64 = -1
		for k, e := range c.entries {
			if minCount < 0 || e.accessCount < minCount {
				minCount = e.accessCount
				victim = k
			}
		}
	case PolicyPriority, PolicyAdaptive:
		minScore := -1.0
		for k, e := range c.entries {
			if s := e.priorityScore(now); minScore < 0 || s < minScore {
				minScore = s
				victim = k
			}
		}
	default: // PolicyLRU
		var oldest time.Time
		for k, e := range c.entries {
			if victim == "" || e.lastAccess.Before(oldest) {
				oldest = e.lastAccess
				victim = k
			}
		}
	}
	return victim
}

// evictLocked removes an entry and records the eviction. Callers hold the lock.
func (c *EmbeddingCache) evictLocked(key, reason string) {
	delete(c.entries, key)
	c.evictions++
	metrics.CacheEvictionsTotal.WithLabelValues("embedding", reason).Inc()
	metrics.CacheSize.WithLabelValues("embedding").Set(float64(len(c.entries)))
}

func clampTTL(ttl, minTTL, maxTTL time.Duration) time.Duration {
	if ttl < minTTL {
		return minTTL
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}
