package cache

import (
	"sync"
	"time"

	"github.com/kailas-cloud/toolvec/internal/domain"
	"github.com/kailas-cloud/toolvec/internal/metrics"
)

// Result cache defaults.
const (
	DefaultResultTTL      = time.Hour
	DefaultResultCapacity = 500
)

// ResultConfig tunes the result cache.
type ResultConfig struct {
	Capacity int
	TTL      time.Duration
}

func (c ResultConfig) withDefaults() ResultConfig {
	if c.Capacity <= 0 {
		c.Capacity = DefaultResultCapacity
	}
	if c.TTL <= 0 {
		c.TTL = DefaultResultTTL
	}
	return c
}

type resultEntry struct {
	resp       domain.Response
	createdAt  time.Time
	lastAccess time.Time
}

// ResultCache keeps final ranked responses keyed by query fingerprint so
// repeat queries skip the whole fan-out. Entries expire after a fixed TTL
// and the cache evicts LRU when full.
type ResultCache struct {
	cfg ResultConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*resultEntry
}

// NewResultCache creates a result cache.
func NewResultCache(cfg ResultConfig) *ResultCache {
	return &ResultCache{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		entries: make(map[string]*resultEntry),
	}
}

// Get returns the cached response for a fingerprint, expiring lazily.
func (c *ResultCache) Get(fingerprint string) (domain.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("result", "miss").Inc()
		return domain.Response{}, false
	}

	now := c.now()
	if now.Sub(e.createdAt) > c.cfg.TTL {
		delete(c.entries, fingerprint)
		metrics.CacheLookupsTotal.WithLabelValues("result", "expired").Inc()
		metrics.CacheSize.WithLabelValues("result").Set(float64(len(c.entries)))
		return domain.Response{}, false
	}

	e.lastAccess = now
	metrics.CacheLookupsTotal.WithLabelValues("result", "hit").Inc()
	return e.resp, true
}

// Set stores a response, evicting the least recently used entry when full.
func (c *ResultCache) Set(fingerprint string, resp domain.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if _, exists := c.entries[fingerprint]; !exists {
		for len(c.entries) >= c.cfg.Capacity {
			var victim string
			var oldest time.Time
			for k, e := range c.entries {
				if victim == "" || e.lastAccess.Before(oldest) {
					oldest = e.lastAccess
					victim = k
				}
			}
			if victim == "" {
				break
			}
			delete(c.entries, victim)
			metrics.CacheEvictionsTotal.WithLabelValues("result", "lru").Inc()
		}
	}

	c.entries[fingerprint] = &resultEntry{resp: resp, createdAt: now, lastAccess: now}
	metrics.CacheSize.WithLabelValues("result").Set(float64(len(c.entries)))
}

// Len returns the number of entries, expired ones included until read.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes every entry.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*resultEntry)
	metrics.CacheSize.WithLabelValues("result").Set(0)
}
