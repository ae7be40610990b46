package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Strategy selects how per-type rankings are merged.
type Strategy string

const (
	// StrategyRRF is reciprocal rank fusion, the default.
	StrategyRRF Strategy = "rrf"
	// StrategyWeighted averages raw scores by static per-type weights.
	StrategyWeighted Strategy = "weighted"
	// StrategyHybrid blends RRF and weighted scores 0.6/0.4.
	StrategyHybrid Strategy = "hybrid"
	// StrategyCustom is the extension point. Unset custom fusers fall back to RRF.
	StrategyCustom Strategy = "custom"
)

// Valid reports whether the strategy is one of the known tags.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRRF, StrategyWeighted, StrategyHybrid, StrategyCustom:
		return true
	}
	return false
}

// Query is a single search request.
// VectorTypes order is significant: it defines the deterministic iteration
// order used for fusion tie-breaks.
type Query struct {
	Text        string
	VectorTypes []string
	Limit       int
	Filter      map[string]string
	Strategy    Strategy // empty means the engine default
	RRFK        int      // 0 means the engine default
}

// Validate checks the query invariants.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuery)
	}
	if len(q.VectorTypes) == 0 {
		return fmt.Errorf("%w: no vector types", ErrInvalidQuery)
	}
	for _, vt := range q.VectorTypes {
		if vt == "" {
			return fmt.Errorf("%w: empty vector type", ErrInvalidQuery)
		}
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
	}
	if q.Strategy != "" && !q.Strategy.Valid() {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidQuery, q.Strategy)
	}
	if q.RRFK < 0 {
		return fmt.Errorf("%w: rrf k must be non-negative, got %d", ErrInvalidQuery, q.RRFK)
	}
	return nil
}

// Fingerprint returns a deterministic cache key for the query: a sha256 over
// the normalized text and a canonical serialization of every option that
// affects the result set. Filter keys are sorted so map iteration order
// cannot leak into the key.
func (q *Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(q.Text)))
	b.WriteString("|types=")
	b.WriteString(strings.Join(q.VectorTypes, ","))
	fmt.Fprintf(&b, "|limit=%d|strategy=%s|k=%d", q.Limit, q.Strategy, q.RRFK)

	if len(q.Filter) > 0 {
		keys := make([]string, 0, len(q.Filter))
		for k := range q.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("|filter=")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s;", k, q.Filter[k])
		}
	}

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
