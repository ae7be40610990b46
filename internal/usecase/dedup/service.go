// Package dedup identifies and merges duplicate search results using an
// ordered chain of detection strategies.
package dedup

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/domain"
	"github.com/kailas-cloud/toolvec/internal/metrics"
)

// ScoreMerge selects how a duplicate's combined score folds into the kept item.
type ScoreMerge string

const (
	// MergeMax keeps the higher of the two scores. The default.
	MergeMax ScoreMerge = "max"
	// MergeSum adds the scores, so RRF consensus across duplicate groups
	// still rewards appearing in more lists.
	MergeSum ScoreMerge = "sum"
)

// Default detection thresholds.
const (
	DefaultContentThreshold = 0.85
	DefaultFuzzyThreshold   = 0.7
)

// Config tunes the detector.
type Config struct {
	ContentThreshold float64
	FuzzyThreshold   float64
	ScoreMerge       ScoreMerge
}

func (c Config) withDefaults() Config {
	if c.ContentThreshold <= 0 {
		c.ContentThreshold = DefaultContentThreshold
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.ScoreMerge == "" {
		c.ScoreMerge = MergeMax
	}
	return c
}

// Verdict is the outcome of one pairwise comparison.
type Verdict struct {
	IsDuplicate bool
	Similarity  float64
	DetectedBy  string
	Type        string
}

// Rule is a single detection strategy. Built-ins and user-registered rules
// share this shape and are tried in ascending priority order; the first
// positive verdict wins.
type Rule struct {
	ID       string
	Priority int
	Match    func(a, b *domain.MergedItem) Verdict
}

// Result reports one deduplication run.
type Result struct {
	Unique            []domain.MergedItem
	DuplicatesRemoved int
	Processed         int
	AvgMergedScore    float64
	Duration          time.Duration
}

// Detector runs the strategy chain over merged result lists.
type Detector struct {
	cfg    Config
	rules  []Rule
	logger *zap.Logger
}

// New creates a detector with the built-in strategy chain.
func New(cfg Config, logger *zap.Logger) *Detector {
	cfg = cfg.withDefaults()
	d := &Detector{cfg: cfg, logger: logger}
	d.rules = builtinRules(cfg)
	d.sortRules()
	return d
}

// Register adds a custom rule, interleaved with built-ins by priority.
func (d *Detector) Register(r Rule) {
	d.rules = append(d.rules, r)
	d.sortRules()
}

func (d *Detector) sortRules() {
	sort.SliceStable(d.rules, func(i, j int) bool {
		return d.rules[i].Priority < d.rules[j].Priority
	})
}

// Match compares a pair through the strategy chain. When no strategy fires,
// the returned verdict carries the highest similarity any strategy observed.
func (d *Detector) Match(a, b *domain.MergedItem) Verdict {
	var best Verdict
	for _, r := range d.rules {
		v := r.Match(a, b)
		if v.IsDuplicate {
			return v
		}
		if v.Similarity > best.Similarity {
			best = v
		}
	}
	return best
}

// Detect walks the score-sorted list once, comparing each item against the
// already-accepted uniques only, which bounds the quadratic pair set. On a
// match the duplicate's attributions merge into the accepted item and its
// score recombines per the configured merge mode.
//
// Detect is idempotent: running it on its own output removes nothing.
func (d *Detector) Detect(items []domain.MergedItem) Result {
	start := time.Now()

	sorted := make([]domain.MergedItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CombinedScore > sorted[j].CombinedScore
	})

	unique := make([]domain.MergedItem, 0, len(sorted))
	mergedInto := make(map[int]bool) // index in unique -> absorbed a duplicate

	removed := 0
	for i := range sorted {
		item := sorted[i]
		matched := false
		for u := range unique {
			v := d.Match(&unique[u], &item)
			if !v.IsDuplicate {
				continue
			}
			d.absorb(&unique[u], &item)
			mergedInto[u] = true
			removed++
			matched = true

			d.logger.Debug("Merged duplicate result",
				zap.String("kept", unique[u].ID),
				zap.String("dropped", item.ID),
				zap.String("detected_by", v.DetectedBy),
				zap.Float64("similarity", v.Similarity))
			break
		}
		if !matched {
			unique = append(unique, item)
		}
	}

	var avg float64
	if len(mergedInto) > 0 {
		var sum float64
		for u := range mergedInto {
			sum += unique[u].CombinedScore
		}
		avg = sum / float64(len(mergedInto))
	}

	if removed > 0 {
		metrics.DuplicatesRemovedTotal.Add(float64(removed))
		// Score merging can disturb descending order; restore it.
		sort.SliceStable(unique, func(i, j int) bool {
			return unique[i].CombinedScore > unique[j].CombinedScore
		})
	}

	return Result{
		Unique:            unique,
		DuplicatesRemoved: removed,
		Processed:         len(items),
		AvgMergedScore:    avg,
		Duration:          time.Since(start),
	}
}

// absorb folds a duplicate into the kept item: attributions union, score
// recombines, and the contributing-list count recounts distinct types.
func (d *Detector) absorb(kept *domain.MergedItem, dup *domain.MergedItem) {
	for _, s := range dup.Sources {
		if !hasSource(kept.Sources, s) {
			kept.Sources = append(kept.Sources, s)
		}
	}

	types := make(map[string]struct{}, len(kept.Sources))
	for _, s := range kept.Sources {
		types[s.VectorType] = struct{}{}
	}
	kept.MergedFrom = len(types)

	switch d.cfg.ScoreMerge {
	case MergeSum:
		kept.CombinedScore += dup.CombinedScore
	default:
		if dup.CombinedScore > kept.CombinedScore {
			kept.CombinedScore = dup.CombinedScore
		}
	}
}

func hasSource(sources []domain.Source, s domain.Source) bool {
	for _, have := range sources {
		if have.VectorType == s.VectorType && have.Rank == s.Rank {
			return true
		}
	}
	return false
}
