package search

import (
	"sort"

	"github.com/kailas-cloud/toolvec/internal/domain"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (standard value from
// Cormack et al. 2009).
const DefaultRRFK = 60

// Hybrid blend factors.
const (
	hybridRRFWeight      = 0.6
	hybridWeightedWeight = 0.4
)

// Fuser merges per-type ranked lists into one ranking. The types slice fixes
// the iteration order so tie-breaks are deterministic.
type Fuser interface {
	Fuse(types []string, lists map[string][]domain.ScoredItem) []domain.MergedItem
}

// NewFuser builds the fuser for a strategy. An unknown or custom strategy
// without a registered implementation falls back to RRF explicitly.
func NewFuser(strategy domain.Strategy, k int, weights map[string]float64, custom Fuser) Fuser {
	if k <= 0 {
		k = DefaultRRFK
	}
	if len(weights) == 0 {
		weights = domain.DefaultTypeWeights()
	}
	switch strategy {
	case domain.StrategyWeighted:
		return &weightedFuser{weights: weights}
	case domain.StrategyHybrid:
		return &hybridFuser{
			rrf:      &rrfFuser{k: k},
			weighted: &weightedFuser{weights: weights},
		}
	case domain.StrategyCustom:
		if custom != nil {
			return custom
		}
		return &rrfFuser{k: k}
	default:
		return &rrfFuser{k: k}
	}
}

// accumulator collects per-item contributions while preserving first-seen
// order for the tie-break rule.
type accumulator struct {
	order []string
	items map[string]*domain.MergedItem
}

func newAccumulator() *accumulator {
	return &accumulator{items: make(map[string]*domain.MergedItem)}
}

func (a *accumulator) add(item domain.ScoredItem, contribution, weight float64) {
	m, ok := a.items[item.ID]
	if !ok {
		m = &domain.MergedItem{ScoredItem: item}
		m.Payload = item.Payload.Clone()
		a.items[item.ID] = m
		a.order = append(a.order, item.ID)
	}
	m.CombinedScore += contribution
	m.Sources = append(m.Sources, domain.Source{
		VectorType: item.VectorType,
		Score:      item.Score,
		Rank:       item.Rank,
		Weight:     weight,
	})
	m.MergedFrom = len(m.Sources)
}

// ranked returns the merged items sorted by combined score descending,
// stable by first-seen order on ties.
func (a *accumulator) ranked() []domain.MergedItem {
	out := make([]domain.MergedItem, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.items[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	return out
}

// rrfFuser scores an item by summing 1/(k+rank) across the lists it appears
// in. Rank is 1-based in the order the vector store returned results.
type rrfFuser struct {
	k int
}

func (f *rrfFuser) Fuse(types []string, lists map[string][]domain.ScoredItem) []domain.MergedItem {
	acc := newAccumulator()
	for _, vt := range types {
		for _, item := range lists[vt] {
			acc.add(item, 1.0/float64(f.k+item.Rank), 1)
		}
	}
	return acc.ranked()
}

// weightedFuser averages raw scores weighted by static per-type weights:
// sum(score*weight) / sum(weight) over the types the item appears in.
type weightedFuser struct {
	weights map[string]float64
}

func (f *weightedFuser) Fuse(types []string, lists map[string][]domain.ScoredItem) []domain.MergedItem {
	acc := newAccumulator()
	weightSums := make(map[string]float64)

	for _, vt := range types {
		w := domain.TypeWeight(f.weights, vt)
		for _, item := range lists[vt] {
			acc.add(item, item.Score*w, w)
			weightSums[item.ID] += w
		}
	}

	for id, m := range acc.items {
		if ws := weightSums[id]; ws > 0 {
			m.CombinedScore /= ws
		}
	}
	return acc.ranked()
}

// hybridFuser blends both rankings: 0.6*rrf + 0.4*weighted, using 0 for an
// item missing from either computation.
type hybridFuser struct {
	rrf      *rrfFuser
	weighted *weightedFuser
}

func (f *hybridFuser) Fuse(types []string, lists map[string][]domain.ScoredItem) []domain.MergedItem {
	rrfItems := f.rrf.Fuse(types, lists)
	weightedScores := make(map[string]float64)
	for _, m := range f.weighted.Fuse(types, lists) {
		weightedScores[m.ID] = m.CombinedScore
	}

	// RRF sees every item that appears in any list, so its output is the
	// full candidate set.
	for i := range rrfItems {
		rrfItems[i].CombinedScore = hybridRRFWeight*rrfItems[i].CombinedScore +
			hybridWeightedWeight*weightedScores[rrfItems[i].ID]
	}

	sort.SliceStable(rrfItems, func(i, j int) bool {
		return rrfItems[i].CombinedScore > rrfItems[j].CombinedScore
	})
	return rrfItems
}
