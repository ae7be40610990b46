package search

import (
	"math"
	"testing"

	"github.com/kailas-cloud/toolvec/internal/domain"
)

func scored(id string, score float64, vt string, rank int) domain.ScoredItem {
	return domain.ScoredItem{
		ID:         id,
		Score:      score,
		VectorType: vt,
		Rank:       rank,
		Payload:    domain.Payload{"name": id},
	}
}

func twoTypeLists() ([]string, map[string][]domain.ScoredItem) {
	types := []string{domain.TypeSemantic, domain.TypeCategories}
	lists := map[string][]domain.ScoredItem{
		domain.TypeSemantic: {
			scored("a", 0.9, domain.TypeSemantic, 1),
			scored("b", 0.7, domain.TypeSemantic, 2),
		},
		domain.TypeCategories: {
			scored("b", 0.8, domain.TypeCategories, 1),
			scored("c", 0.6, domain.TypeCategories, 2),
		},
	}
	return types, lists
}

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %.10f, want %.10f", got, want)
	}
}

func TestRRF_ScoreFormula(t *testing.T) {
	types := []string{domain.TypeSemantic, domain.TypeCategories}
	lists := map[string][]domain.ScoredItem{
		domain.TypeSemantic: {scored("a", 0.9, domain.TypeSemantic, 1)},
		domain.TypeCategories: {
			scored("x", 0.9, domain.TypeCategories, 1),
			scored("y", 0.8, domain.TypeCategories, 2),
			scored("z", 0.7, domain.TypeCategories, 3),
			scored("w", 0.6, domain.TypeCategories, 4),
			scored("a", 0.5, domain.TypeCategories, 5),
		},
	}

	f := &rrfFuser{k: 60}
	merged := f.Fuse(types, lists)

	byID := make(map[string]domain.MergedItem)
	for _, m := range merged {
		byID[m.ID] = m
	}

	// a appears at rank 1 and rank 5: 1/61 + 1/65
	approx(t, byID["a"].CombinedScore, 1.0/61+1.0/65)
	// x appears only at rank 1: 1/61, strictly below a
	approx(t, byID["x"].CombinedScore, 1.0/61)
	if byID["a"].CombinedScore <= byID["x"].CombinedScore {
		t.Error("two-list item must outrank a single-list item at the better rank")
	}
	if merged[0].ID != "a" {
		t.Errorf("expected 'a' first, got %s", merged[0].ID)
	}
}

func TestRRF_MergedAttribution(t *testing.T) {
	types := []string{domain.TypeSemantic, domain.TypeCategories}
	lists := map[string][]domain.ScoredItem{
		domain.TypeSemantic:   {scored("a", 0.9, domain.TypeSemantic, 1)},
		domain.TypeCategories: {scored("a", 0.8, domain.TypeCategories, 2)},
	}

	merged := (&rrfFuser{k: 60}).Fuse(types, lists)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged item, got %d", len(merged))
	}

	m := merged[0]
	if m.MergedFrom != 2 {
		t.Errorf("MergedFrom = %d, want 2", m.MergedFrom)
	}
	if len(m.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(m.Sources))
	}
	if m.Sources[0].VectorType != domain.TypeSemantic || m.Sources[0].Rank != 1 {
		t.Errorf("first source = %+v", m.Sources[0])
	}
	if m.Sources[1].VectorType != domain.TypeCategories || m.Sources[1].Rank != 2 {
		t.Errorf("second source = %+v", m.Sources[1])
	}
	approx(t, m.CombinedScore, 1.0/61+1.0/62)
}

func TestRRF_OrderStable(t *testing.T) {
	types, lists := twoTypeLists()
	f := &rrfFuser{k: 60}

	first := f.Fuse(types, lists)
	for i := 0; i < 20; i++ {
		again := f.Fuse(types, lists)
		if len(again) != len(first) {
			t.Fatal("length changed between runs")
		}
		for j := range first {
			if again[j].ID != first[j].ID {
				t.Fatalf("run %d: order differs at %d: %s != %s", i, j, again[j].ID, first[j].ID)
			}
		}
	}
}

func TestRRF_TieBreakFirstSeen(t *testing.T) {
	// Both items sit at rank 1 of their respective lists: identical RRF
	// score. The declared type order decides.
	types := []string{domain.TypeSemantic, domain.TypeCategories}
	lists := map[string][]domain.ScoredItem{
		domain.TypeSemantic:   {scored("sem-first", 0.9, domain.TypeSemantic, 1)},
		domain.TypeCategories: {scored("cat-first", 0.9, domain.TypeCategories, 1)},
	}

	merged := (&rrfFuser{k: 60}).Fuse(types, lists)
	if merged[0].ID != "sem-first" || merged[1].ID != "cat-first" {
		t.Fatalf("tie-break violated: %s, %s", merged[0].ID, merged[1].ID)
	}
}

func TestWeighted_Average(t *testing.T) {
	types, lists := twoTypeLists()
	f := &weightedFuser{weights: domain.DefaultTypeWeights()}

	merged := f.Fuse(types, lists)
	byID := make(map[string]domain.MergedItem)
	for _, m := range merged {
		byID[m.ID] = m
	}

	// a: semantic only -> 0.9*1.0/1.0
	approx(t, byID["a"].CombinedScore, 0.9)
	// b: (0.7*1.0 + 0.8*0.8) / (1.0+0.8)
	approx(t, byID["b"].CombinedScore, (0.7*1.0+0.8*0.8)/1.8)
	// c: categories only -> 0.6*0.8/0.8
	approx(t, byID["c"].CombinedScore, 0.6)
}

func TestWeighted_UnknownTypeDefaults(t *testing.T) {
	types := []string{"experimental"}
	lists := map[string][]domain.ScoredItem{
		"experimental": {scored("a", 0.5, "experimental", 1)},
	}

	merged := (&weightedFuser{weights: domain.DefaultTypeWeights()}).Fuse(types, lists)
	approx(t, merged[0].CombinedScore, 0.5) // weight cancels in the average
	if merged[0].Sources[0].Weight != domain.DefaultTypeWeight {
		t.Errorf("weight = %f, want %f", merged[0].Sources[0].Weight, domain.DefaultTypeWeight)
	}
}

func TestHybrid_BlendsBoth(t *testing.T) {
	types, lists := twoTypeLists()

	rrf := (&rrfFuser{k: 60}).Fuse(types, lists)
	weighted := (&weightedFuser{weights: domain.DefaultTypeWeights()}).Fuse(types, lists)
	hybrid := NewFuser(domain.StrategyHybrid, 60, nil, nil).Fuse(types, lists)

	rrfByID := make(map[string]float64)
	for _, m := range rrf {
		rrfByID[m.ID] = m.CombinedScore
	}
	weightedByID := make(map[string]float64)
	for _, m := range weighted {
		weightedByID[m.ID] = m.CombinedScore
	}

	for _, m := range hybrid {
		approx(t, m.CombinedScore, 0.6*rrfByID[m.ID]+0.4*weightedByID[m.ID])
	}
}

func TestNewFuser_Fallbacks(t *testing.T) {
	types, lists := twoTypeLists()
	want := (&rrfFuser{k: 60}).Fuse(types, lists)

	t.Run("unknown strategy falls back to rrf", func(t *testing.T) {
		got := NewFuser("mystery", 60, nil, nil).Fuse(types, lists)
		if len(got) != len(want) || got[0].ID != want[0].ID {
			t.Fatal("expected rrf fallback semantics")
		}
	})

	t.Run("custom without implementation falls back to rrf", func(t *testing.T) {
		got := NewFuser(domain.StrategyCustom, 60, nil, nil).Fuse(types, lists)
		if len(got) != len(want) || got[0].ID != want[0].ID {
			t.Fatal("expected rrf fallback semantics")
		}
	})

	t.Run("custom implementation wins", func(t *testing.T) {
		f := NewFuser(domain.StrategyCustom, 60, nil, reverseFuser{})
		got := f.Fuse(types, lists)
		if len(got) == 0 || got[0].ID != "reversed" {
			t.Fatal("custom fuser was not used")
		}
	})
}

type reverseFuser struct{}

func (reverseFuser) Fuse([]string, map[string][]domain.ScoredItem) []domain.MergedItem {
	return []domain.MergedItem{{ScoredItem: domain.ScoredItem{ID: "reversed"}}}
}

func TestFuse_PayloadNotAliased(t *testing.T) {
	types := []string{domain.TypeSemantic}
	original := scored("a", 0.9, domain.TypeSemantic, 1)
	lists := map[string][]domain.ScoredItem{domain.TypeSemantic: {original}}

	merged := (&rrfFuser{k: 60}).Fuse(types, lists)
	merged[0].Payload["name"] = "mutated"

	if original.Payload["name"] == "mutated" {
		t.Error("merged payload must not alias the source payload")
	}
}
