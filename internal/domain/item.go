package domain

// ScoredItem is a single hit from one vector type.
// Score ranges differ by vector type; only rank is comparable across types.
// Rank is 1-based, assigned in the order the vector store returned results.
type ScoredItem struct {
	ID         string
	Score      float64
	Payload    Payload
	VectorType string
	Rank       int
}

// Source records one vector type's contribution to a merged item.
type Source struct {
	VectorType string
	Score      float64
	Rank       int
	Weight     float64
}

// MergedItem is a ScoredItem after rank fusion: the combined score's meaning
// depends on the strategy that produced it.
type MergedItem struct {
	ScoredItem
	CombinedScore float64
	Sources       []Source
	MergedFrom    int
}

// HasSource reports whether a vector type contributed to this item.
func (m *MergedItem) HasSource(vectorType string) bool {
	for _, s := range m.Sources {
		if s.VectorType == vectorType {
			return true
		}
	}
	return false
}
