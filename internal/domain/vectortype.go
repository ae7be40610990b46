package domain

// Known vector types. Each is an independently maintained embedding space
// capturing one facet of the same item set.
const (
	TypeSemantic      = "semantic"
	TypeCategories    = "categories"
	TypeFunctionality = "functionality"
	TypeAliases       = "aliases"
	TypeComposites    = "composites"
)

// DefaultTypeWeight is the weight applied to vector types without an explicit one.
const DefaultTypeWeight = 0.5

// DefaultTypeWeights returns the static per-type weights used by weighted fusion.
func DefaultTypeWeights() map[string]float64 {
	return map[string]float64{
		TypeSemantic:      1.0,
		TypeCategories:    0.8,
		TypeFunctionality: 0.7,
		TypeAliases:       0.6,
		TypeComposites:    0.5,
	}
}

// TypeWeight looks up a type weight, falling back to DefaultTypeWeight.
func TypeWeight(weights map[string]float64, vectorType string) float64 {
	if w, ok := weights[vectorType]; ok {
		return w
	}
	return DefaultTypeWeight
}
