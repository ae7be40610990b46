package dedup

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/toolvec/internal/domain"
)

// Built-in strategy priorities. Custom rules interleave by priority value;
// lower runs first.
const (
	PriorityExactID      = 100
	PriorityExactURL     = 200
	PriorityContent      = 300
	PriorityVersionAware = 400
	PriorityFuzzy        = 500
)

// Duplicate types reported in verdicts.
const (
	TypeExact          = "exact"
	TypeContent        = "content"
	TypeVersionVariant = "version-variant"
	TypeFuzzy          = "fuzzy"
)

// contentNameWeight and contentDescWeight combine the exact-name signal with
// description overlap for the content strategy.
const (
	contentNameWeight = 0.7
	contentDescWeight = 0.3
)

func builtinRules(cfg Config) []Rule {
	return []Rule{
		{
			ID:       "exact_id",
			Priority: PriorityExactID,
			Match: func(a, b *domain.MergedItem) Verdict {
				if a.ID != "" && a.ID == b.ID {
					return Verdict{IsDuplicate: true, Similarity: 1.0, DetectedBy: "exact_id", Type: TypeExact}
				}
				return Verdict{}
			},
		},
		{
			ID:       "exact_url",
			Priority: PriorityExactURL,
			Match: func(a, b *domain.MergedItem) Verdict {
				urlA, okA := a.Payload.URL()
				urlB, okB := b.Payload.URL()
				if okA && okB && urlA == urlB {
					return Verdict{IsDuplicate: true, Similarity: 1.0, DetectedBy: "exact_url", Type: TypeExact}
				}
				return Verdict{}
			},
		},
		{
			ID:       "content_similarity",
			Priority: PriorityContent,
			Match: func(a, b *domain.MergedItem) Verdict {
				sim := contentSimilarity(a, b)
				if sim >= cfg.ContentThreshold {
					return Verdict{IsDuplicate: true, Similarity: sim, DetectedBy: "content_similarity", Type: TypeContent}
				}
				return Verdict{Similarity: sim}
			},
		},
		{
			ID:       "version_aware",
			Priority: PriorityVersionAware,
			Match: func(a, b *domain.MergedItem) Verdict {
				nameA, okA := a.Payload.Name()
				nameB, okB := b.Payload.Name()
				if !okA || !okB {
					return Verdict{}
				}
				baseA := stripVersionSuffix(nameA)
				baseB := stripVersionSuffix(nameB)
				if baseA == "" || !strings.EqualFold(baseA, baseB) {
					return Verdict{}
				}
				if strings.EqualFold(nameA, nameB) && !versionsDiffer(a, b) {
					// Identical names without distinct versions belong to
					// the content strategy, not this one.
					return Verdict{}
				}
				return Verdict{IsDuplicate: true, Similarity: 0.95, DetectedBy: "version_aware", Type: TypeVersionVariant}
			},
		},
		{
			ID:       "fuzzy_match",
			Priority: PriorityFuzzy,
			Match: func(a, b *domain.MergedItem) Verdict {
				sim := fuzzySimilarity(a, b)
				if sim >= cfg.FuzzyThreshold {
					return Verdict{IsDuplicate: true, Similarity: sim, DetectedBy: "fuzzy_match", Type: TypeFuzzy}
				}
				return Verdict{Similarity: sim}
			},
		},
	}
}

// contentSimilarity weighs an exact name match against word-level Jaccard
// overlap of the descriptions.
func contentSimilarity(a, b *domain.MergedItem) float64 {
	nameA, okA := a.Payload.Name()
	nameB, okB := b.Payload.Name()

	var nameSignal float64
	if okA && okB && strings.EqualFold(strings.TrimSpace(nameA), strings.TrimSpace(nameB)) {
		nameSignal = 1
	}

	descA, _ := a.Payload.Description()
	descB, _ := b.Payload.Description()
	return contentNameWeight*nameSignal + contentDescWeight*jaccardWords(descA, descB)
}

// fuzzySimilarity is the last-resort approximate match, combining edit
// similarity of the names with description overlap.
func fuzzySimilarity(a, b *domain.MergedItem) float64 {
	nameA, okA := a.Payload.Name()
	nameB, okB := b.Payload.Name()
	if !okA || !okB {
		return 0
	}
	nameSim := editSimilarity(strings.ToLower(nameA), strings.ToLower(nameB))

	descA, _ := a.Payload.Description()
	descB, _ := b.Payload.Description()
	return contentNameWeight*nameSim + contentDescWeight*jaccardWords(descA, descB)
}

// jaccardWords computes word-set Jaccard similarity of two strings.
func jaccardWords(a, b string) float64 {
	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

// editSimilarity is 1 - normalized Levenshtein distance.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	dist := prev[len(rb)]
	maxLen := max(len(ra), len(rb))
	return 1 - float64(dist)/float64(maxLen)
}

// versionSuffixRe matches a trailing version token: "tool v2", "tool 1.2.3",
// "tool-2.0".
var versionSuffixRe = regexp.MustCompile(`[\s\-_]+v?\d+(\.\d+)*$`)

// stripVersionSuffix removes a trailing version token from a name.
func stripVersionSuffix(name string) string {
	return strings.TrimSpace(versionSuffixRe.ReplaceAllString(strings.TrimSpace(name), ""))
}

// versionsDiffer reports whether the payloads carry distinct version fields.
func versionsDiffer(a, b *domain.MergedItem) bool {
	verA, okA := a.Payload.Version()
	verB, okB := b.Payload.Version()
	return okA && okB && verA != verB
}
