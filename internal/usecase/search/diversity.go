package search

import (
	"strings"

	"github.com/kailas-cloud/toolvec/internal/domain"
)

// DefaultDiversityThreshold caps the share any single category may take of
// the selected results.
const DefaultDiversityThreshold = 0.7

// filterDiverse walks the score-sorted list and drops items that would push
// their category's share of the selection to the threshold or repeat an
// already-selected name exactly. Items without a category never count
// against any quota.
func filterDiverse(items []domain.MergedItem, threshold float64) []domain.MergedItem {
	if threshold <= 0 || threshold >= 1 {
		return items
	}

	selected := make([]domain.MergedItem, 0, len(items))
	categoryCounts := make(map[string]int)
	seenNames := make(map[string]struct{})

	for _, item := range items {
		if name, ok := item.Payload.Name(); ok {
			key := strings.ToLower(strings.TrimSpace(name))
			if _, dup := seenNames[key]; dup {
				continue
			}
		}

		category, hasCategory := item.Payload.Category()
		if hasCategory && len(selected) > 0 {
			share := float64(categoryCounts[category]) / float64(len(selected))
			if share >= threshold {
				continue
			}
		}

		selected = append(selected, item)
		if hasCategory {
			categoryCounts[category]++
		}
		if name, ok := item.Payload.Name(); ok {
			seenNames[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
		}
	}
	return selected
}
