// Package aggregate merges candidates from parallel retrieval branches
// into a single deterministic ranking.
package aggregate

import (
	"sort"

	"github.com/meridianlab/semsearch/internal/domain"
)

// Merge deduplicates candidates by content ID keeping the highest score,
// drops everything below minSimilarity, and returns at most maxResults
// candidates ordered by score descending. Equal scores order by ingest
// sequence ascending, so the ranking is stable across runs.
func Merge(candidates []domain.Candidate, minSimilarity float64, maxResults int) []domain.Candidate {
	best := make(map[string]domain.Candidate, len(candidates))
	for _, c := range candidates {
		cur, ok := best[c.ContentID]
		if !ok || c.Score > cur.Score {
			best[c.ContentID] = c
		}
	}

	merged := make([]domain.Candidate, 0, len(best))
	for _, c := range best {
		if c.Score >= minSimilarity {
			merged = append(merged, c)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Seq < merged[j].Seq
	})

	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}
