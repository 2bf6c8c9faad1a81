package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/meridianlab/semsearch/internal/db"
	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/repository/content"
)

// store is the consumer interface for vector search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements usecase/retrieve.Repository.
type Repo struct {
	store store
	keys  content.Keys
}

// New creates a search repository over the content index.
func New(s store, keys content.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// SearchKNN performs a KNN vector search and returns ranked candidates.
// The sourceQuery label is attached to every candidate so callers can
// trace which expansion branch produced it.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, filters domain.Filters, topK int, sourceQuery string,
) ([]domain.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    r.keys.IndexName(),
		Vector:       vector,
		K:            topK,
		Filters:      buildTagFilters(filters),
		ReturnFields: []string{"seq"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	return r.parseCandidates(sr, sourceQuery), nil
}

// buildTagFilters translates domain filters into db tag filters.
func buildTagFilters(f domain.Filters) []db.TagFilter {
	var out []db.TagFilter
	if f.Category != "" {
		out = append(out, db.TagFilter{Field: "category", Value: f.Category})
	}
	if f.Difficulty != "" {
		out = append(out, db.TagFilter{Field: "difficulty", Value: f.Difficulty})
	}
	return out
}

// parseCandidates converts db.SearchResult into []domain.Candidate.
func (r *Repo) parseCandidates(sr *db.SearchResult, sourceQuery string) []domain.Candidate {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	candidates := make([]domain.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c := domain.Candidate{
			ContentID:   r.keys.IDFromKey(entry.Key),
			Score:       entry.Score,
			SourceQuery: sourceQuery,
		}
		if seq, err := strconv.ParseInt(entry.Fields["seq"], 10, 64); err == nil {
			c.Seq = seq
		}
		candidates = append(candidates, c)
	}
	return candidates
}
