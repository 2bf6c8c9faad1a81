package search

import (
	"context"
	"time"

	"github.com/meridianlab/semsearch/internal/domain"
)

// Expander produces query variants; it degrades instead of failing.
type Expander interface {
	Expand(ctx context.Context, query string) domain.Expansion
}

// Retriever runs KNN searches over the content index.
type Retriever interface {
	Retrieve(
		ctx context.Context, expansion domain.Expansion,
		filters domain.Filters, topK int,
	) ([]domain.Candidate, error)

	RetrieveVector(
		ctx context.Context, vector []float32,
		filters domain.Filters, topK int,
	) ([]domain.Candidate, error)
}

// ContentReader hydrates candidates into full content items.
type ContentReader interface {
	GetMulti(ctx context.Context, ids []string) ([]domain.ContentItem, error)
	Vector(ctx context.Context, id string) ([]float32, error)
	CategoryCounts(ctx context.Context) (map[string]int64, error)
}

// Enhancer attaches summaries to ranked results.
type Enhancer interface {
	Summarize(ctx context.Context, results []domain.RankedResult) bool
}

// StatsRecorder persists per-search statistics.
type StatsRecorder interface {
	Record(ctx context.Context, query string, latency time.Duration) error
	TopQueries(ctx context.Context, n int) ([]domain.QueryCount, error)
}
