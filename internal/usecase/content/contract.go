package content

import (
	"context"

	"github.com/meridianlab/semsearch/internal/domain"
)

// Repository persists content items and their vectors.
type Repository interface {
	Upsert(ctx context.Context, item *domain.ContentItem, vector []float32) (bool, error)
	Get(ctx context.Context, id string) (domain.ContentItem, error)
	Count(ctx context.Context) (int, error)
	CategoryCounts(ctx context.Context) (map[string]int64, error)
}

// StatsReader exposes aggregate search statistics.
type StatsReader interface {
	Totals(ctx context.Context) (int64, float64, error)
	TopQueries(ctx context.Context, n int) ([]domain.QueryCount, error)
}
