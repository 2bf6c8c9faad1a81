package content

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
)

// Stats is the corpus and usage overview served by the stats endpoint.
type Stats struct {
	TotalItems     int
	Categories     map[string]int64
	TotalSearches  int64
	AvgLatencyMS   float64
	PopularQueries []domain.QueryCount
}

// Service handles content ingestion and lookup.
type Service struct {
	repo   Repository
	embed  domain.Embedder
	stats  StatsReader
	logger *zap.Logger
}

// New creates a content service. stats can be nil.
func New(repo Repository, embed domain.Embedder, stats StatsReader, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, stats: stats, logger: logger}
}

// Ingest validates, embeds and stores one item. A missing id gets a
// generated one; re-ingesting an existing id overwrites it in place.
// Returns the stored item and whether it was newly created.
func (s *Service) Ingest(ctx context.Context, item domain.ContentItem) (domain.ContentItem, bool, error) {
	if err := item.Validate(); err != nil {
		return domain.ContentItem{}, false, err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt == "" {
		item.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	result, err := s.embed.Embed(ctx, item.EmbeddingText())
	if err != nil {
		return domain.ContentItem{}, false, fmt.Errorf("embed content %s: %w", item.ID, err)
	}

	created, err := s.repo.Upsert(ctx, &item, result.Embedding)
	if err != nil {
		return domain.ContentItem{}, false, fmt.Errorf("store content %s: %w", item.ID, err)
	}

	s.logger.Info("Content ingested",
		zap.String("id", item.ID),
		zap.String("category", item.Category),
		zap.Bool("created", created),
	)
	return item, created, nil
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, id string) (domain.ContentItem, error) {
	return s.repo.Get(ctx, id)
}

// Stats assembles the corpus overview. Search statistics are best
// effort: the corpus counts still come back when the stats backend is
// unavailable.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count content: %w", err)
	}
	categories, err := s.repo.CategoryCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count categories: %w", err)
	}

	out := Stats{TotalItems: total, Categories: categories}
	if s.stats == nil {
		return out, nil
	}

	searches, avgMS, err := s.stats.Totals(ctx)
	if err != nil {
		s.logger.Warn("Failed to load search totals", zap.Error(err))
		return out, nil
	}
	out.TotalSearches = searches
	out.AvgLatencyMS = avgMS

	popular, err := s.stats.TopQueries(ctx, 10)
	if err != nil {
		s.logger.Warn("Failed to load popular queries", zap.Error(err))
		return out, nil
	}
	out.PopularQueries = popular
	return out, nil
}
