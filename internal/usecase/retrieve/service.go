package retrieve

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/metrics"
)

// Service embeds each expanded query and runs the KNN searches in parallel.
type Service struct {
	repo          Repository
	embed         Embedder
	branchTimeout time.Duration
	logger        *zap.Logger
}

// New creates a retrieval service.
func New(repo Repository, embed Embedder, branchTimeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		embed:         embed,
		branchTimeout: branchTimeout,
		logger:        logger,
	}
}

// Retrieve fans out one embed+search branch per expanded query and
// returns the flattened candidates in branch order. A failed branch is
// logged and dropped; the search only fails when every branch fails.
func (s *Service) Retrieve(
	ctx context.Context, expansion domain.Expansion, filters domain.Filters, topK int,
) ([]domain.Candidate, error) {
	queries := expansion.Queries
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no queries to retrieve", domain.ErrInvalidRequest)
	}

	slots := make([][]domain.Candidate, len(queries))
	var succeeded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			branchCtx := gctx
			if s.branchTimeout > 0 {
				var cancel context.CancelFunc
				branchCtx, cancel = context.WithTimeout(gctx, s.branchTimeout)
				defer cancel()
			}

			candidates, err := s.retrieveOne(branchCtx, query, filters, topK)
			if err != nil {
				metrics.RetrievalBranchesTotal.WithLabelValues("error").Inc()
				s.logger.Warn("Retrieval branch failed",
					zap.String("query", query),
					zap.Error(err))
				// absorbed: one bad branch must not cancel the others
				return nil
			}

			metrics.RetrievalBranchesTotal.WithLabelValues("ok").Inc()
			slots[i] = candidates
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if succeeded.Load() == 0 {
		return nil, fmt.Errorf("all %d retrieval branches failed: %w",
			len(queries), domain.ErrRetrievalUnavailable)
	}

	var out []domain.Candidate
	for _, candidates := range slots {
		out = append(out, candidates...)
	}
	return out, nil
}

// RetrieveVector runs a single KNN search over an existing vector,
// bypassing embedding. Used for similar-content lookups.
func (s *Service) RetrieveVector(
	ctx context.Context, vector []float32, filters domain.Filters, topK int,
) ([]domain.Candidate, error) {
	candidates, err := s.repo.SearchKNN(ctx, vector, filters, topK, "")
	if err != nil {
		return nil, fmt.Errorf("search by vector: %w", err)
	}
	return candidates, nil
}

func (s *Service) retrieveOne(
	ctx context.Context, query string, filters domain.Filters, topK int,
) ([]domain.Candidate, error) {
	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	candidates, err := s.repo.SearchKNN(ctx, embResult.Embedding, filters, topK, query)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return candidates, nil
}
