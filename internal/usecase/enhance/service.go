package enhance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/metrics"
)

// Completer generates chat completions for summarization.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service writes short summaries onto search results using a bounded
// worker pool. Only long bodies are summarized; failures leave the
// summary empty rather than failing the search.
type Service struct {
	completer Completer
	pool      *ants.Pool
	minWords  int
	maxWords  int
	logger    *zap.Logger
}

// New creates an enhancement service with workers goroutines.
func New(completer Completer, workers, minWords, maxWords int, logger *zap.Logger) (*Service, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create summary pool: %w", err)
	}

	return &Service{
		completer: completer,
		pool:      pool,
		minWords:  minWords,
		maxWords:  maxWords,
		logger:    logger,
	}, nil
}

// Release shuts down the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Summarize fills Summary in place for every result whose body exceeds
// the word threshold. Returns true if any summary could not be produced.
func (s *Service) Summarize(ctx context.Context, results []domain.RankedResult) bool {
	var wg sync.WaitGroup
	var degraded atomic.Bool

	for i := range results {
		if wordCount(results[i].Item.Body) <= s.minWords {
			metrics.SummariesSkippedTotal.WithLabelValues("short_body").Inc()
			continue
		}

		wg.Add(1)
		r := &results[i]
		submitErr := s.pool.Submit(func() {
			defer wg.Done()

			summary, err := s.summarizeOne(ctx, r.Item)
			if err != nil {
				metrics.SummariesSkippedTotal.WithLabelValues("llm_error").Inc()
				degraded.Store(true)
				s.logger.Warn("Summary generation failed",
					zap.String("content_id", r.Item.ID),
					zap.Error(err))
				return
			}
			r.Summary = summary
		})
		if submitErr != nil {
			wg.Done()
			degraded.Store(true)
			s.logger.Warn("Summary task rejected by pool",
				zap.String("content_id", r.Item.ID),
				zap.Error(submitErr))
		}
	}

	wg.Wait()
	return degraded.Load()
}

func (s *Service) summarizeOne(ctx context.Context, item domain.ContentItem) (string, error) {
	out, err := s.completer.Complete(ctx, buildPrompt(item, s.maxWords))
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", fmt.Errorf("empty summary: %w", domain.ErrLLMUnavailable)
	}
	return summary, nil
}

func buildPrompt(item domain.ContentItem, maxWords int) string {
	return fmt.Sprintf(
		"Summarize the following article in at most %d words. Keep the key "+
			"facts and drop examples. Reply with the summary only.\n\n"+
			"Title: %s\n\n%s",
		maxWords, item.Title, item.Body,
	)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
