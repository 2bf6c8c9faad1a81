package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/metrics"
	"github.com/meridianlab/semsearch/internal/usecase/aggregate"
)

// Response is the outcome of one search: ranked results plus the
// degradation flags the transport surfaces to clients.
type Response struct {
	Results           []domain.RankedResult
	QueriesUsed       []string
	ExpansionDegraded bool
	SummaryDegraded   bool
	TotalCandidates   int
	Took              time.Duration
}

// Service orchestrates the search pipeline: expand, retrieve in
// parallel, merge, hydrate, summarize.
type Service struct {
	expander       Expander
	retriever      Retriever
	content        ContentReader
	enhancer       Enhancer
	stats          StatsRecorder
	bounds         domain.SearchBounds
	defaultMinSim  float64
	requestTimeout time.Duration
	logger         *zap.Logger
}

// New creates a search service. enhancer and stats can be nil.
func New(
	expander Expander, retriever Retriever, content ContentReader,
	enhancer Enhancer, stats StatsRecorder,
	bounds domain.SearchBounds, defaultMinSim float64, requestTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		expander:       expander,
		retriever:      retriever,
		content:        content,
		enhancer:       enhancer,
		stats:          stats,
		bounds:         bounds,
		defaultMinSim:  defaultMinSim,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Search runs the full pipeline for a validated request.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (Response, error) {
	start := time.Now()

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	expansion := s.expander.Expand(ctx, req.Query())

	candidates, err := s.retriever.Retrieve(ctx, expansion, req.Filters(), req.MaxResults())
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("retrieve: %w", err)
	}

	merged := aggregate.Merge(candidates, s.minSimilarity(req), req.MaxResults())

	results, err := s.hydrate(ctx, merged)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("hydrate results: %w", err)
	}

	summaryDegraded := false
	if s.enhancer != nil {
		summaryDegraded = s.enhancer.Summarize(ctx, results)
	}

	took := time.Since(start)
	s.recordStats(ctx, req.Query(), took)

	metrics.SearchesTotal.WithLabelValues("ok").Inc()
	metrics.SearchDuration.Observe(took.Seconds())
	metrics.SearchResultsReturned.Observe(float64(len(results)))

	return Response{
		Results:           results,
		QueriesUsed:       expansion.Queries,
		ExpansionDegraded: expansion.Degraded,
		SummaryDegraded:   summaryDegraded,
		TotalCandidates:   len(candidates),
		Took:              took,
	}, nil
}

// FindSimilar returns content nearest to an existing item, excluding
// the item itself.
func (s *Service) FindSimilar(ctx context.Context, id string, topK int) ([]domain.RankedResult, error) {
	topK = s.bounds.Clamp(topK)

	vector, err := s.content.Vector(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load vector %s: %w", id, err)
	}

	// one extra slot since the item itself comes back as a perfect match
	candidates, err := s.retriever.RetrieveVector(ctx, vector, domain.Filters{}, topK+1)
	if err != nil {
		return nil, fmt.Errorf("retrieve similar: %w", err)
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.ContentID != id {
			filtered = append(filtered, c)
		}
	}

	merged := aggregate.Merge(filtered, s.defaultMinSim, topK)
	return s.hydrate(ctx, merged)
}

// Suggest returns query suggestions for a prefix: popular past queries
// first, then matching category names.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	seen := make(map[string]bool)
	var suggestions []string
	add := func(v string) {
		key := strings.ToLower(v)
		if seen[key] || len(suggestions) >= limit {
			return
		}
		if prefix != "" && !strings.Contains(key, prefix) {
			return
		}
		seen[key] = true
		suggestions = append(suggestions, v)
	}

	if s.stats != nil {
		top, err := s.stats.TopQueries(ctx, limit*2)
		if err != nil {
			s.logger.Warn("Failed to load popular queries for suggestions", zap.Error(err))
		} else {
			for _, qc := range top {
				add(qc.Query)
			}
		}
	}

	counts, err := s.content.CategoryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		add(c)
	}

	return suggestions, nil
}

// hydrate loads full items for merged candidates, preserving rank order
// and silently dropping candidates whose item disappeared.
func (s *Service) hydrate(ctx context.Context, merged []domain.Candidate) ([]domain.RankedResult, error) {
	if len(merged) == 0 {
		return nil, nil
	}

	ids := make([]string, len(merged))
	for i, c := range merged {
		ids[i] = c.ContentID
	}

	items, err := s.content.GetMulti(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.ContentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	results := make([]domain.RankedResult, 0, len(merged))
	for _, c := range merged {
		item, ok := byID[c.ContentID]
		if !ok {
			continue
		}
		results = append(results, domain.RankedResult{Item: item, Score: c.Score})
	}
	return results, nil
}

func (s *Service) minSimilarity(req domain.SearchRequest) float64 {
	if req.MinSimilarity() > 0 {
		return req.MinSimilarity()
	}
	return s.defaultMinSim
}

// recordStats is best effort: a broken stats backend must not fail the search.
func (s *Service) recordStats(ctx context.Context, query string, took time.Duration) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Record(ctx, query, took); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to record search stats", zap.Error(err))
	}
}
