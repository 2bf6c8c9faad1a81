package expand

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/metrics"
)

// minVariantLength filters out degenerate lines like "1." or "- ".
const minVariantLength = 5

// Service expands a search query into semantically related variants via an LLM.
type Service struct {
	completer   Completer
	maxVariants int
	logger      *zap.Logger
}

// New creates an expansion service.
func New(completer Completer, maxVariants int, logger *zap.Logger) *Service {
	return &Service{
		completer:   completer,
		maxVariants: maxVariants,
		logger:      logger,
	}
}

// Expand returns an expansion of at most maxVariants queries, the
// original always first. Any failure degrades to the original query
// alone; expansion never fails a search.
func (s *Service) Expand(ctx context.Context, query string) domain.Expansion {
	// the original query occupies one slot
	budget := s.maxVariants - 1
	if budget <= 0 {
		return domain.Expansion{Queries: []string{query}}
	}

	raw, err := s.completer.Complete(ctx, buildPrompt(query, budget))
	if err != nil {
		metrics.ExpansionDegradedTotal.Inc()
		s.logger.Warn("Query expansion degraded to original query",
			zap.String("query", query),
			zap.Error(err))
		return domain.IdentityExpansion(query)
	}

	variants := parseVariants(raw, query, budget)
	if len(variants) == 0 {
		metrics.ExpansionDegradedTotal.Inc()
		s.logger.Warn("Query expansion produced no usable variants",
			zap.String("query", query))
		return domain.IdentityExpansion(query)
	}

	return domain.NewExpansion(query, variants)
}

func buildPrompt(query string, n int) string {
	return fmt.Sprintf(
		"Generate %d alternative search queries that capture different aspects "+
			"and phrasings of the following query. Use synonyms and related "+
			"concepts. Return one query per line with no numbering or extra text.\n\n"+
			"Query: %s",
		n, query,
	)
}

// parseVariants extracts usable query variants from an LLM completion.
// Bullets, numbering, and surrounding quotes are stripped; blank or
// too-short lines and duplicates of the original are dropped.
func parseVariants(raw, original string, maxVariants int) []string {
	seen := map[string]bool{
		strings.ToLower(strings.TrimSpace(original)): true,
	}

	var variants []string
	for _, line := range strings.Split(raw, "\n") {
		v := cleanLine(line)
		if len(v) <= minVariantLength {
			continue
		}

		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true

		variants = append(variants, v)
		if len(variants) >= maxVariants {
			break
		}
	}
	return variants
}

func cleanLine(line string) string {
	v := strings.TrimSpace(line)
	v = strings.TrimLeft(v, "-•*")
	v = strings.TrimSpace(v)

	// strip "1." / "2)" style numbering
	if i := strings.IndexAny(v, ".)"); i > 0 && i <= 2 && isDigits(v[:i]) {
		v = strings.TrimSpace(v[i+1:])
	}

	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
