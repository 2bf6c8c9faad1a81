package domain

import "fmt"

// Fallback search request bounds, used when SearchBounds is left zero.
const (
	DefaultMaxResults = 10
	MaxMaxResults     = 100
)

// SearchBounds caps client-supplied result counts. The zero value falls
// back to DefaultMaxResults and MaxMaxResults.
type SearchBounds struct {
	Default int
	Max     int
}

// Clamp normalizes a requested result count against the bounds.
func (b SearchBounds) Clamp(n int) int {
	def, maxN := b.Default, b.Max
	if def <= 0 {
		def = DefaultMaxResults
	}
	if maxN <= 0 {
		maxN = MaxMaxResults
	}
	if n <= 0 {
		return def
	}
	if n > maxN {
		return maxN
	}
	return n
}

// Filters are the exact-match metadata predicates applied at the index
// level before KNN ranking. Empty fields pass everything through.
type Filters struct {
	Category   string
	Difficulty string
}

// IsEmpty reports whether no predicate is set.
func (f Filters) IsEmpty() bool { return f.Category == "" && f.Difficulty == "" }

// SearchRequest is a validated, normalized search query.
type SearchRequest struct {
	query         string
	filters       Filters
	maxResults    int
	minSimilarity float64
}

// NewSearchRequest validates and normalizes search parameters.
// maxResults is clamped against bounds; minSimilarity must lie in [0,1].
func NewSearchRequest(query string, filters Filters, maxResults int, minSimilarity float64, bounds SearchBounds) (SearchRequest, error) {
	if query == "" {
		return SearchRequest{}, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	maxResults = bounds.Clamp(maxResults)
	if minSimilarity < 0 || minSimilarity > 1 {
		return SearchRequest{}, fmt.Errorf("%w: min_similarity must be between 0 and 1", ErrInvalidRequest)
	}
	return SearchRequest{
		query:         query,
		filters:       filters,
		maxResults:    maxResults,
		minSimilarity: minSimilarity,
	}, nil
}

// Query returns the raw query string.
func (r SearchRequest) Query() string { return r.query }

// Filters returns the metadata predicates.
func (r SearchRequest) Filters() Filters { return r.filters }

// MaxResults returns the result cap.
func (r SearchRequest) MaxResults() int { return r.maxResults }

// MinSimilarity returns the similarity floor.
func (r SearchRequest) MinSimilarity() float64 { return r.minSimilarity }

// Candidate is a scored hit from one retrieval branch, before merging.
type Candidate struct {
	ContentID   string
	Score       float64 // cosine similarity in [0,1]
	Seq         int64   // corpus-order sequence of the hit
	SourceQuery string  // expanded query string that produced the hit
}

// RankedResult is a deduplicated, hydrated search hit.
type RankedResult struct {
	Item    ContentItem
	Score   float64
	Summary string // optional, attached by the enhancer
}

// QueryCount is a search query with its observed frequency.
type QueryCount struct {
	Query string
	Count int64
}
