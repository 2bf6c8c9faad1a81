package chi

import (
	"math"

	"github.com/meridianlab/semsearch/internal/domain"
	contentuc "github.com/meridianlab/semsearch/internal/usecase/content"
	searchuc "github.com/meridianlab/semsearch/internal/usecase/search"
)

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query            string  `json:"query"`
	MaxResults       int     `json:"max_results,omitempty"`
	CategoryFilter   string  `json:"category_filter,omitempty"`
	DifficultyFilter string  `json:"difficulty_filter,omitempty"`
	MinSimilarity    float64 `json:"min_similarity,omitempty"`
}

// ContentResponse is one content item, optionally carrying the
// similarity score and summary of a search hit.
type ContentResponse struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Difficulty      string   `json:"difficulty"`
	ReadTime        int      `json:"read_time"`
	Author          string   `json:"author"`
	CreatedAt       string   `json:"created_at"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// SearchResponse is the POST /search reply.
type SearchResponse struct {
	Query             string            `json:"query"`
	Results           []ContentResponse `json:"results"`
	TotalResults      int               `json:"total_results"`
	SearchTime        float64           `json:"search_time"`
	ExpandedQueries   []string          `json:"expanded_queries"`
	ExpansionDegraded bool              `json:"expansion_degraded,omitempty"`
	SummaryDegraded   bool              `json:"summary_degraded,omitempty"`
}

// AddContentRequest is the POST /add-content body.
type AddContentRequest struct {
	ID         string   `json:"id,omitempty"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Difficulty string   `json:"difficulty"`
	ReadTime   int      `json:"read_time"`
	Author     string   `json:"author"`
}

// AddContentResponse is the POST /add-content reply.
type AddContentResponse struct {
	Message   string `json:"message"`
	ContentID string `json:"content_id"`
	Created   bool   `json:"created"`
	Timestamp string `json:"timestamp"`
}

// PopularQuery is one entry of the stats popular-query list.
type PopularQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// StatsResponse is the GET /stats reply.
type StatsResponse struct {
	TotalContent      int              `json:"total_content"`
	Categories        map[string]int64 `json:"categories"`
	TotalSearches     int64            `json:"total_searches"`
	AverageSearchTime float64          `json:"average_search_time"`
	PopularQueries    []PopularQuery   `json:"popular_queries"`
}

// SimilarContentResponse is the GET /similar/{id} reply.
type SimilarContentResponse struct {
	ContentID      string            `json:"content_id"`
	SimilarContent []ContentResponse `json:"similar_content"`
	TotalResults   int               `json:"total_results"`
}

// SuggestionsResponse is the GET /query-suggestions/{query} reply.
type SuggestionsResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
	Timestamp   string   `json:"timestamp"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func contentToDTO(item domain.ContentItem) ContentResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return ContentResponse{
		ID:         item.ID,
		Title:      item.Title,
		Content:    item.Body,
		Category:   item.Category,
		Tags:       tags,
		Difficulty: item.Difficulty,
		ReadTime:   item.ReadTime,
		Author:     item.Author,
		CreatedAt:  item.CreatedAt,
	}
}

func rankedToDTO(r domain.RankedResult) ContentResponse {
	dto := contentToDTO(r.Item)
	score := roundScore(r.Score)
	dto.SimilarityScore = &score
	dto.Summary = r.Summary
	return dto
}

func rankedListToDTO(results []domain.RankedResult) []ContentResponse {
	out := make([]ContentResponse, len(results))
	for i, r := range results {
		out[i] = rankedToDTO(r)
	}
	return out
}

func contentFromAdd(req AddContentRequest) domain.ContentItem {
	return domain.ContentItem{
		ID:         req.ID,
		Title:      req.Title,
		Body:       req.Content,
		Category:   req.Category,
		Tags:       req.Tags,
		Difficulty: req.Difficulty,
		ReadTime:   req.ReadTime,
		Author:     req.Author,
	}
}

func searchToDTO(query string, resp searchuc.Response) SearchResponse {
	return SearchResponse{
		Query:             query,
		Results:           rankedListToDTO(resp.Results),
		TotalResults:      len(resp.Results),
		SearchTime:        roundScore(resp.Took.Seconds()),
		ExpandedQueries:   resp.QueriesUsed,
		ExpansionDegraded: resp.ExpansionDegraded,
		SummaryDegraded:   resp.SummaryDegraded,
	}
}

func statsToDTO(stats contentuc.Stats) StatsResponse {
	categories := stats.Categories
	if categories == nil {
		categories = map[string]int64{}
	}
	popular := make([]PopularQuery, len(stats.PopularQueries))
	for i, q := range stats.PopularQueries {
		popular[i] = PopularQuery{Query: q.Query, Count: q.Count}
	}
	return StatsResponse{
		TotalContent:      stats.TotalItems,
		Categories:        categories,
		TotalSearches:     stats.TotalSearches,
		AverageSearchTime: roundScore(stats.AvgLatencyMS / 1000),
		PopularQueries:    popular,
	}
}

// roundScore rounds to 4 decimals for stable client-facing output.
func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}
