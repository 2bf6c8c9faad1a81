package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
	contentuc "github.com/meridianlab/semsearch/internal/usecase/content"
	healthuc "github.com/meridianlab/semsearch/internal/usecase/health"
	searchuc "github.com/meridianlab/semsearch/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search and content services over HTTP.
type Server struct {
	search        *searchuc.Service
	content       *contentuc.Service
	health        *healthuc.Service
	bounds        domain.SearchBounds
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	content *contentuc.Service,
	health *healthuc.Service,
	bounds domain.SearchBounds,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		content: content,
		health:  health,
		bounds:  bounds,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, "search_unavailable"),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrLLMUnavailable, http.StatusBadGateway, "llm_provider_error"),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, "vector_dim_mismatch"),
	}
	return s
}

// Routes mounts every API route on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Root)
	r.Post("/search", s.SearchContent)
	r.Get("/content/{id}", s.GetContent)
	r.Post("/add-content", s.AddContent)
	r.Get("/stats", s.GetStats)
	r.Get("/similar/{id}", s.GetSimilar)
	r.Get("/query-suggestions/{query}", s.GetSuggestions)
	r.Get("/health", s.HealthCheck)
	r.Get("/ready", s.Readiness)
	r.Get("/metrics", s.Metrics)
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Semantic Content Search API",
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SearchContent handles POST /search.
func (s *Server) SearchContent(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	searchReq, err := domain.NewSearchRequest(
		req.Query,
		domain.Filters{Category: req.CategoryFilter, Difficulty: req.DifficultyFilter},
		req.MaxResults,
		req.MinSimilarity,
		s.bounds,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), searchReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchToDTO(req.Query, resp))
}

// GetContent handles GET /content/{id}.
func (s *Server) GetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := s.content.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contentToDTO(item))
}

// AddContent handles POST /add-content.
func (s *Server) AddContent(w http.ResponseWriter, r *http.Request) {
	var req AddContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	item, created, err := s.content.Ingest(r.Context(), contentFromAdd(req))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, AddContentResponse{
		Message:   "Content added successfully",
		ContentID: item.ID,
		Created:   created,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStats handles GET /stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.content.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsToDTO(stats))
}

// GetSimilar handles GET /similar/{id}.
func (s *Server) GetSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	maxResults := 5
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "max_results must be a positive integer")
			return
		}
		maxResults = n
	}

	results, err := s.search.FindSimilar(r.Context(), id, maxResults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SimilarContentResponse{
		ContentID:      id,
		SimilarContent: rankedListToDTO(results),
		TotalResults:   len(results),
	})
}

// GetSuggestions handles GET /query-suggestions/{query}.
func (s *Server) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = n
	}

	suggestions, err := s.search.Suggest(r.Context(), query, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusOK, SuggestionsResponse{
		Query:       query,
		Suggestions: suggestions,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    string(report.Status),
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /ready. Ready means the database answers; the
// LLM and embedding providers are allowed to be down.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	if report.Checks["database"] != healthuc.CheckOK {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrRateLimited,
		domain.ErrRetrievalUnavailable,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingUnavailable,
		domain.ErrLLMUnavailable,
		domain.ErrVectorDimMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
