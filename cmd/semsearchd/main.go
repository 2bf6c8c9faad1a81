package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/config"
	"github.com/meridianlab/semsearch/internal/db"
	dbRedis "github.com/meridianlab/semsearch/internal/db/redis"
	"github.com/meridianlab/semsearch/internal/domain"
	logpkg "github.com/meridianlab/semsearch/internal/logger"
	"github.com/meridianlab/semsearch/internal/metrics"
	"github.com/meridianlab/semsearch/internal/ratelimit"
	contentrepo "github.com/meridianlab/semsearch/internal/repository/content"
	"github.com/meridianlab/semsearch/internal/repository/embcache"
	searchrepo "github.com/meridianlab/semsearch/internal/repository/search"
	statsrepo "github.com/meridianlab/semsearch/internal/repository/stats"
	chiTransport "github.com/meridianlab/semsearch/internal/transport/chi"
	llmTransport "github.com/meridianlab/semsearch/internal/transport/llm"
	openaiEmb "github.com/meridianlab/semsearch/internal/transport/openai"
	contentuc "github.com/meridianlab/semsearch/internal/usecase/content"
	"github.com/meridianlab/semsearch/internal/usecase/enhance"
	"github.com/meridianlab/semsearch/internal/usecase/expand"
	healthuc "github.com/meridianlab/semsearch/internal/usecase/health"
	"github.com/meridianlab/semsearch/internal/usecase/retrieve"
	searchuc "github.com/meridianlab/semsearch/internal/usecase/search"
	"github.com/meridianlab/semsearch/internal/version"
)

func main() {
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting semsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterSearchMetrics()

	keys := contentrepo.NewKeys(cfg.Storage.KeyPrefix)

	if err := ensureIndex(ctx, store, cfg, keys); err != nil {
		logger.Fatal("Failed to ensure search index", zap.Error(err))
	}
	logger.Info("Search index ready",
		zap.String("index", keys.IndexName()),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	embedder := buildEmbedder(cfg, store, logger)

	llmClient, err := llmTransport.New(&llmTransport.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	expandCompleter := ratelimit.NewCompleter(
		llmClient.ForPurpose("expansion"), cfg.LLM.RatePerMinute, cfg.LLM.MaxRetries, logger,
	)
	summaryCompleter := ratelimit.NewCompleter(
		llmClient.ForPurpose("summary"), cfg.LLM.RatePerMinute, cfg.LLM.MaxRetries, logger,
	)

	contentRepo := contentrepo.New(store, keys)
	searchRepo := searchrepo.New(store, keys)
	statsRepo := statsrepo.New(store, cfg.Storage.KeyPrefix)

	expandSvc := expand.New(expandCompleter, cfg.Search.MaxQueryVariants, logger)
	retrieveSvc := retrieve.New(
		searchRepo, embedder,
		time.Duration(cfg.Search.BranchTimeoutSec)*time.Second, logger,
	)
	enhanceSvc, err := enhance.New(
		summaryCompleter,
		cfg.Search.SummaryWorkers, cfg.Search.SummaryMinWords, cfg.Search.SummaryMaxWords,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create summary service", zap.Error(err))
	}
	defer enhanceSvc.Release()

	bounds := domain.SearchBounds{
		Default: cfg.Search.DefaultMaxResults,
		Max:     cfg.Search.MaxMaxResults,
	}

	searchSvc := searchuc.New(
		expandSvc, retrieveSvc, contentRepo, enhanceSvc, statsRepo,
		bounds, cfg.Search.MinSimilarity,
		time.Duration(cfg.Search.RequestTimeoutSec)*time.Second,
		logger,
	)
	contentSvc := contentuc.New(contentRepo, embedder, statsRepo, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), llmClient)

	server := chiTransport.NewServer(searchSvc, contentSvc, healthSvc, bounds, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// ensureIndex creates the content FT index if it does not exist yet.
func ensureIndex(ctx context.Context, store db.Store, cfg config.Config, keys contentrepo.Keys) error {
	def := &db.IndexDefinition{
		Name:     keys.IndexName(),
		Prefixes: []string{keys.ContentPrefix()},
		Fields: []db.IndexField{
			{Name: "category", Type: db.IndexFieldTag},
			{Name: "difficulty", Type: db.IndexFieldTag},
			{Name: "seq", Type: db.IndexFieldNumeric},
			{
				Name:              "__vector",
				Alias:             "vector", // FT.SEARCH addresses the field as @vector
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         cfg.Embedding.Dimensions,
				VectorDistance:    db.DistanceCosine,
				VectorM:           cfg.Search.HNSWM,
				VectorEFConstruct: cfg.Search.HNSWEFConstruct,
			},
		},
	}

	err := store.CreateIndex(ctx, def)
	if err != nil && !errors.Is(err, db.ErrIndexExists) {
		return err
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> RateLimited
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.CacheTTLSec > 0 {
		embedder = embcache.New(
			base, store, cfg.Storage.KeyPrefix,
			time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	return ratelimit.NewEmbedder(embedder, cfg.Embedding.RatePerMinute, cfg.Embedding.MaxRetries, logger)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
