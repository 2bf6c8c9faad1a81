package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
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
	openaiEmb "github.com/meridianlab/semsearch/internal/transport/openai"
	contentuc "github.com/meridianlab/semsearch/internal/usecase/content"
)

// contentFile is one entry of the JSON corpus file.
type contentFile struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Difficulty string   `json:"difficulty"`
	ReadTime   int      `json:"read_time"`
	Author     string   `json:"author"`
	CreatedAt  string   `json:"created_at"`
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "semsearch-loader",
		Usage: "Corpus management for the semantic search service",
		Commands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Embed and index content items from a JSON file",
				Action: loadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path to the content JSON file",
						Value:   "data/sample_content.json",
					},
				},
			},
			{
				Name:   "drop-index",
				Usage:  "Drop the content search index (documents stay in place)",
				Action: dropIndexCommand,
			},
			{
				Name:   "stats",
				Usage:  "Print corpus size and per-category counts",
				Action: statsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadCommand(c *cli.Context) error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("read content file: %w", err)
	}
	var entries []contentFile
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse content file: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()

	keys := contentrepo.NewKeys(cfg.Storage.KeyPrefix)
	svc := contentuc.New(contentrepo.New(store, keys), buildEmbedder(cfg, store, logger), nil, logger)

	ctx := c.Context
	created, updated := 0, 0
	for _, e := range entries {
		item := domain.ContentItem{
			ID:         e.ID,
			Title:      e.Title,
			Body:       e.Content,
			Category:   e.Category,
			Tags:       e.Tags,
			Difficulty: e.Difficulty,
			ReadTime:   e.ReadTime,
			Author:     e.Author,
			CreatedAt:  e.CreatedAt,
		}
		_, isNew, err := svc.Ingest(ctx, item)
		if err != nil {
			return fmt.Errorf("ingest %q: %w", e.Title, err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	logger.Info("Corpus loaded",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.String("file", c.String("file")),
	)
	return nil
}

func dropIndexCommand(c *cli.Context) error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	keys := contentrepo.NewKeys(cfg.Storage.KeyPrefix)
	if err := store.DropIndex(c.Context, keys.IndexName()); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	logger.Info("Index dropped", zap.String("index", keys.IndexName()))
	return nil
}

func statsCommand(c *cli.Context) error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	repo := contentrepo.New(store, contentrepo.NewKeys(cfg.Storage.KeyPrefix))
	total, err := repo.Count(c.Context)
	if err != nil {
		return fmt.Errorf("count content: %w", err)
	}
	categories, err := repo.CategoryCounts(c.Context)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}

	fmt.Printf("total: %d\n", total)
	for cat, n := range categories {
		fmt.Printf("  %s: %d\n", cat, n)
	}
	return nil
}

func setup() (config.Config, *zap.Logger, *dbRedis.Store, error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("create store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return config.Config{}, nil, nil, fmt.Errorf("database not ready: %w", err)
	}

	return cfg, logger, store, nil
}

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
