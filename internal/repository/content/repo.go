package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianlab/semsearch/internal/domain"
)

// Keys derives every Redis key and index name owned by content storage
// from the configured storage prefix.
type Keys struct {
	prefix string
}

// NewKeys builds the key set for a storage prefix (e.g. "semsearch:").
func NewKeys(prefix string) Keys {
	return Keys{prefix: prefix}
}

// Content returns the hash key for a content item.
func (k Keys) Content(id string) string { return k.ContentPrefix() + id }

// ContentPrefix returns the hash key prefix shared by all content items.
func (k Keys) ContentPrefix() string { return k.prefix + "content:" }

// IndexName returns the FT index backing content search.
func (k Keys) IndexName() string { return k.prefix + "content:idx" }

// Seq returns the key of the ingest sequence counter.
func (k Keys) Seq() string { return k.prefix + "content_seq" }

// Categories returns the key of the per-category counter hash.
func (k Keys) Categories() string { return k.prefix + "categories" }

// IDFromKey strips the storage prefix from a hash key.
func (k Keys) IDFromKey(key string) string {
	return strings.TrimPrefix(key, k.ContentPrefix())
}

// store is the consumer interface for content persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements usecase/content.Repository.
type Repo struct {
	store store
	keys  Keys
}

// New creates a content repository.
func New(s store, keys Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Upsert creates or updates a content item together with its embedding.
// On create it assigns a monotonic ingest sequence number to the item
// and bumps the per-category counter. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, item *domain.ContentItem, vector []float32) (bool, error) {
	key := r.keys.Content(item.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if !exists {
		seq, err := r.store.Incr(ctx, r.keys.Seq())
		if err != nil {
			return false, fmt.Errorf("next seq: %w", err)
		}
		item.Seq = seq
	}

	if err := r.store.HSet(ctx, key, buildHashFields(item, vector)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}

	if !exists && item.Category != "" {
		if _, err := r.store.HIncrBy(ctx, r.keys.Categories(), item.Category, 1); err != nil {
			return false, fmt.Errorf("bump category %q: %w", item.Category, err)
		}
	}

	return !exists, nil
}

// Get returns a content item by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.ContentItem, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Content(id))
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("hgetall %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.ContentItem{}, domain.ErrNotFound
	}
	return parseHashFields(id, m), nil
}

// GetMulti returns content items for the given IDs, skipping missing ones.
func (r *Repo) GetMulti(ctx context.Context, ids []string) ([]domain.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.Content(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		items = append(items, parseHashFields(ids[i], m))
	}
	return items, nil
}

// Vector returns the stored embedding for a content item.
func (r *Repo) Vector(ctx context.Context, id string) ([]float32, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Content(id))
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrNotFound
	}

	vec := bytesToVector(m[vectorField])
	if vec == nil {
		return nil, fmt.Errorf("content %s has no stored vector", id)
	}
	return vec, nil
}

// Count returns the number of indexed content items.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.keys.IndexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("search count: %w", err)
	}
	return n, nil
}

// CategoryCounts returns the number of items per category.
func (r *Repo) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Categories())
	if err != nil {
		return nil, fmt.Errorf("hgetall categories: %w", err)
	}

	counts := make(map[string]int64, len(m))
	for category, raw := range m {
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err == nil {
			counts[category] = n
		}
	}
	return counts, nil
}

