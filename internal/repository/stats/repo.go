package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meridianlab/semsearch/internal/db"
	"github.com/meridianlab/semsearch/internal/domain"
)

// queriesTTL bounds the popular-queries hash so it does not grow forever.
const queriesTTL = 7 * 24 * time.Hour

// store is the consumer interface for search statistics (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, incr int64) error
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo records and reads aggregate search statistics.
type Repo struct {
	store store

	searchTotalKey string
	latencyKey     string
	queriesKey     string
}

// New creates a stats repository under the given storage prefix.
func New(s store, prefix string) *Repo {
	return &Repo{
		store:          s,
		searchTotalKey: prefix + "stats:search_total",
		latencyKey:     prefix + "stats:latency_ms_total",
		queriesKey:     prefix + "stats:queries",
	}
}

// Record registers one completed search with its end-to-end latency.
func (r *Repo) Record(ctx context.Context, query string, latency time.Duration) error {
	if _, err := r.store.Incr(ctx, r.searchTotalKey); err != nil {
		return fmt.Errorf("incr search total: %w", err)
	}
	if err := r.store.IncrBy(ctx, r.latencyKey, latency.Milliseconds()); err != nil {
		return fmt.Errorf("incr latency total: %w", err)
	}

	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return nil
	}
	if _, err := r.store.HIncrBy(ctx, r.queriesKey, normalized, 1); err != nil {
		return fmt.Errorf("bump query count: %w", err)
	}
	// NX: the hash expires relative to its first write, so counts reset weekly.
	if err := r.store.Expire(ctx, r.queriesKey, queriesTTL, true); err != nil {
		return fmt.Errorf("set queries ttl: %w", err)
	}
	return nil
}

// Totals returns the total number of searches and their average latency.
func (r *Repo) Totals(ctx context.Context) (int64, float64, error) {
	total, err := r.getInt(ctx, r.searchTotalKey)
	if err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}

	latencySum, err := r.getInt(ctx, r.latencyKey)
	if err != nil {
		return 0, 0, err
	}
	return total, float64(latencySum) / float64(total), nil
}

// TopQueries returns the n most frequent search queries, most frequent first.
// Ties are broken alphabetically so the order is stable.
func (r *Repo) TopQueries(ctx context.Context, n int) ([]domain.QueryCount, error) {
	m, err := r.store.HGetAll(ctx, r.queriesKey)
	if err != nil {
		return nil, fmt.Errorf("hgetall queries: %w", err)
	}

	counts := make([]domain.QueryCount, 0, len(m))
	for q, raw := range m {
		c, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		counts = append(counts, domain.QueryCount{Query: q, Count: c})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Query < counts[j].Query
	})

	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts, nil
}

func (r *Repo) getInt(ctx context.Context, key string) (int64, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
