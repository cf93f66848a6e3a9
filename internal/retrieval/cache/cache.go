// Package cache layers Redis-backed memoisation over the retrieval engine.
// It caches the full retrieval result plus each expensive sub-step (query
// expansion, vector search, keyword search) under separate namespaces with
// separate TTLs, and collapses concurrent identical lookups through
// singleflight. Cache failures never fail a retrieval: every error path
// degrades to computing uncached.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/defenda/legal-retrieval/internal/retrieval"
	"github.com/defenda/legal-retrieval/internal/vector"
	"github.com/defenda/legal-retrieval/pkg/config"
	"github.com/defenda/legal-retrieval/pkg/metrics"
)

// Store is the key-value surface the cache needs from Redis.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Ping(ctx context.Context) error
}

// Cached wraps a retrieval engine with per-step memoisation. It implements
// retrieval.Searcher so the engine's pipeline transparently reads through
// the cache for each sub-step.
type Cached struct {
	engine  *retrieval.Engine
	store   Store
	cfg     config.RetrievalConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	sf      singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps the engine with the given cache store.
func New(engine *retrieval.Engine, store Store, cfg config.RetrievalConfig, m *metrics.Metrics) *Cached {
	return &Cached{
		engine:  engine,
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "retrieval-cache"),
	}
}

// Retrieve serves the full result set from cache when possible, otherwise
// runs the engine pipeline with cached sub-steps and stores the outcome.
func (c *Cached) Retrieve(ctx context.Context, qc retrieval.QueryContext) ([]retrieval.Result, error) {
	start := time.Now()
	key := queryKey(qc)

	if results, ok := lookup[[]retrieval.Result](ctx, c, nsQuery, key); ok {
		c.observeLatency("hit", start)
		return results, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.engine.RetrieveUsing(ctx, qc, c)
	})
	if err != nil {
		return nil, err
	}
	results := v.([]retrieval.Result)
	c.save(ctx, key, results, c.cfg.QueryTTL)
	c.observeLatency("miss", start)
	return results, nil
}

// ExpandQuery memoises synonym expansion. Expansions depend only on the
// static synonym table, so they get the longest TTL.
func (c *Cached) ExpandQuery(ctx context.Context, query string) []string {
	key := expansionKey(query)
	if variants, ok := lookup[[]string](ctx, c, nsExpansion, key); ok {
		return variants
	}
	variants := c.engine.ExpandQuery(ctx, query)
	c.save(ctx, key, variants, c.cfg.ExpansionTTL)
	return variants
}

// SemanticSearch memoises vector index lookups per (query, k).
func (c *Cached) SemanticSearch(ctx context.Context, query string, k int) ([]vector.Hit, error) {
	key := semanticKey(query, k)
	if hits, ok := lookup[[]vector.Hit](ctx, c, nsSemantic, key); ok {
		return hits, nil
	}
	hits, err := c.engine.SemanticSearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, hits, c.cfg.SemanticTTL)
	return hits, nil
}

// KeywordSearch memoises keyword scoring per (query, k).
func (c *Cached) KeywordSearch(ctx context.Context, query string, k int) ([]retrieval.DocScore, error) {
	key := keywordKey(query, k)
	if scored, ok := lookup[[]retrieval.DocScore](ctx, c, nsKeyword, key); ok {
		return scored, nil
	}
	scored, err := c.engine.KeywordSearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, scored, c.cfg.KeywordTTL)
	return scored, nil
}

// InvalidateQuery removes cached full results for one query text, or the
// entire query namespace when the text is empty. It returns the number of
// keys removed; store failures log and report what was removed so far.
func (c *Cached) InvalidateQuery(ctx context.Context, query string) int64 {
	pattern := nsQuery + ":*"
	if query != "" {
		pattern = queryPrefix(query)
	}
	return c.deletePattern(ctx, pattern)
}

// InvalidateSearchCache flushes the memoised sub-steps. Full query results
// are left alone; callers wanting a total flush combine this with
// InvalidateQuery.
func (c *Cached) InvalidateSearchCache(ctx context.Context) int64 {
	var removed int64
	for _, ns := range []string{nsExpansion, nsSemantic, nsKeyword} {
		removed += c.deletePattern(ctx, ns+":*")
	}
	return removed
}

// Stats reports cache effectiveness since process start.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate_percent"`
	Connected bool    `json:"connected"`
}

// CacheStats returns hit/miss counters and live connectivity.
func (c *Cached) CacheStats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{
		Hits:      hits,
		Misses:    misses,
		Connected: c.store.Ping(ctx) == nil,
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total) * 100
	}
	return s
}

// lookup fetches and decodes a cached value, accounting the hit or miss.
// Any store or decode failure counts as a miss.
func lookup[T any](ctx context.Context, c *Cached, ns, key string) (T, bool) {
	var zero T
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		c.miss(ns)
		return zero, false
	}
	if !found {
		c.miss(ns)
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		c.miss(ns)
		return zero, false
	}
	c.hit(ns)
	return value, true
}

func (c *Cached) save(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, string(data), ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *Cached) deletePattern(ctx context.Context, pattern string) int64 {
	removed, err := c.store.DeletePattern(ctx, pattern)
	if err != nil {
		c.logger.Warn("cache invalidation incomplete", "pattern", pattern, "error", err)
	}
	return removed
}

func (c *Cached) hit(ns string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(ns).Inc()
	}
}

func (c *Cached) miss(ns string) {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(ns).Inc()
	}
}

func (c *Cached) observeLatency(status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RetrievalLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
