package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/retrieval"
	"github.com/defenda/legal-retrieval/internal/vector"
	"github.com/defenda/legal-retrieval/pkg/config"
)

type countingIndex struct {
	calls int
}

func (f *countingIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]vector.Hit, error) {
	f.calls++
	return []vector.Hit{{DocumentID: "doc-1", Content: "multa de estacionamento artigo 135", Similarity: 0.9}}, nil
}

type staticDocs struct{}

func (staticDocs) All(ctx context.Context) ([]legaldoc.Document, error) {
	return []legaldoc.Document{testDoc()}, nil
}

func (staticDocs) ByIDs(ctx context.Context, ids []string) (map[string]legaldoc.Document, error) {
	return map[string]legaldoc.Document{"doc-1": testDoc()}, nil
}

func (staticDocs) OutcomesByDocument(ctx context.Context, ids []string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (staticDocs) Stats(ctx context.Context) (legaldoc.StoreStats, error) {
	return legaldoc.StoreStats{}, nil
}

func testDoc() legaldoc.Document {
	return legaldoc.Document{
		ID:           "doc-1",
		Title:        "Artigo 135",
		Text:         "multa de estacionamento artigo 135 com coima aplicada pela autoridade",
		Source:       "ANSR",
		Type:         legaldoc.TypeLaw,
		QualityScore: 0.8,
	}
}

type memStore struct {
	data    map[string]string
	failGet bool
	sets    int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.failGet {
		return "", false, errors.New("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = value.(string)
	m.sets++
	return nil
}

func (m *memStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var removed int64
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) Ping(ctx context.Context) error {
	return nil
}

func testCached(t *testing.T) (*Cached, *countingIndex, *memStore) {
	t.Helper()
	index := &countingIndex{}
	engine, err := retrieval.NewEngine(index, staticDocs{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	store := newMemStore()
	cfg := config.RetrievalConfig{
		QueryTTL:     15 * time.Minute,
		ExpansionTTL: 24 * time.Hour,
		SemanticTTL:  time.Hour,
		KeywordTTL:   time.Hour,
	}
	return New(engine, store, cfg, nil), index, store
}

func TestQueryKeyIgnoresFilterOrder(t *testing.T) {
	a := retrieval.QueryContext{
		Query:         "multa estacionamento",
		DocumentTypes: []legaldoc.DocumentType{legaldoc.TypeLaw, legaldoc.TypeRegulation},
		Jurisdictions: []string{"lisboa", "porto"},
	}
	b := retrieval.QueryContext{
		Query:         "multa estacionamento",
		DocumentTypes: []legaldoc.DocumentType{legaldoc.TypeRegulation, legaldoc.TypeLaw},
		Jurisdictions: []string{"Porto", "Lisboa"},
	}
	if queryKey(a) != queryKey(b) {
		t.Error("filter order changed the cache key")
	}
}

func TestQueryKeyNormalisesQueryText(t *testing.T) {
	a := retrieval.QueryContext{Query: "Multa   Estacionamento"}
	b := retrieval.QueryContext{Query: "multa estacionamento"}
	if queryKey(a) != queryKey(b) {
		t.Error("whitespace and casing changed the cache key")
	}
}

func TestQueryKeySensitiveToParameters(t *testing.T) {
	base := retrieval.QueryContext{Query: "multa estacionamento"}

	minQ := base
	minQ.MinQuality = 0.5
	if queryKey(base) == queryKey(minQ) {
		t.Error("min quality change did not change the cache key")
	}

	limited := base
	limited.MaxResults = 20
	if queryKey(base) == queryKey(limited) {
		t.Error("max results change did not change the cache key")
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dated := base
	dated.DateFrom = &from
	if queryKey(base) == queryKey(dated) {
		t.Error("date filter change did not change the cache key")
	}

	other := retrieval.QueryContext{Query: "coima velocidade"}
	if queryKey(base) == queryKey(other) {
		t.Error("different queries share a cache key")
	}
}

func TestQueryVariantsShareInvalidationPrefix(t *testing.T) {
	base := retrieval.QueryContext{Query: "multa estacionamento"}
	filtered := base
	filtered.MinQuality = 0.5

	prefix := strings.TrimSuffix(queryPrefix(base.Query), "*")
	if !strings.HasPrefix(queryKey(base), prefix) || !strings.HasPrefix(queryKey(filtered), prefix) {
		t.Error("parameter variants do not share the query invalidation prefix")
	}
}

func TestRetrieveCachesFullResults(t *testing.T) {
	cached, index, _ := testCached(t)
	ctx := context.Background()
	qc := retrieval.QueryContext{Query: "multa estacionamento"}

	first, err := cached.Retrieve(ctx, qc)
	if err != nil {
		t.Fatalf("first Retrieve: %v", err)
	}
	if index.calls == 0 {
		t.Fatal("first retrieval never reached the vector index")
	}

	index.calls = 0
	second, err := cached.Retrieve(ctx, qc)
	if err != nil {
		t.Fatalf("second Retrieve: %v", err)
	}
	if index.calls != 0 {
		t.Errorf("cached retrieval hit the vector index %d times", index.calls)
	}
	if len(first) != len(second) || first[0].DocumentID != second[0].DocumentID {
		t.Error("cached results differ from computed results")
	}
}

func TestExpandQueryMemoised(t *testing.T) {
	cached, _, store := testCached(t)
	ctx := context.Background()

	first := cached.ExpandQuery(ctx, "multa de estacionamento")
	if len(first) == 0 {
		t.Fatal("no variants produced")
	}
	if _, ok := store.data[expansionKey("multa de estacionamento")]; !ok {
		t.Fatal("expansion not written to cache")
	}

	second := cached.ExpandQuery(ctx, "multa de estacionamento")
	if len(second) != len(first) {
		t.Errorf("memoised expansion %v differs from %v", second, first)
	}
}

func TestInvalidateQueryScopedToOneQuery(t *testing.T) {
	cached, _, store := testCached(t)
	ctx := context.Background()

	if _, err := cached.Retrieve(ctx, retrieval.QueryContext{Query: "multa estacionamento"}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := cached.Retrieve(ctx, retrieval.QueryContext{Query: "multa estacionamento", MinQuality: 0.5}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := cached.Retrieve(ctx, retrieval.QueryContext{Query: "coima velocidade"}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	removed := cached.InvalidateQuery(ctx, "multa estacionamento")
	if removed != 2 {
		t.Errorf("removed %d keys, want 2", removed)
	}
	if _, ok := store.data[queryKey(retrieval.QueryContext{Query: "coima velocidade"})]; !ok {
		t.Error("unrelated query entry was evicted")
	}
}

func TestInvalidateQueryAllWhenEmpty(t *testing.T) {
	cached, _, store := testCached(t)
	ctx := context.Background()

	if _, err := cached.Retrieve(ctx, retrieval.QueryContext{Query: "multa estacionamento"}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := cached.Retrieve(ctx, retrieval.QueryContext{Query: "coima velocidade"}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if removed := cached.InvalidateQuery(ctx, ""); removed != 2 {
		t.Errorf("removed %d keys, want 2", removed)
	}
	for key := range store.data {
		if strings.HasPrefix(key, nsQuery+":") {
			t.Errorf("query entry %s survived a full invalidation", key)
		}
	}
}

func TestInvalidateSearchCacheLeavesQueryResults(t *testing.T) {
	cached, _, store := testCached(t)
	ctx := context.Background()

	if _, err := cached.Retrieve(ctx, retrieval.QueryContext{Query: "multa estacionamento"}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	before := len(store.data)
	if before < 2 {
		t.Fatalf("expected sub-step entries alongside the query entry, got %d keys", before)
	}

	cached.InvalidateSearchCache(ctx)
	for key := range store.data {
		if !strings.HasPrefix(key, nsQuery+":") {
			t.Errorf("sub-step entry %s survived invalidation", key)
		}
	}
	if _, ok := store.data[queryKey(retrieval.QueryContext{Query: "multa estacionamento"})]; !ok {
		t.Error("full query result was evicted by sub-step invalidation")
	}
}

func TestRetrieveDegradesWhenStoreFails(t *testing.T) {
	cached, index, store := testCached(t)
	store.failGet = true

	results, err := cached.Retrieve(context.Background(), retrieval.QueryContext{Query: "multa estacionamento"})
	if err != nil {
		t.Fatalf("Retrieve with failing store: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results despite working engine")
	}
	if index.calls == 0 {
		t.Fatal("engine was not consulted while the store failed")
	}
}

func TestCacheStats(t *testing.T) {
	cached, _, _ := testCached(t)
	ctx := context.Background()
	qc := retrieval.QueryContext{Query: "multa estacionamento"}

	if _, err := cached.Retrieve(ctx, qc); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := cached.Retrieve(ctx, qc); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	stats := cached.CacheStats(ctx)
	if stats.Hits == 0 {
		t.Error("no hits recorded after repeated retrieval")
	}
	if stats.Misses == 0 {
		t.Error("no misses recorded for cold cache")
	}
	if !stats.Connected {
		t.Error("store reported disconnected")
	}
	if stats.HitRate <= 0 || stats.HitRate >= 100 {
		t.Errorf("hit rate = %v, want strictly between 0 and 100", stats.HitRate)
	}
}
