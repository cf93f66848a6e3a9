package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/vector"
)

const articleText = `Artigo 135.º Paragem e estacionamento. O estacionamento em local proibido
constitui contraordenação punível com coima de 30 a 150 euros. A multa por
estacionamento indevido é processada pela ANSR nos termos do código da estrada.`

const blogText = `As dez melhores receitas de bacalhau para o jantar de domingo com a
família, incluindo sugestões de vinho e sobremesa para todos os gostos.`

func testDocuments() []legaldoc.Document {
	published := time.Now().AddDate(0, -2, 0)
	old := time.Now().AddDate(-6, 0, 0)
	return []legaldoc.Document{
		{
			ID:           "ansr-135",
			Title:        "Código da Estrada - Artigo 135",
			Text:         articleText,
			Source:       "ANSR",
			Type:         legaldoc.TypeLaw,
			Jurisdiction: "nacional",
			PublishedAt:  &published,
			QualityScore: 0.9,
		},
		{
			ID:           "blog-1",
			Title:        "Receitas de bacalhau",
			Text:         blogText,
			Source:       "Random Website",
			Type:         legaldoc.TypeOther,
			Jurisdiction: "",
			PublishedAt:  &old,
			QualityScore: 0.2,
		},
	}
}

type fakeIndex struct {
	hits []vector.Hit
	err  error
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]vector.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeDocs struct {
	docs     []legaldoc.Document
	outcomes map[string][]string
}

func (f *fakeDocs) All(ctx context.Context) ([]legaldoc.Document, error) {
	return f.docs, nil
}

func (f *fakeDocs) ByIDs(ctx context.Context, ids []string) (map[string]legaldoc.Document, error) {
	out := make(map[string]legaldoc.Document)
	for _, id := range ids {
		for _, doc := range f.docs {
			if doc.ID == id {
				out[id] = doc
			}
		}
	}
	return out, nil
}

func (f *fakeDocs) OutcomesByDocument(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, id := range ids {
		if linked, ok := f.outcomes[id]; ok {
			out[id] = linked
		}
	}
	return out, nil
}

func (f *fakeDocs) Stats(ctx context.Context) (legaldoc.StoreStats, error) {
	return legaldoc.StoreStats{
		TotalDocuments: len(f.docs),
		ByType:         map[string]int{"law": 1, "other": 1},
		ByJurisdiction: map[string]int{"nacional": 1},
		AvgQuality:     0.55,
		RecentCount:    1,
	}, nil
}

func testEngine(t *testing.T, index vector.Index, docs DocumentSource) *Engine {
	t.Helper()
	e, err := NewEngine(index, docs, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func defaultFakes() (*fakeIndex, *fakeDocs) {
	index := &fakeIndex{hits: []vector.Hit{
		{DocumentID: "ansr-135", Content: articleText, Similarity: 0.92},
		{DocumentID: "blog-1", Content: blogText, Similarity: 0.35},
	}}
	return index, &fakeDocs{docs: testDocuments()}
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	if _, err := NewEngine(nil, &fakeDocs{}, nil); err == nil {
		t.Error("expected error for nil index")
	}
	if _, err := NewEngine(&fakeIndex{}, nil, nil); err == nil {
		t.Error("expected error for nil document source")
	}
}

func TestRetrieveRanksAuthoritativeSourceFirst(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	results, err := e.Retrieve(context.Background(), QueryContext{Query: "multa estacionamento artigo 135"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].DocumentID != "ansr-135" {
		t.Fatalf("top result = %s, want ansr-135", results[0].DocumentID)
	}
	if margin := results[0].Relevance - results[1].Relevance; margin < 0.3 {
		t.Errorf("relevance margin = %v, want >= 0.3", margin)
	}
}

func TestRetrieveRankingInvariants(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	qc := QueryContext{Query: "coima velocidade", MaxResults: 10}
	results, err := e.Retrieve(context.Background(), qc)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) > qc.Limit() {
		t.Fatalf("got %d results over limit %d", len(results), qc.Limit())
	}
	seen := make(map[string]struct{})
	for i, r := range results {
		if _, dup := seen[r.DocumentID]; dup {
			t.Fatalf("duplicate document %s in results", r.DocumentID)
		}
		seen[r.DocumentID] = struct{}{}
		if r.Relevance < 0 || r.Relevance > 1 {
			t.Errorf("result %d relevance %v out of [0,1]", i, r.Relevance)
		}
		if i > 0 && results[i-1].Relevance < r.Relevance {
			t.Errorf("results not sorted at position %d", i)
		}
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	results, err := e.Retrieve(context.Background(), QueryContext{Query: "   "})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("blank query returned %d results", len(results))
	}
}

func TestRetrieveKeywordOnlyFallback(t *testing.T) {
	_, docs := defaultFakes()
	e := testEngine(t, &fakeIndex{}, docs)

	results, err := e.Retrieve(context.Background(), QueryContext{Query: "multa estacionamento"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("keyword path returned no results with an empty vector index")
	}
	if results[0].DocumentID != "ansr-135" {
		t.Errorf("top result = %s, want ansr-135", results[0].DocumentID)
	}
	if results[0].Semantic != 0 {
		t.Errorf("keyword-only result carries semantic score %v", results[0].Semantic)
	}
}

func TestRetrieveTypeFilterIsExclusive(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	results, err := e.Retrieve(context.Background(), QueryContext{
		Query:         "multa estacionamento",
		DocumentTypes: []legaldoc.DocumentType{legaldoc.TypeLaw},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, r := range results {
		if r.Type != legaldoc.TypeLaw {
			t.Errorf("result %s has type %s despite law filter", r.DocumentID, r.Type)
		}
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestRetrieveMinQualityFilter(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	results, err := e.Retrieve(context.Background(), QueryContext{
		Query:      "multa estacionamento",
		MinQuality: 0.5,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, r := range results {
		if r.Quality < 0.5 {
			t.Errorf("result %s quality %v below floor", r.DocumentID, r.Quality)
		}
	}
}

func TestRetrieveDateFilter(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	from := time.Now().AddDate(-1, 0, 0)
	results, err := e.Retrieve(context.Background(), QueryContext{
		Query:    "multa estacionamento",
		DateFrom: &from,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "ansr-135" {
		t.Fatalf("date filter kept %v, want only ansr-135", resultIDs(results))
	}
}

func TestRetrieveOutcomeFilter(t *testing.T) {
	index, docs := defaultFakes()
	docs.outcomes = map[string][]string{"ansr-135": {"recurso_provido"}}
	e := testEngine(t, index, docs)

	results, err := e.Retrieve(context.Background(), QueryContext{
		Query:        "multa estacionamento",
		CaseOutcomes: []string{"recurso_provido"},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "ansr-135" {
		t.Fatalf("outcome filter kept %v, want only ansr-135", resultIDs(results))
	}
}

func TestRetrievePropagatesIndexError(t *testing.T) {
	_, docs := defaultFakes()
	e := testEngine(t, &fakeIndex{err: context.DeadlineExceeded}, docs)

	if _, err := e.Retrieve(context.Background(), QueryContext{Query: "multa"}); err == nil {
		t.Fatal("expected index error to propagate")
	}
}

func TestExpandQueryVariants(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	variants := e.ExpandQuery(context.Background(), "multa de estacionamento")
	if len(variants) == 0 || variants[0] != "multa de estacionamento" {
		t.Fatalf("variants = %v, want original first", variants)
	}
	if len(variants) > maxVariants {
		t.Fatalf("got %d variants over cap %d", len(variants), maxVariants)
	}
	found := false
	for _, v := range variants[1:] {
		if v == "coima de estacionamento" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected coima variant in %v", variants)
	}
}

func TestStatsRecentRatio(t *testing.T) {
	index, docs := defaultFakes()
	e := testEngine(t, index, docs)

	stats, err := e.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("total = %d, want 2", stats.TotalDocuments)
	}
	if stats.RecentRatio != 0.5 {
		t.Errorf("recent ratio = %v, want 0.5", stats.RecentRatio)
	}
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocumentID
	}
	return ids
}
