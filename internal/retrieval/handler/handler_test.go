package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/quality"
	"github.com/defenda/legal-retrieval/internal/retrieval"
	"github.com/defenda/legal-retrieval/internal/vector"
)

type fakeIndex struct{}

func (fakeIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]vector.Hit, error) {
	return []vector.Hit{{DocumentID: "doc-1", Content: "multa de estacionamento artigo 135", Similarity: 0.9}}, nil
}

type fakeDocs struct{}

func storedDoc() legaldoc.Document {
	published := time.Now().AddDate(0, -1, 0)
	return legaldoc.Document{
		ID:           "doc-1",
		Title:        "Código da Estrada - Artigo 135",
		Text:         "multa de estacionamento artigo 135 com coima aplicada pela ANSR",
		Source:       "ANSR",
		Type:         legaldoc.TypeLaw,
		Jurisdiction: "nacional",
		PublishedAt:  &published,
		QualityScore: 0.85,
	}
}

func (fakeDocs) All(ctx context.Context) ([]legaldoc.Document, error) {
	return []legaldoc.Document{storedDoc()}, nil
}

func (fakeDocs) ByIDs(ctx context.Context, ids []string) (map[string]legaldoc.Document, error) {
	return map[string]legaldoc.Document{"doc-1": storedDoc()}, nil
}

func (fakeDocs) OutcomesByDocument(ctx context.Context, ids []string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (fakeDocs) Stats(ctx context.Context) (legaldoc.StoreStats, error) {
	return legaldoc.StoreStats{TotalDocuments: 1, AvgQuality: 0.85, RecentCount: 1}, nil
}

func (fakeDocs) UpdateScores(ctx context.Context, id string, scores legaldoc.Scores) error {
	return nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine, err := retrieval.NewEngine(fakeIndex{}, fakeDocs{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	qe := quality.NewEngine(fakeDocs{}, nil, nil)
	h := New(engine, nil, qe, 50, quality.DefaultThresholds())

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func postJSON(t *testing.T, url, body string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := testServer(t)

	var body struct {
		Query   string             `json:"query"`
		Count   int                `json:"count"`
		Results []retrieval.Result `json:"results"`
	}
	getJSON(t, srv.URL+"/api/v1/search?q=multa+estacionamento", http.StatusOK, &body)
	if body.Count != 1 || len(body.Results) != 1 {
		t.Fatalf("count = %d, results = %d, want 1", body.Count, len(body.Results))
	}
	if body.Results[0].DocumentID != "doc-1" {
		t.Errorf("top result = %s", body.Results[0].DocumentID)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := testServer(t)
	getJSON(t, srv.URL+"/api/v1/search", http.StatusBadRequest, nil)
}

func TestSearchRejectsBadParameters(t *testing.T) {
	srv := testServer(t)
	getJSON(t, srv.URL+"/api/v1/search?q=multa&min_quality=2", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/search?q=multa&limit=zero", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/search?q=multa&from=not-a-date", http.StatusBadRequest, nil)
}

func TestStatsEndpoint(t *testing.T) {
	srv := testServer(t)
	var stats retrieval.KnowledgeBaseStats
	getJSON(t, srv.URL+"/api/v1/stats", http.StatusOK, &stats)
	if stats.TotalDocuments != 1 {
		t.Errorf("total = %d, want 1", stats.TotalDocuments)
	}
}

func TestFilterEndpoint(t *testing.T) {
	srv := testServer(t)

	doc, _ := json.Marshal(storedDoc())
	var result quality.FilterResult
	postJSON(t, srv.URL+"/api/v1/quality/filter",
		`{"documents":[`+string(doc)+`],"threshold":0.1}`, http.StatusOK, &result)
	kept := len(result.High.Documents) + len(result.Medium.Documents) + len(result.Low.Documents)
	if kept+len(result.FilteredOut) != 1 {
		t.Fatalf("partition lost documents: %+v", result)
	}
}

func TestFilterValidation(t *testing.T) {
	srv := testServer(t)
	postJSON(t, srv.URL+"/api/v1/quality/filter", `{"documents":[],"threshold":0.5}`, http.StatusBadRequest, nil)
	postJSON(t, srv.URL+"/api/v1/quality/filter", `{"documents":[{"id":"x","text":"y"}],"threshold":1.5}`, http.StatusBadRequest, nil)
	postJSON(t, srv.URL+"/api/v1/quality/filter", `not json`, http.StatusBadRequest, nil)
}

func TestFeedbackEndpoint(t *testing.T) {
	srv := testServer(t)

	var updated quality.Thresholds
	postJSON(t, srv.URL+"/api/v1/quality/feedback",
		`{"feedback":[{"document_id":"doc-1","rating":5}]}`, http.StatusOK, &updated)
	// posMean 0.85 from the stored quality score.
	if updated.High < 0.7 || updated.High > 0.9 {
		t.Errorf("high threshold = %v outside [0.7,0.9]", updated.High)
	}
	if updated.Low >= updated.Medium || updated.Medium > updated.High {
		t.Errorf("thresholds not ordered: %+v", updated)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	srv := testServer(t)
	getJSON(t, srv.URL+"/api/v1/cache/stats", http.StatusServiceUnavailable, nil)
	postJSON(t, srv.URL+"/api/v1/cache/invalidate", `{}`, http.StatusServiceUnavailable, nil)
}
