package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/vector"
	"github.com/defenda/legal-retrieval/pkg/errors"
	"github.com/defenda/legal-retrieval/pkg/metrics"
)

// Per-variant fetch multipliers: the vector path requests 3x the result cap,
// the keyword path 2x, so filtering and deduplication still leave enough
// candidates.
const (
	semanticKFactor = 3
	keywordKFactor  = 2
)

// snippetLength bounds the content excerpt for keyword-only candidates.
const snippetLength = 300

// Engine is the hybrid retrieval engine. It is safe for concurrent use: a
// call touches no shared mutable state.
type Engine struct {
	index   vector.Index
	docs    DocumentSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine constructs an Engine. A missing vector index or document source
// is a configuration failure: the engine refuses to exist rather than serve
// broken rankings.
func NewEngine(index vector.Index, docs DocumentSource, m *metrics.Metrics) (*Engine, error) {
	if index == nil {
		return nil, errors.New(errors.ErrVectorIndex, 503, "retrieval engine requires a vector index")
	}
	if docs == nil {
		return nil, errors.New(errors.ErrStoreUnavailable, 503, "retrieval engine requires a document source")
	}
	return &Engine{
		index:   index,
		docs:    docs,
		metrics: m,
		logger:  slog.Default().With("component", "retrieval-engine"),
	}, nil
}

// SemanticSearch queries the vector index, clamping similarities into [0,1].
func (e *Engine) SemanticSearch(ctx context.Context, query string, k int) ([]vector.Hit, error) {
	start := time.Now()
	hits, err := e.index.SimilaritySearch(ctx, query, k)
	if e.metrics != nil {
		e.metrics.VectorSearchLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Similarity = clamp01(hits[i].Similarity)
	}
	return hits, nil
}

// Retrieve runs the full pipeline with the engine's own (uncached)
// sub-steps.
func (e *Engine) Retrieve(ctx context.Context, qc QueryContext) ([]Result, error) {
	return e.RetrieveUsing(ctx, qc, e)
}

// candidate pairs a scored result with its surfacing path, for the
// deduplication tie-break.
type candidate struct {
	result   Result
	semantic bool
}

// RetrieveUsing runs the pipeline with pluggable sub-steps, so the cache
// layer can interpose per-step memoisation without the engine knowing about
// caching. Per-variant searches run concurrently; they are read-only and
// independent.
func (e *Engine) RetrieveUsing(ctx context.Context, qc QueryContext, steps Searcher) ([]Result, error) {
	if strings.TrimSpace(qc.Query) == "" {
		return []Result{}, nil
	}
	limit := qc.Limit()
	variants := steps.ExpandQuery(ctx, qc.Query)
	if len(variants) == 0 {
		variants = []string{qc.Query}
	}

	now := time.Now()
	merged := make(map[string]candidate)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, variant := range variants {
		g.Go(func() error {
			found, err := e.searchVariant(gctx, qc, variant, limit, now, steps)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for id, cand := range found {
				existing, ok := merged[id]
				if !ok || better(cand, existing) {
					merged[id] = cand
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if e.metrics != nil {
			e.metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	results, err := e.applyFilters(ctx, qc, merged)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if e.metrics != nil {
		outcome := "ok"
		if len(results) == 0 {
			outcome = "zero_result"
		}
		e.metrics.RetrievalsTotal.WithLabelValues(outcome).Inc()
		e.metrics.RetrievalResults.Observe(float64(len(results)))
	}
	e.logger.Info("retrieval complete",
		"query", qc.Query,
		"variants", len(variants),
		"candidates", len(merged),
		"returned", len(results),
	)
	return results, nil
}

// better decides whether a new occurrence of a document replaces the one
// already merged. Higher relevance wins; on an exact tie the semantic-path
// snippet is preferred over the keyword-path one.
func better(next, current candidate) bool {
	if next.result.Relevance != current.result.Relevance {
		return next.result.Relevance > current.result.Relevance
	}
	return next.semantic && !current.semantic
}

// searchVariant runs both search paths for one expansion variant and scores
// every surfaced candidate.
func (e *Engine) searchVariant(ctx context.Context, qc QueryContext, variant string, limit int, now time.Time, steps Searcher) (map[string]candidate, error) {
	hits, err := steps.SemanticSearch(ctx, variant, semanticKFactor*limit)
	if err != nil {
		return nil, err
	}
	keywordHits, err := steps.KeywordSearch(ctx, variant, keywordKFactor*limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hits)+len(keywordHits))
	seen := make(map[string]struct{})
	for _, h := range hits {
		if _, dup := seen[h.DocumentID]; !dup {
			seen[h.DocumentID] = struct{}{}
			ids = append(ids, h.DocumentID)
		}
	}
	for _, kh := range keywordHits {
		if _, dup := seen[kh.DocumentID]; !dup {
			seen[kh.DocumentID] = struct{}{}
			ids = append(ids, kh.DocumentID)
		}
	}
	if len(ids) == 0 {
		return map[string]candidate{}, nil
	}

	docs, err := e.docs.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make(map[string]candidate, len(ids))
	for _, h := range hits {
		doc, ok := docs[h.DocumentID]
		if !ok {
			continue
		}
		found[h.DocumentID] = candidate{
			result:   e.scoreCandidate(qc, variant, doc, h.Content, h.Similarity, now),
			semantic: true,
		}
	}
	for _, kh := range keywordHits {
		if _, already := found[kh.DocumentID]; already {
			continue
		}
		doc, ok := docs[kh.DocumentID]
		if !ok {
			continue
		}
		found[kh.DocumentID] = candidate{
			result: e.scoreCandidate(qc, variant, doc, snippet(doc.Text), 0, now),
		}
	}
	return found, nil
}

// scoreCandidate computes the composite relevance for one candidate. The
// keyword score is recomputed against the specific content being returned,
// not the whole document.
func (e *Engine) scoreCandidate(qc QueryContext, variant string, doc legaldoc.Document, content string, similarity float64, now time.Time) Result {
	keyword := keywordRelevance(variant, content)
	metadata := metadataBonus(doc, qc, now)
	contextRel := contextRelevance(content, qc)

	return Result{
		DocumentID:    doc.ID,
		Content:       content,
		Title:         doc.Title,
		Source:        doc.Source,
		Type:          doc.Type,
		Jurisdiction:  doc.Jurisdiction,
		PublishedAt:   doc.PublishedAt,
		Relevance:     composite(similarity, keyword, doc.QualityScore, metadata, contextRel),
		Semantic:      similarity,
		Keyword:       keyword,
		MetadataBonus: metadata,
		Quality:       doc.QualityScore,
	}
}

// applyFilters drops candidates failing any active hard filter. These are
// exclusionary, unlike the soft metadata bonus folded into the relevance
// score.
func (e *Engine) applyFilters(ctx context.Context, qc QueryContext, merged map[string]candidate) ([]Result, error) {
	var outcomes map[string][]string
	if len(qc.CaseOutcomes) > 0 {
		ids := make([]string, 0, len(merged))
		for id := range merged {
			ids = append(ids, id)
		}
		var err error
		outcomes, err = e.docs.OutcomesByDocument(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(merged))
	for id, cand := range merged {
		r := cand.result
		if len(qc.DocumentTypes) > 0 && !containsType(qc.DocumentTypes, r.Type) {
			continue
		}
		if len(qc.Jurisdictions) > 0 && !containsFolded(qc.Jurisdictions, r.Jurisdiction) {
			continue
		}
		if r.Quality < qc.MinQuality {
			continue
		}
		if qc.DateFrom != nil && (r.PublishedAt == nil || r.PublishedAt.Before(*qc.DateFrom)) {
			continue
		}
		if qc.DateTo != nil && (r.PublishedAt == nil || r.PublishedAt.After(*qc.DateTo)) {
			continue
		}
		if len(qc.CaseOutcomes) > 0 && !outcomeMatch(outcomes[id], qc.CaseOutcomes) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func containsType(types []legaldoc.DocumentType, t legaldoc.DocumentType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsFolded(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

func outcomeMatch(linked, wanted []string) bool {
	for _, l := range linked {
		for _, w := range wanted {
			if strings.EqualFold(l, w) {
				return true
			}
		}
	}
	return false
}

func snippet(docText string) string {
	trimmed := strings.TrimSpace(docText)
	if len(trimmed) <= snippetLength {
		return trimmed
	}
	return trimmed[:snippetLength]
}
