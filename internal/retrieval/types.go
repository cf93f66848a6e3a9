// Package retrieval implements the hybrid retrieval engine: synonym-based
// query expansion, parallel vector and keyword search, composite relevance
// scoring weighted by each document's persisted quality score, metadata
// filtering, and deduplicated ranking.
package retrieval

import (
	"context"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/vector"
)

// DefaultMaxResults is used when a query context does not request a result
// count.
const DefaultMaxResults = 5

// QueryContext carries one retrieval request: the free-text query plus
// optional hard filters. It is immutable for the duration of a call and
// doubles as the cache-key seed.
type QueryContext struct {
	Query         string                  `json:"query"`
	DocumentTypes []legaldoc.DocumentType `json:"document_types,omitempty"`
	Jurisdictions []string                `json:"jurisdictions,omitempty"`
	CaseOutcomes  []string                `json:"case_outcomes,omitempty"`
	DateFrom      *time.Time              `json:"date_from,omitempty"`
	DateTo        *time.Time              `json:"date_to,omitempty"`
	MinQuality    float64                 `json:"min_quality,omitempty"`
	MaxResults    int                     `json:"max_results,omitempty"`
}

// Limit returns the effective result cap, at least 1.
func (q QueryContext) Limit() int {
	if q.MaxResults < 1 {
		return DefaultMaxResults
	}
	return q.MaxResults
}

// Result is one ranked search hit with its score breakdown and denormalised
// document metadata.
type Result struct {
	DocumentID   string                `json:"document_id"`
	Content      string                `json:"content"`
	Title        string                `json:"title"`
	Source       string                `json:"source"`
	Type         legaldoc.DocumentType `json:"type"`
	Jurisdiction string                `json:"jurisdiction"`
	PublishedAt  *time.Time            `json:"published_at,omitempty"`

	Relevance     float64 `json:"relevance"`
	Semantic      float64 `json:"semantic"`
	Keyword       float64 `json:"keyword"`
	MetadataBonus float64 `json:"metadata_bonus"`
	Quality       float64 `json:"quality"`
}

// DocScore is an (id, score) pair produced by the keyword search path.
type DocScore struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// Searcher exposes the engine's cacheable sub-steps. The cache layer
// implements this interface by composition: it delegates to the engine and
// memoises each step under its own namespace and TTL.
type Searcher interface {
	ExpandQuery(ctx context.Context, query string) []string
	SemanticSearch(ctx context.Context, query string, k int) ([]vector.Hit, error)
	KeywordSearch(ctx context.Context, query string, k int) ([]DocScore, error)
}

// DocumentSource is the relational-store surface the engine reads from.
type DocumentSource interface {
	All(ctx context.Context) ([]legaldoc.Document, error)
	ByIDs(ctx context.Context, ids []string) (map[string]legaldoc.Document, error)
	OutcomesByDocument(ctx context.Context, ids []string) (map[string][]string, error)
	Stats(ctx context.Context) (legaldoc.StoreStats, error)
}
