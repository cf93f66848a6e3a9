// Package legaldoc defines the document model shared by the retrieval core
// and its Postgres-backed store. Documents are created by the ingestion
// pipeline; the retrieval core reads them and writes back only the four
// quality-related scores.
package legaldoc

import "time"

// DocumentType enumerates the recognised kinds of legal text.
type DocumentType string

const (
	TypeLaw           DocumentType = "law"
	TypeRegulation    DocumentType = "regulation"
	TypeCourtDecision DocumentType = "court_decision"
	TypePrecedent     DocumentType = "precedent"
	TypeGuideline     DocumentType = "guideline"
	TypeOther         DocumentType = "other"
)

// Document is a legal text record with its persisted scores. All four scores
// are in [0,1]; 0.0 means "not yet assessed".
type Document struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Text         string       `json:"text"`
	Source       string       `json:"source"`
	SourceURL    string       `json:"source_url"`
	Type         DocumentType `json:"type"`
	Jurisdiction string       `json:"jurisdiction"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
	RetrievedAt  time.Time    `json:"retrieved_at"`

	QualityScore   float64 `json:"quality_score"`
	LegalRelevance float64 `json:"legal_relevance"`
	FreshnessScore float64 `json:"freshness_score"`
	AuthorityScore float64 `json:"authority_score"`
}

// AgeDays returns the document's age in days relative to now, or -1 when the
// publication date is unknown.
func (d Document) AgeDays(now time.Time) int {
	if d.PublishedAt == nil {
		return -1
	}
	return int(now.Sub(*d.PublishedAt).Hours() / 24)
}

// Scores groups the four persisted score fields written back by the quality
// scoring engine in a single atomic update.
type Scores struct {
	Quality   float64 `json:"quality"`
	Relevance float64 `json:"relevance"`
	Freshness float64 `json:"freshness"`
	Authority float64 `json:"authority"`
}

// Feedback is a user rating of a document surfaced in search results.
// Rating is on a 1–5 scale.
type Feedback struct {
	DocumentID string `json:"document_id"`
	Rating     int    `json:"rating"`
	Reason     string `json:"reason,omitempty"`
}

// StoreStats summarises the document corpus for status endpoints.
type StoreStats struct {
	TotalDocuments int            `json:"total_documents"`
	ByType         map[string]int `json:"by_type"`
	ByJurisdiction map[string]int `json:"by_jurisdiction"`
	AvgQuality     float64        `json:"avg_quality"`
	RecentCount    int            `json:"recent_count"`
}
