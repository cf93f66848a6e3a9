// Package quality implements the multi-factor scoring engine that assigns a
// durable trust score to every legal document. Seven sub-scores are computed
// per document; the overall score is a fixed weighted sum of six of them and
// is persisted back onto the document record for the retrieval engine to use
// as a ranking input.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/text"
	"github.com/defenda/legal-retrieval/pkg/kafka"
	"github.com/defenda/legal-retrieval/pkg/metrics"
	"github.com/defenda/legal-retrieval/pkg/resilience"
)

// Metrics holds the overall quality score and its seven sub-scores, each in
// [0,1]. Only the scalar scores are persisted; the struct itself is
// ephemeral.
type Metrics struct {
	Overall           float64 `json:"overall"`
	Content           float64 `json:"content"`
	Relevance         float64 `json:"relevance"`
	Authority         float64 `json:"authority"`
	Freshness         float64 `json:"freshness"`
	Completeness      float64 `json:"completeness"`
	LegalAccuracy     float64 `json:"legal_accuracy"`
	SourceReliability float64 `json:"source_reliability"`
}

// Fixed factor weights for the overall score. Source reliability is reported
// but not weighted into the overall value.
const (
	weightContent      = 0.25
	weightRelevance    = 0.30
	weightAuthority    = 0.20
	weightFreshness    = 0.10
	weightCompleteness = 0.10
	weightAccuracy     = 0.05
)

// Store is the persistence surface the engine needs: score write-back and
// document lookup for feedback processing.
type Store interface {
	UpdateScores(ctx context.Context, id string, scores legaldoc.Scores) error
	ByIDs(ctx context.Context, ids []string) (map[string]legaldoc.Document, error)
}

// EventPublisher publishes score-update events after batch persistence.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Engine computes quality metrics. It is stateless: threshold evolution is
// carried by the Thresholds value callers pass into FilterByQuality.
type Engine struct {
	store     Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine creates an Engine. store and publisher may be nil for pure
// scoring use; persistence and event publication are then skipped.
func NewEngine(store Store, publisher EventPublisher, m *metrics.Metrics) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "quality-engine"),
	}
}

// Score assesses one document. A document with empty text yields all-zero
// metrics rather than an error: scraped legal text is expected to sometimes
// be malformed.
func (e *Engine) Score(doc legaldoc.Document) Metrics {
	if e.metrics != nil {
		e.metrics.QualityAssessments.Inc()
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Metrics{}
	}

	folded := text.Fold(doc.Text)
	m := Metrics{
		Content:       e.contentScore(doc.Text, folded),
		Relevance:     e.relevanceScore(doc.Text, folded),
		Authority:     e.authorityScore(doc.Source),
		Freshness:     e.freshnessScore(doc.PublishedAt),
		Completeness:  e.completenessScore(doc),
		LegalAccuracy: e.accuracyScore(folded),
	}
	m.SourceReliability = e.sourceReliability(doc, m.Authority)
	m.Overall = clamp01(
		weightContent*m.Content +
			weightRelevance*m.Relevance +
			weightAuthority*m.Authority +
			weightFreshness*m.Freshness +
			weightCompleteness*m.Completeness +
			weightAccuracy*m.LegalAccuracy,
	)
	return m
}

// contentScore combines a length band, structural marker count, and formal
// connective count with weights 0.4/0.3/0.3.
func (e *Engine) contentScore(raw, folded string) float64 {
	lengthScore := bandScore(float64(len(raw)), contentLengthBands)
	markerScore := minF(float64(len(structureMarkerRe.FindAllString(folded, -1)))*0.1, 1.0)
	connectiveScore := minF(float64(countPhrases(folded, legalConnectives))*0.15, 1.0)
	return clamp01(0.4*lengthScore + 0.3*markerScore + 0.3*connectiveScore)
}

// relevanceScore matches the three ranked keyword sets plus a density term,
// combined with weights 0.5/0.3/0.1/0.1.
func (e *Engine) relevanceScore(raw, folded string) float64 {
	primary := minF(float64(countPhrases(folded, primaryTerms))*0.25, 1.0)
	secondary := minF(float64(countPhrases(folded, secondaryTerms))*0.2, 1.0)
	procedural := minF(float64(countPhrases(folded, proceduralTerms))*0.2, 1.0)

	density := 0.0
	if words := wordCount(raw); words > 0 {
		matchesPer100 := float64(phraseMatches(folded, primaryTerms)) / float64(words) * 100
		density = minF(matchesPer100/5.0, 1.0)
	}
	return clamp01(0.5*primary + 0.3*secondary + 0.1*procedural + 0.1*density)
}

// authorityScore is a direct lookup against the fixed source table.
func (e *Engine) authorityScore(source string) float64 {
	if score, ok := authorityTable[text.Fold(strings.TrimSpace(source))]; ok {
		return score
	}
	return authorityDefault
}

// freshnessScore is a step function of document age in days.
func (e *Engine) freshnessScore(publishedAt *time.Time) float64 {
	if publishedAt == nil {
		return freshnessDefault
	}
	ageDays := time.Since(*publishedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return bandScore(ageDays, freshnessBands)
}

// completenessScore sums fixed points for the presence of each metadata
// field, capped at 1.0.
func (e *Engine) completenessScore(doc legaldoc.Document) float64 {
	score := 0.0
	if len(doc.Title) > 10 {
		score += 0.2
	}
	if doc.SourceURL != "" {
		score += 0.15
	}
	if doc.PublishedAt != nil {
		score += 0.15
	}
	if doc.Jurisdiction != "" {
		score += 0.15
	}
	if doc.Type != "" {
		score += 0.15
	}
	if len(doc.Text) > 500 {
		score += 0.2
	}
	return minF(score, 1.0)
}

// accuracyScore averages the citation-count band score with the fraction of
// bare numeric tokens that appear next to a legal keyword.
func (e *Engine) accuracyScore(folded string) float64 {
	citations := len(citationRe.FindAllString(folded, -1))
	citationScore := bandScore(float64(citations), citationBands)
	return clamp01((citationScore + numberAdjacencyRatio(folded)) / 2)
}

// sourceReliability is the authority score adjusted by an official-source
// bonus and penalties for missing publication date or source URL.
func (e *Engine) sourceReliability(doc legaldoc.Document, authority float64) float64 {
	score := authority
	if _, ok := officialSources[text.Fold(strings.TrimSpace(doc.Source))]; ok {
		score += 0.1
	}
	if doc.PublishedAt == nil {
		score -= 0.1
	}
	if doc.SourceURL == "" {
		score -= 0.1
	}
	return clamp01(score)
}

// scoreEvent is published after batch persistence so replicas can drop
// cached rankings built on stale scores.
type scoreEvent struct {
	DocumentID string    `json:"document_id"`
	Quality    float64   `json:"quality"`
	AssessedAt time.Time `json:"assessed_at"`
}

// BatchScore assesses and persists scores for every document, applying each
// document's four score fields as one atomic update. Returns the number of
// documents persisted.
func (e *Engine) BatchScore(ctx context.Context, docs []legaldoc.Document) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("batch scoring requires a store")
	}
	persisted := 0
	for _, doc := range docs {
		m := e.Score(doc)
		scores := legaldoc.Scores{
			Quality:   m.Overall,
			Relevance: m.Relevance,
			Freshness: m.Freshness,
			Authority: m.Authority,
		}
		err := resilience.Retry(ctx, "quality-score-writeback", resilience.RetryConfig{}, func() error {
			return e.store.UpdateScores(ctx, doc.ID, scores)
		})
		if err != nil {
			return persisted, fmt.Errorf("persisting scores for %s: %w", doc.ID, err)
		}
		persisted++

		if e.publisher != nil {
			event := kafka.Event{
				Key: doc.ID,
				Value: scoreEvent{
					DocumentID: doc.ID,
					Quality:    m.Overall,
					AssessedAt: time.Now().UTC(),
				},
			}
			if err := e.publisher.Publish(ctx, event); err != nil {
				e.logger.Warn("score event publish failed", "document_id", doc.ID, "error", err)
			}
		}
	}
	e.logger.Info("batch scoring complete", "documents", len(docs), "persisted", persisted)
	return persisted, nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
