package quality

import (
	"context"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
)

// Thresholds holds the bucket boundaries used by FilterByQuality. It is an
// immutable value: UpdateFromFeedback returns a new Thresholds rather than
// mutating engine state, so concurrent filtering calls never race on it.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// DefaultThresholds returns the initial bucket boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Medium: 0.6, Low: 0.42}
}

// Bucket is one quality partition with its average overall score.
type Bucket struct {
	Documents []legaldoc.Document `json:"documents"`
	Average   float64             `json:"average"`
}

// FilterResult partitions documents into quality buckets. FilteredOut lists
// the ids of documents scoring below the cutoff.
type FilterResult struct {
	High        Bucket   `json:"high"`
	Medium      Bucket   `json:"medium"`
	Low         Bucket   `json:"low"`
	FilteredOut []string `json:"filtered_out"`
	Threshold   float64  `json:"threshold"`
}

// FilterByQuality scores every document, persists its new overall score, and
// buckets it: high (>= th.High), medium (>= th.Medium), low (>= threshold),
// or filtered out (< threshold). Persistence failures abort the call; the
// returned documents carry the freshly computed scores.
func (e *Engine) FilterByQuality(ctx context.Context, docs []legaldoc.Document, threshold float64, th Thresholds) (FilterResult, error) {
	result := FilterResult{Threshold: threshold}
	var highSum, mediumSum, lowSum float64

	for _, doc := range docs {
		m := e.Score(doc)
		doc.QualityScore = m.Overall
		doc.LegalRelevance = m.Relevance
		doc.FreshnessScore = m.Freshness
		doc.AuthorityScore = m.Authority

		if e.store != nil {
			scores := legaldoc.Scores{
				Quality:   m.Overall,
				Relevance: m.Relevance,
				Freshness: m.Freshness,
				Authority: m.Authority,
			}
			if err := e.store.UpdateScores(ctx, doc.ID, scores); err != nil {
				return FilterResult{}, err
			}
		}

		switch {
		case m.Overall >= th.High:
			result.High.Documents = append(result.High.Documents, doc)
			highSum += m.Overall
		case m.Overall >= th.Medium:
			result.Medium.Documents = append(result.Medium.Documents, doc)
			mediumSum += m.Overall
		case m.Overall >= threshold:
			result.Low.Documents = append(result.Low.Documents, doc)
			lowSum += m.Overall
		default:
			result.FilteredOut = append(result.FilteredOut, doc.ID)
		}
	}

	if n := len(result.High.Documents); n > 0 {
		result.High.Average = highSum / float64(n)
	}
	if n := len(result.Medium.Documents); n > 0 {
		result.Medium.Average = mediumSum / float64(n)
	}
	if n := len(result.Low.Documents); n > 0 {
		result.Low.Average = lowSum / float64(n)
	}

	e.logger.Info("quality filtering complete",
		"documents", len(docs),
		"high", len(result.High.Documents),
		"medium", len(result.Medium.Documents),
		"low", len(result.Low.Documents),
		"filtered_out", len(result.FilteredOut),
	)
	return result, nil
}
