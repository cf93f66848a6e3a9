package quality

import (
	"context"
	"fmt"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
)

// Rating boundaries: 4 and above counts as positive, 2 and below as
// negative. Ratings of 3 are neutral and ignored.
const (
	positiveRating = 4
	negativeRating = 2
)

// UpdateFromFeedback derives new bucket thresholds from user ratings of
// scored documents and returns them as a new value: high tracks 0.9x the
// mean quality of positively rated documents, medium the midpoint between
// positive and negative means, and low 0.7x medium. current is returned
// unchanged when the feedback carries no positive ratings. Factor weights
// are deliberately left fixed; adjusting them is an extension point.
func (e *Engine) UpdateFromFeedback(ctx context.Context, current Thresholds, entries []legaldoc.Feedback) (Thresholds, error) {
	if e.store == nil {
		return current, fmt.Errorf("feedback processing requires a store")
	}
	if len(entries) == 0 {
		return current, nil
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.DocumentID)
	}
	docs, err := e.store.ByIDs(ctx, ids)
	if err != nil {
		return current, fmt.Errorf("loading rated documents: %w", err)
	}

	var posSum, negSum float64
	var posCount, negCount int
	for _, entry := range entries {
		doc, ok := docs[entry.DocumentID]
		if !ok {
			continue
		}
		switch {
		case entry.Rating >= positiveRating:
			posSum += doc.QualityScore
			posCount++
		case entry.Rating <= negativeRating:
			negSum += doc.QualityScore
			negCount++
		}
	}
	if posCount == 0 {
		e.logger.Info("feedback carried no positive ratings, thresholds unchanged")
		return current, nil
	}

	posMean := posSum / float64(posCount)
	negMean := 0.0
	if negCount > 0 {
		negMean = negSum / float64(negCount)
	}

	updated := Thresholds{
		High:   clampRange(0.7, 0.9, 0.9*posMean),
		Medium: clampRange(0.5, 0.7, (posMean+negMean)/2),
	}
	updated.Low = 0.7 * updated.Medium

	e.logger.Info("thresholds updated from feedback",
		"positive", posCount,
		"negative", negCount,
		"high", updated.High,
		"medium", updated.Medium,
		"low", updated.Low,
	)
	return updated, nil
}

func clampRange(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
