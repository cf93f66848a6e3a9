package retrieval

import (
	"strings"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/text"
)

// Composite relevance weights. The combination is clamped to 1.0 so a
// logic error upstream can never leak an out-of-range score to callers.
const (
	weightSemantic = 0.40
	weightKeyword  = 0.25
	weightQuality  = 0.20
	weightMetadata = 0.10
	weightContext  = 0.05
)

// metadataBonus rewards soft filter matches and recency, capped at 0.5.
// Unlike the hard filters applied later, a missing match here only costs
// ranking position.
func metadataBonus(doc legaldoc.Document, qc QueryContext, now time.Time) float64 {
	bonus := 0.0
	for _, t := range qc.DocumentTypes {
		if doc.Type == t {
			bonus += 0.3
			break
		}
	}
	for _, j := range qc.Jurisdictions {
		if text.Fold(doc.Jurisdiction) == text.Fold(j) {
			bonus += 0.2
			break
		}
	}
	switch age := doc.AgeDays(now); {
	case age < 0:
	case age < 365:
		bonus += 0.2
	case age < 730:
		bonus += 0.1
	}
	return minF(bonus, 0.5)
}

// contextRelevance measures token overlap between the candidate content and
// the query context's filter terms, capped at 0.5.
func contextRelevance(content string, qc QueryContext) float64 {
	terms := make([]string, 0, len(qc.CaseOutcomes)+len(qc.DocumentTypes)+len(qc.Jurisdictions))
	terms = append(terms, qc.CaseOutcomes...)
	for _, t := range qc.DocumentTypes {
		terms = append(terms, string(t))
	}
	terms = append(terms, qc.Jurisdictions...)
	if len(terms) == 0 {
		return 0
	}

	tokens := text.Tokenize(strings.Join(terms, " "))
	if len(tokens) == 0 {
		return 0
	}
	return minF(text.Overlap(tokens, text.TokenSet(content))*0.5, 0.5)
}

// composite combines the five scoring inputs into one relevance score.
func composite(semantic, keyword, quality, metadata, contextRel float64) float64 {
	return clamp01(
		weightSemantic*semantic +
			weightKeyword*keyword +
			weightQuality*quality +
			weightMetadata*metadata +
			weightContext*contextRel,
	)
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
