package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/defenda/legal-retrieval/internal/text"
)

// Domain terms that earn a keyword-score bonus when present in both query
// and candidate text.
var domainBoostTerms = []string{
	"multa", "coima", "contraordenacao", "artigo", "estacionamento",
	"velocidade", "recurso", "prazo", "infracao",
}

// keywordRelevance scores a candidate text against a query using token
// overlap, an exact-phrase bonus, and domain-term bonuses, clamped to 1.0.
func keywordRelevance(query, content string) float64 {
	queryTokens := text.Tokenize(query)
	if len(queryTokens) == 0 || content == "" {
		return 0
	}
	contentSet := text.TokenSet(content)
	score := text.Overlap(queryTokens, contentSet) * 0.6

	foldedQuery := text.Fold(strings.TrimSpace(query))
	foldedContent := text.Fold(content)
	if foldedQuery != "" && strings.Contains(foldedContent, foldedQuery) {
		score += 0.2
	}

	bonus := 0.0
	for _, term := range domainBoostTerms {
		if strings.Contains(foldedQuery, term) && strings.Contains(foldedContent, term) {
			bonus += 0.05
		}
	}
	score += minF(bonus, 0.15)

	return clamp01(score)
}

// KeywordSearch scores every stored document's text against the query and
// returns the top-k (id, score) pairs. Zero-scoring documents are dropped.
func (e *Engine) KeywordSearch(ctx context.Context, query string, k int) ([]DocScore, error) {
	start := time.Now()
	docs, err := e.docs.All(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]DocScore, 0, len(docs))
	for _, doc := range docs {
		score := keywordRelevance(query, doc.Text)
		if score <= 0 {
			continue
		}
		scored = append(scored, DocScore{DocumentID: doc.ID, Score: score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].DocumentID < scored[j].DocumentID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}

	if e.metrics != nil {
		e.metrics.KeywordSearchLatency.Observe(time.Since(start).Seconds())
	}
	return scored, nil
}
