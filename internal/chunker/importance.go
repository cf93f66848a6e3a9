package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/text"
)

// Domain keywords per document type, folded. Density of these terms is one
// input to the importance score.
var domainKeywords = map[legaldoc.DocumentType][]string{
	legaldoc.TypeLaw: {
		"contraordenacao", "coima", "multa", "infracao", "sancao",
		"estacionamento", "transito", "velocidade", "conducao",
	},
	legaldoc.TypeRegulation: {
		"contraordenacao", "coima", "regulamento", "fiscalizacao",
		"sinalizacao", "estacionamento",
	},
	legaldoc.TypeCourtDecision: {
		"acordao", "recurso", "sentenca", "tribunal", "impugnacao", "prova",
	},
	legaldoc.TypePrecedent: {
		"acordao", "jurisprudencia", "tribunal", "fundamentacao",
	},
	legaldoc.TypeGuideline: {
		"defesa", "prazo", "notificacao", "pagamento", "procedimento",
	},
}

var defaultKeywords = []string{
	"multa", "coima", "contraordenacao", "recurso", "defesa", "prazo",
}

var structureBonusRe = regexp.MustCompile(`(?i)art(?:igo)?\.?\s*\d+|§\s*\d+`)

// importance scores a chunk in [0,1] from its length, domain-keyword
// density, structural markers, and distinct number tokens.
func importance(content string, docType legaldoc.DocumentType) float64 {
	score := minF(float64(len(content))/2000.0, 0.3)

	keywords := domainKeywords[docType]
	if keywords == nil {
		keywords = defaultKeywords
	}
	tokens := text.Tokenize(content)
	if len(tokens) > 0 {
		keywordSet := make(map[string]struct{}, len(keywords))
		for _, k := range keywords {
			keywordSet[k] = struct{}{}
		}
		matches := 0
		for _, t := range tokens {
			if _, ok := keywordSet[t]; ok {
				matches++
			}
		}
		density := float64(matches) / float64(len(tokens))
		score += minF(density*3, 0.3)
	}

	if structureBonusRe.MatchString(content) {
		score += 0.2
	}

	score += minF(0.05*float64(distinctNumbers(content)), 0.2)

	return clamp01(score)
}

func distinctNumbers(content string) int {
	numbers := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsDigit(r)
	}) {
		numbers[field] = struct{}{}
	}
	return len(numbers)
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
