package retrieval

import (
	"context"
	"strings"

	"github.com/defenda/legal-retrieval/internal/text"
)

// synonymTable maps folded domain terms to their interchangeable variants.
// Expansion is purely textual: no embedding calls, no stemming.
var synonymTable = map[string][]string{
	"multa":           {"coima", "contraordenação"},
	"coima":           {"multa"},
	"contraordenacao": {"coima"},
	"estacionamento":  {"parqueamento"},
	"velocidade":      {"excesso de velocidade"},
	"recurso":         {"impugnação", "contestação"},
	"defesa":          {"contestação"},
	"prazo":           {"período"},
	"condutor":        {"motorista"},
	"veiculo":         {"automóvel", "viatura"},
	"alcool":          {"alcoolemia"},
	"carta":           {"título de condução"},
}

// maxVariants caps the expansion fan-out, original query included.
const maxVariants = 6

// ExpandQuery produces the original query plus one variant per (word,
// synonym) pair for every query word present in the synonym table. The
// output order is deterministic: original first, then variants in query-word
// order and table order.
func (e *Engine) ExpandQuery(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}
	variants := []string{query}
	words := strings.Fields(query)
	for i, word := range words {
		synonyms, ok := synonymTable[text.Fold(word)]
		if !ok {
			continue
		}
		for _, synonym := range synonyms {
			if len(variants) >= maxVariants {
				return variants
			}
			swapped := make([]string, len(words))
			copy(swapped, words)
			swapped[i] = synonym
			variants = append(variants, strings.Join(swapped, " "))
		}
	}
	return variants
}
