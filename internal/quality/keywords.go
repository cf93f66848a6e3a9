package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/defenda/legal-retrieval/internal/text"
)

// Ranked keyword sets for the relevance sub-score, folded. Primary terms are
// the core traffic-offence vocabulary; secondary terms name authorities and
// enforcement; procedural terms cover the defence workflow.
var (
	primaryTerms = []string{
		"multa", "coima", "contraordenacao", "estacionamento", "transito",
		"velocidade", "conducao", "infracao", "codigo da estrada",
	}
	secondaryTerms = []string{
		"ansr", "imt", "autoridade", "fiscalizacao", "agente",
		"auto de noticia", "policia", "psp", "gnr",
	}
	proceduralTerms = []string{
		"recurso", "impugnacao", "defesa", "prazo", "notificacao",
		"audiencia", "decisao", "pagamento voluntario",
	}
)

// Formal connective phrases typical of Portuguese legal drafting, folded.
var legalConnectives = []string{
	"nos termos", "ao abrigo", "considerando que", "sem prejuizo",
	"de acordo com", "em conformidade com", "salvo o disposto",
	"para efeitos",
}

// structureMarkerRe counts structural legal markers in folded text for the
// content sub-score.
var structureMarkerRe = regexp.MustCompile(`art(?:igo)?\.?\s*\d+|§\s*\d+|n\.?\s*\d+/\d{2,4}|alinea|capitulo|seccao`)

// citationRe matches pattern-recognisable legal citations in folded text.
var citationRe = regexp.MustCompile(`art(?:igo)?\.?\s*\d+|lei\s+n\.?\s*\d+(?:-[a-z])?/\d{2,4}|decreto-lei\s+n\.?\s*\d+(?:-[a-z])?/\d{2,4}|portaria\s+n\.?\s*\d+(?:-[a-z])?/\d{2,4}|acordao|processo\s+n\.?\s*\d+`)

// Keywords whose adjacency legitimises a bare numeric token.
var numberContextWords = map[string]struct{}{
	"artigo": {}, "art": {}, "artigos": {}, "lei": {}, "decreto": {},
	"decreto-lei": {}, "portaria": {}, "n": {}, "no": {}, "num": {},
	"processo": {}, "alinea": {}, "paragrafo": {}, "seccao": {},
}

// countPhrases counts how many of the folded phrases occur in folded
// content. Multi-word phrases are matched as substrings.
func countPhrases(folded string, phrases []string) int {
	count := 0
	for _, p := range phrases {
		if strings.Contains(folded, p) {
			count++
		}
	}
	return count
}

// phraseMatches counts total occurrences of the phrases, for density terms.
func phraseMatches(folded string, phrases []string) int {
	total := 0
	for _, p := range phrases {
		total += strings.Count(folded, p)
	}
	return total
}

// numberAdjacencyRatio returns the fraction of bare numeric tokens that sit
// next to a legal keyword. Text without numeric tokens scores 1.0 (nothing
// suspicious to penalise).
func numberAdjacencyRatio(folded string) float64 {
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	total := 0
	adjacent := 0
	for i, w := range words {
		if !isNumeric(w) {
			continue
		}
		total++
		if i > 0 {
			if _, ok := numberContextWords[words[i-1]]; ok {
				adjacent++
				continue
			}
		}
		if i+1 < len(words) {
			if _, ok := numberContextWords[words[i+1]]; ok {
				adjacent++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(adjacent) / float64(total)
}

func isNumeric(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// wordCount counts the tokens of content after folding, for keyword-density
// terms.
func wordCount(content string) int {
	return len(text.Tokenize(content))
}
