// Package text provides Portuguese-aware text normalisation for the
// retrieval core. It lower-cases input, folds accented characters, splits on
// non-alphanumeric boundaries, and removes Portuguese stop-words.
package text

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {}, "em": {},
	"no": {}, "na": {}, "nos": {}, "nas": {}, "um": {}, "uma": {},
	"os": {}, "as": {}, "ao": {}, "aos": {}, "com": {}, "por": {},
	"para": {}, "que": {}, "nao": {}, "mais": {}, "como": {},
	"mas": {}, "foi": {}, "ele": {}, "ela": {}, "seu": {}, "sua": {},
	"ou": {}, "ser": {}, "quando": {}, "muito": {}, "ja": {},
	"esta": {}, "este": {}, "esse": {}, "essa": {}, "entre": {},
	"depois": {}, "sem": {}, "mesmo": {}, "ter": {}, "seus": {},
	"suas": {}, "qual": {}, "sao": {}, "pelo": {}, "pela": {},
	"ate": {}, "isso": {}, "era": {}, "tem": {}, "foram": {},
	"nem": {}, "sobre": {}, "tambem": {},
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
	"º", "", "ª", "",
)

// Fold lower-cases s and strips Portuguese diacritics, so that
// "Contraordenação" and "contraordenacao" normalise identically.
func Fold(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

// Tokenize breaks text into folded, lowercased terms with stop-words and
// single-character fragments removed.
func Tokenize(text string) []string {
	folded := Fold(text)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words)/2)
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// TokenSet returns the distinct tokens of text as a set.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Overlap reports the fraction of query tokens present in the candidate
// token set. Returns 0 for an empty query.
func Overlap(queryTokens []string, candidate map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	matched := 0
	for _, t := range queryTokens {
		if _, ok := candidate[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}
