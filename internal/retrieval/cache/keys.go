package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/defenda/legal-retrieval/internal/retrieval"
)

// Cache key namespaces. Each memoised step writes under its own prefix so
// invalidation can target one step without flushing the others.
const (
	nsQuery     = "legalrag:query"
	nsExpansion = "legalrag:query_expansion"
	nsSemantic  = "legalrag:semantic_search"
	nsKeyword   = "legalrag:keyword_search"
)

// hashLen is the hex-digest prefix length used in keys. 16 hex chars (64
// bits) keeps keys short while making accidental collisions implausible.
const hashLen = 16

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// queryKey builds the full-result cache key for one query context. The key
// has the shape <ns>:<query-hash>:<params-hash>, so every cached variant of
// one query text shares a glob-matchable prefix.
func queryKey(qc retrieval.QueryContext) string {
	return nsQuery + ":" + hash(foldKeyText(qc.Query)) + ":" + hash(canonicalParams(qc))
}

// queryPrefix returns the glob matching every cached parameter variant of
// the given query text.
func queryPrefix(query string) string {
	return nsQuery + ":" + hash(foldKeyText(query)) + ":*"
}

func expansionKey(query string) string {
	return nsExpansion + ":" + hash(foldKeyText(query))
}

func semanticKey(query string, k int) string {
	return fmt.Sprintf("%s:%s:%d", nsSemantic, hash(foldKeyText(query)), k)
}

func keywordKey(query string, k int) string {
	return fmt.Sprintf("%s:%s:%d", nsKeyword, hash(foldKeyText(query)), k)
}

// foldKeyText normalises query text for key derivation so that cosmetic
// whitespace and casing differences hit the same entry.
func foldKeyText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// canonicalParams serialises the non-query fields of a query context into a
// deterministic string. List filters are sorted, so two contexts differing
// only in filter order produce the same key.
func canonicalParams(qc retrieval.QueryContext) string {
	var b strings.Builder

	types := make([]string, 0, len(qc.DocumentTypes))
	for _, t := range qc.DocumentTypes {
		types = append(types, string(t))
	}
	writeSortedList(&b, "types", types)
	writeSortedList(&b, "jurisdictions", foldAll(qc.Jurisdictions))
	writeSortedList(&b, "outcomes", foldAll(qc.CaseOutcomes))

	b.WriteString("from=")
	b.WriteString(formatDate(qc.DateFrom))
	b.WriteString("|to=")
	b.WriteString(formatDate(qc.DateTo))
	fmt.Fprintf(&b, "|min_quality=%.4f", qc.MinQuality)
	fmt.Fprintf(&b, "|max_results=%d", qc.Limit())

	return b.String()
}

func writeSortedList(b *strings.Builder, name string, values []string) {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	b.WriteString(name)
	b.WriteString("=")
	b.WriteString(strings.Join(sorted, ","))
	b.WriteString("|")
}

func foldAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
