// Package chunker splits legal text into retrieval units while preserving
// article and section boundaries. Structured types (laws, regulations) are
// split on recognised structural markers; everything else falls back to
// paragraph packing with a trailing overlap window. The chunker is pure:
// identical input always produces identical chunks, and malformed input
// yields an empty list rather than an error.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
)

// Label identifies the structural element that introduced a chunk.
type Label string

const (
	LabelPreamble  Label = "preamble"
	LabelArticle   Label = "article"
	LabelSection   Label = "section"
	LabelParagraph Label = "paragraph"
)

// Chunk is a bounded, structurally-labelled segment of a document's text.
// Start and End are character offsets into the source text; in paragraph
// mode the Content may additionally carry a trailing-overlap prefix from the
// previous chunk, which is not covered by the offsets.
type Chunk struct {
	ID         string              `json:"id"`
	Content    string              `json:"content"`
	Start      int                 `json:"start"`
	End        int                 `json:"end"`
	Label      Label               `json:"label"`
	References map[string][]string `json:"references"`
	Importance float64             `json:"importance"`
}

// Chunker holds the size limits for paragraph-mode splitting.
type Chunker struct {
	MaxChunkSize int
	Overlap      int
	MinLength    int
}

// New returns a Chunker with the default limits.
func New() *Chunker {
	return &Chunker{
		MaxChunkSize: 1200,
		Overlap:      150,
		MinLength:    50,
	}
}

type markerPattern struct {
	re    *regexp.Regexp
	label Label
}

// Structural markers cover the numbering conventions common in Portuguese
// legal text: "Artigo 135.º", "Art. 48", "SECÇÃO II", "CAPÍTULO IV", "§ 2".
var structureMarkers = []markerPattern{
	{regexp.MustCompile(`(?mi)^[ \t]*artigo\s+\d+\.?º?(?:-[A-Z])?`), LabelArticle},
	{regexp.MustCompile(`(?mi)^[ \t]*art\.\s*\d+\.?º?`), LabelArticle},
	{regexp.MustCompile(`(?mi)^[ \t]*(?:secção|seccao|capítulo|capitulo|título|titulo)\s+[IVXLCDM\d]+`), LabelSection},
	{regexp.MustCompile(`(?m)^[ \t]*§\s*\d+`), LabelParagraph},
}

var paragraphSeparator = regexp.MustCompile(`\n[ \t]*\n`)

// Split chunks docText according to the document type. Structured legal
// types are split on structural markers; other types use paragraph packing.
func (c *Chunker) Split(docText string, docType legaldoc.DocumentType) []Chunk {
	if strings.TrimSpace(docText) == "" {
		return []Chunk{}
	}
	var chunks []Chunk
	if isStructured(docType) {
		chunks = c.splitStructural(docText, docType)
	}
	if len(chunks) == 0 {
		chunks = c.splitParagraphs(docText, docType)
	}
	return chunks
}

func isStructured(docType legaldoc.DocumentType) bool {
	return docType == legaldoc.TypeLaw || docType == legaldoc.TypeRegulation
}

type marker struct {
	start int
	label Label
}

// splitStructural cuts the text at every structural marker. Each chunk runs
// from one marker to the next; text before the first marker becomes the
// preamble. Returns nil when no markers are present so the caller can fall
// back to paragraph mode.
func (c *Chunker) splitStructural(docText string, docType legaldoc.DocumentType) []Chunk {
	markers := findMarkers(docText)
	if len(markers) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, len(markers)+1)
	if markers[0].start > 0 {
		if chunk, ok := c.finalize(docText[:markers[0].start], 0, markers[0].start, LabelPreamble, docType, ""); ok {
			chunks = append(chunks, chunk)
		}
	}
	for i, m := range markers {
		end := len(docText)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		if chunk, ok := c.finalize(docText[m.start:end], m.start, end, m.label, docType, ""); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func findMarkers(docText string) []marker {
	seen := make(map[int]struct{})
	markers := make([]marker, 0)
	for _, mp := range structureMarkers {
		for _, loc := range mp.re.FindAllStringIndex(docText, -1) {
			if _, dup := seen[loc[0]]; dup {
				continue
			}
			seen[loc[0]] = struct{}{}
			markers = append(markers, marker{start: loc[0], label: mp.label})
		}
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].start < markers[j].start })
	return markers
}

type span struct {
	start int
	end   int
}

// splitParagraphs packs blank-line-delimited paragraphs into chunks up to
// MaxChunkSize, starting each subsequent chunk with a trailing overlap of
// the previous one so cross-boundary context survives retrieval.
func (c *Chunker) splitParagraphs(docText string, docType legaldoc.DocumentType) []Chunk {
	spans := paragraphSpans(docText)
	chunks := make([]Chunk, 0)

	var cur []span
	curLen := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		start, end := cur[0].start, cur[len(cur)-1].end
		overlap := ""
		if len(chunks) > 0 {
			prev := chunks[len(chunks)-1]
			overlap = tail(docText[prev.Start:prev.End], c.Overlap)
		}
		if chunk, ok := c.finalize(docText[start:end], start, end, LabelParagraph, docType, overlap); ok {
			chunks = append(chunks, chunk)
		}
		cur = cur[:0]
		curLen = 0
	}

	for _, sp := range spans {
		spanLen := sp.end - sp.start
		if curLen > 0 && curLen+spanLen > c.MaxChunkSize {
			flush()
		}
		cur = append(cur, sp)
		curLen += spanLen
	}
	flush()
	return chunks
}

func paragraphSpans(docText string) []span {
	seps := paragraphSeparator.FindAllStringIndex(docText, -1)
	spans := make([]span, 0, len(seps)+1)
	prev := 0
	for _, sep := range seps {
		if sep[0] > prev {
			spans = append(spans, span{start: prev, end: sep[0]})
		}
		prev = sep[1]
	}
	if prev < len(docText) {
		spans = append(spans, span{start: prev, end: len(docText)})
	}
	return spans
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// finalize trims the raw content, drops fragments shorter than MinLength,
// and fills in the derived chunk fields.
func (c *Chunker) finalize(raw string, start, end int, label Label, docType legaldoc.DocumentType, overlap string) (Chunk, bool) {
	content := strings.TrimSpace(raw)
	if len(content) < c.MinLength {
		return Chunk{}, false
	}
	if overlap != "" {
		content = strings.TrimSpace(overlap) + "\n" + content
	}
	sum := sha256.Sum256([]byte(content))
	return Chunk{
		ID:         hex.EncodeToString(sum[:8]),
		Content:    content,
		Start:      start,
		End:        end,
		Label:      label,
		References: extractReferences(content),
		Importance: importance(content, docType),
	}, true
}

var referencePatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"articles", regexp.MustCompile(`(?i)art(?:igo)?\.?\s*(\d+(?:-[A-Z])?)`)},
	{"laws", regexp.MustCompile(`(?i)lei\s+n\.?º?\s*(\d+(?:-[A-Z])?/\d{2,4})`)},
	{"decrees", regexp.MustCompile(`(?i)decreto-lei\s+n\.?º?\s*(\d+(?:-[A-Z])?/\d{2,4})`)},
	{"portarias", regexp.MustCompile(`(?i)portaria\s+n\.?º?\s*(\d+(?:-[A-Z])?/\d{2,4})`)},
}

// extractReferences pulls article, law, decree, and portaria numbers out of
// the chunk content, keeping first-occurrence order and dropping duplicates.
func extractReferences(content string) map[string][]string {
	refs := make(map[string][]string)
	for _, rp := range referencePatterns {
		seen := make(map[string]struct{})
		for _, m := range rp.re.FindAllStringSubmatch(content, -1) {
			ref := strings.ToUpper(m[1])
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs[rp.kind] = append(refs[rp.kind], ref)
		}
	}
	return refs
}
