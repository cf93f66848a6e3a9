package chunker

import (
	"reflect"
	"strings"
	"testing"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
)

const lawText = `Código da Estrada, aprovado pelo Decreto-Lei n.º 114/94, estabelece as regras de circulação rodoviária em território nacional.

Artigo 135.º
Paragem e estacionamento proibido. O estacionamento em local proibido constitui contraordenação punível com coima de 30 a 150 euros, nos termos da Lei n.º 72/2013.

Artigo 136.º
Competência para o processamento das contraordenações rodoviárias pertence à ANSR, sem prejuízo das competências municipais de fiscalização do estacionamento.

SECÇÃO II
Disposições finais e transitórias aplicáveis às contraordenações pendentes à data de entrada em vigor do presente diploma legal.`

func TestSplitStructuralLaw(t *testing.T) {
	chunks := New().Split(lawText, legaldoc.TypeLaw)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}

	wantLabels := []Label{LabelPreamble, LabelArticle, LabelArticle, LabelSection}
	for i, chunk := range chunks {
		if chunk.Label != wantLabels[i] {
			t.Errorf("chunk %d label = %s, want %s", i, chunk.Label, wantLabels[i])
		}
	}
	if !strings.HasPrefix(chunks[1].Content, "Artigo 135.º") {
		t.Errorf("article chunk starts with %q", chunks[1].Content[:20])
	}
}

func TestSplitStructuralOffsetsCoverSource(t *testing.T) {
	chunks := New().Split(lawText, legaldoc.TypeLaw)
	prevEnd := 0
	for i, chunk := range chunks {
		if chunk.Start < prevEnd {
			t.Errorf("chunk %d starts at %d before previous end %d", i, chunk.Start, prevEnd)
		}
		if chunk.End <= chunk.Start {
			t.Errorf("chunk %d has empty span [%d,%d)", i, chunk.Start, chunk.End)
		}
		if trimmed := strings.TrimSpace(lawText[chunk.Start:chunk.End]); trimmed != chunk.Content {
			t.Errorf("chunk %d content does not match its source span", i)
		}
		prevEnd = chunk.End
	}
}

func TestSplitExtractsReferences(t *testing.T) {
	chunks := New().Split(lawText, legaldoc.TypeLaw)
	art := chunks[1]
	if got := art.References["laws"]; !reflect.DeepEqual(got, []string{"72/2013"}) {
		t.Errorf("laws = %v, want [72/2013]", got)
	}
	if len(art.References["articles"]) == 0 {
		t.Error("expected article references in article chunk")
	}
	if got := chunks[0].References["decrees"]; !reflect.DeepEqual(got, []string{"114/94"}) {
		t.Errorf("decrees = %v, want [114/94]", got)
	}
}

func TestStructuralChunksReconstructSource(t *testing.T) {
	chunks := New().Split(lawText, legaldoc.TypeLaw)
	var joined strings.Builder
	for _, chunk := range chunks {
		joined.WriteString(chunk.Content)
	}
	if stripSpace(joined.String()) != stripSpace(lawText) {
		t.Fatal("concatenated chunks do not reproduce the source text")
	}
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSplitIsDeterministic(t *testing.T) {
	a := New().Split(lawText, legaldoc.TypeLaw)
	b := New().Split(lawText, legaldoc.TypeLaw)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical input produced different chunks")
	}
}

func TestSplitUnstructuredFallsBackToParagraphs(t *testing.T) {
	text := strings.Repeat("O tribunal considerou procedente o recurso da contraordenação aplicada. ", 10) +
		"\n\n" +
		strings.Repeat("A decisão administrativa foi anulada por vício de forma no auto de notícia. ", 10)
	chunks := New().Split(text, legaldoc.TypeCourtDecision)
	if len(chunks) == 0 {
		t.Fatal("expected paragraph chunks")
	}
	for i, chunk := range chunks {
		if chunk.Label != LabelParagraph {
			t.Errorf("chunk %d label = %s, want paragraph", i, chunk.Label)
		}
	}
}

func TestSplitLawWithoutMarkersFallsBack(t *testing.T) {
	text := strings.Repeat("Texto legal sem qualquer marcador estrutural reconhecido pelo sistema. ", 5)
	chunks := New().Split(text, legaldoc.TypeLaw)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Label != LabelParagraph {
		t.Errorf("label = %s, want paragraph", chunks[0].Label)
	}
}

func TestParagraphOverlapCarriesContext(t *testing.T) {
	first := strings.Repeat("primeira parte do acórdão sobre estacionamento proibido e coimas aplicadas ", 20)
	second := strings.Repeat("segunda parte do acórdão sobre o recurso e a decisão final do tribunal ", 20)
	chunks := New().Split(first+"\n\n"+second, legaldoc.TypeCourtDecision)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	prevTail := strings.TrimSpace(tail(first, New().Overlap))
	if !strings.HasPrefix(chunks[1].Content, prevTail) {
		t.Error("second chunk does not start with the previous chunk's tail")
	}
}

func TestSplitDropsShortFragments(t *testing.T) {
	chunks := New().Split("Artigo 1.º\ncurto", legaldoc.TypeLaw)
	if len(chunks) != 0 {
		t.Fatalf("got %d chunks, want 0 for sub-minimum content", len(chunks))
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if chunks := New().Split("", legaldoc.TypeLaw); len(chunks) != 0 {
		t.Fatalf("empty input produced %d chunks", len(chunks))
	}
	if chunks := New().Split("   \n\n  ", legaldoc.TypeGuideline); len(chunks) != 0 {
		t.Fatalf("whitespace input produced %d chunks", len(chunks))
	}
}

func TestChunkIDsDistinguishContent(t *testing.T) {
	chunks := New().Split(lawText, legaldoc.TypeLaw)
	seen := make(map[string]struct{})
	for _, chunk := range chunks {
		if chunk.ID == "" {
			t.Fatal("chunk with empty ID")
		}
		if _, dup := seen[chunk.ID]; dup {
			t.Fatalf("duplicate chunk ID %s", chunk.ID)
		}
		seen[chunk.ID] = struct{}{}
	}
}

func TestImportanceWithinBounds(t *testing.T) {
	chunks := New().Split(lawText, legaldoc.TypeLaw)
	for i, chunk := range chunks {
		if chunk.Importance < 0 || chunk.Importance > 1 {
			t.Errorf("chunk %d importance %v out of [0,1]", i, chunk.Importance)
		}
	}
}

func TestArticleChunkOutranksBoilerplate(t *testing.T) {
	article := "Artigo 135.º Estacionamento proibido, coima de 30 a 150 euros por contraordenação rodoviária conforme a infração praticada pelo condutor do veículo em causa."
	boring := "Este texto genérico não contém qualquer terminologia relevante e serve apenas para ocupar espaço no documento durante a comparação."
	hi := importance(article, legaldoc.TypeLaw)
	lo := importance(boring, legaldoc.TypeLaw)
	if hi <= lo {
		t.Errorf("importance(article)=%v not above importance(boilerplate)=%v", hi, lo)
	}
}
