// Package vector defines the typed boundary to the external vector index.
// The retrieval core never inspects raw index metadata: every hit crossing
// this boundary is a typed record with a document id, the matched content,
// and a similarity score in [0,1].
package vector

import "context"

// Hit is a single nearest-neighbour result.
type Hit struct {
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Index performs nearest-neighbour search over embedded legal text. The
// index itself is built and maintained by an out-of-scope pipeline.
type Index interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error)
}
