package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/defenda/legal-retrieval/pkg/errors"
)

// HTTPIndex is an Index backed by the embeddings sidecar's search endpoint.
type HTTPIndex struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPIndex creates an HTTPIndex. timeout bounds each search round trip.
func NewHTTPIndex(baseURL string, timeout time.Duration) (*HTTPIndex, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: no index URL configured", errors.ErrVectorIndex)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPIndex{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "vector-index"),
	}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Hits []Hit `json:"hits"`
}

// SimilaritySearch posts the query to the sidecar and decodes the typed
// hits.
func (i *HTTPIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error) {
	body, err := json.Marshal(searchRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/api/v1/similarity", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrVectorIndex, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: index returned status %d", errors.ErrVectorIndex, resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	i.logger.Debug("similarity search", "k", k, "hits", len(decoded.Hits))
	return decoded.Hits, nil
}
