// Package handler exposes the retrieval and quality engines over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/quality"
	"github.com/defenda/legal-retrieval/internal/retrieval"
	"github.com/defenda/legal-retrieval/internal/retrieval/cache"
	"github.com/defenda/legal-retrieval/pkg/errors"
	"github.com/defenda/legal-retrieval/pkg/logger"
)

// Handler routes the HTTP API. Quality thresholds are mutable through the
// feedback endpoint, so reads and writes go through a mutex.
type Handler struct {
	engine     *retrieval.Engine
	cached     *cache.Cached
	quality    *quality.Engine
	maxResults int
	logger     *slog.Logger

	mu         sync.RWMutex
	thresholds quality.Thresholds
}

// New builds a Handler. cached may be nil when the cache layer is disabled;
// search then runs uncached and the cache endpoints report unavailability.
func New(engine *retrieval.Engine, cached *cache.Cached, qe *quality.Engine, maxResults int, th quality.Thresholds) *Handler {
	return &Handler{
		engine:     engine,
		cached:     cached,
		quality:    qe,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "http-handler"),
		thresholds: th,
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.handleSearch)
	mux.HandleFunc("GET /api/v1/stats", h.handleStats)
	mux.HandleFunc("POST /api/v1/quality/score", h.handleScore)
	mux.HandleFunc("POST /api/v1/quality/filter", h.handleFilter)
	mux.HandleFunc("POST /api/v1/quality/feedback", h.handleFeedback)
	mux.HandleFunc("GET /api/v1/cache/stats", h.handleCacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.handleInvalidate)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	qc, err := parseQueryContext(r, h.maxResults)
	if err != nil {
		writeError(w, err)
		return
	}

	var results []retrieval.Result
	if h.cached != nil {
		results, err = h.cached.Retrieve(r.Context(), qc)
	} else {
		results, err = h.engine.Retrieve(r.Context(), qc)
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("search failed", "query", qc.Query, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   qc.Query,
		"count":   len(results),
		"results": results,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type scoreRequest struct {
	Documents []legaldoc.Document `json:"documents"`
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "documents list is empty"))
		return
	}
	scored, err := h.quality.BatchScore(r.Context(), req.Documents)
	if err != nil {
		h.logger.Error("batch scoring failed", "documents", len(req.Documents), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scored": scored})
}

type filterRequest struct {
	Documents []legaldoc.Document `json:"documents"`
	Threshold float64             `json:"threshold"`
}

func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "documents list is empty"))
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		writeError(w, errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "threshold must be in [0,1]"))
		return
	}

	h.mu.RLock()
	th := h.thresholds
	h.mu.RUnlock()

	result, err := h.quality.FilterByQuality(r.Context(), req.Documents, req.Threshold, th)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	Feedback []legaldoc.Feedback `json:"feedback"`
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Feedback) == 0 {
		writeError(w, errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "feedback list is empty"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	updated, err := h.quality.UpdateFromFeedback(r.Context(), h.thresholds, req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	h.thresholds = updated
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cached == nil {
		writeError(w, errors.New(errors.ErrCacheUnavailable, http.StatusServiceUnavailable, "cache layer is disabled"))
		return
	}
	writeJSON(w, http.StatusOK, h.cached.CacheStats(r.Context()))
}

type invalidateRequest struct {
	Query string `json:"query"`
	Steps bool   `json:"steps"`
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cached == nil {
		writeError(w, errors.New(errors.ErrCacheUnavailable, http.StatusServiceUnavailable, "cache layer is disabled"))
		return
	}
	var req invalidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	removed := h.cached.InvalidateQuery(r.Context(), req.Query)
	if req.Steps {
		removed += h.cached.InvalidateSearchCache(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// parseQueryContext builds a retrieval.QueryContext from search query
// parameters, validating each one.
func parseQueryContext(r *http.Request, maxResults int) (retrieval.QueryContext, error) {
	q := r.URL.Query()
	qc := retrieval.QueryContext{Query: strings.TrimSpace(q.Get("q"))}
	if qc.Query == "" {
		return qc, errors.New(errors.ErrInvalidQuery, http.StatusBadRequest, "query parameter q is required")
	}

	for _, t := range splitList(q.Get("types")) {
		qc.DocumentTypes = append(qc.DocumentTypes, legaldoc.DocumentType(t))
	}
	qc.Jurisdictions = splitList(q.Get("jurisdictions"))
	qc.CaseOutcomes = splitList(q.Get("outcomes"))

	var err error
	if qc.DateFrom, err = parseDate(q.Get("from")); err != nil {
		return qc, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "invalid from date: %s", q.Get("from"))
	}
	if qc.DateTo, err = parseDate(q.Get("to")); err != nil {
		return qc, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "invalid to date: %s", q.Get("to"))
	}

	if v := q.Get("min_quality"); v != "" {
		mq, err := strconv.ParseFloat(v, 64)
		if err != nil || mq < 0 || mq > 1 {
			return qc, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "invalid min_quality: %s", v)
		}
		qc.MinQuality = mq
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return qc, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "invalid limit: %s", v)
		}
		if limit > maxResults {
			limit = maxResults
		}
		qc.MaxResults = limit
	}
	return qc, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.ErrInvalidInput
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
