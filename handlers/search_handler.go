package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/services/index"
	"github.com/brightsmile/dental-assistant/services/retrieval"
	"github.com/brightsmile/dental-assistant/utils"
	"go.uber.org/zap"
)

// SearchRequest is the body for POST /api/v1/search
type SearchRequest struct {
	Query     string   `json:"query" validate:"required"`
	TopK      int      `json:"top_k,omitempty" validate:"omitempty,gte=1,lte=50"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	Category  string   `json:"category,omitempty"`
}

// SearchResponse is the body returned by POST /api/v1/search
type SearchResponse struct {
	Results      []models.SearchResult `json:"results"`
	Count        int                   `json:"count"`
	Confidence   float64               `json:"confidence_score"`
	SearchTimeMS int64                 `json:"search_time_ms"`
}

// RebuildResponse is the body returned by POST /api/v1/index/rebuild
type RebuildResponse struct {
	IndexedEntries int `json:"indexed_entries"`
}

// SearchService defines the retrieval operations the handler needs
type SearchService interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) (*retrieval.Result, error)
	RecentSearches(ctx context.Context, limit int) ([]*models.SearchLog, error)
	RebuildIndex(ctx context.Context) (int, error)
	IndexStats() index.Stats
}

// SearchHandler handles direct retrieval HTTP requests. These bypass
// sessions and generation; they exist for diagnostics and authoring tools.
type SearchHandler struct {
	service   SearchService
	threshold float64
	logger    *zap.Logger
}

// NewSearchHandler creates a new SearchHandler. threshold is the default
// similarity cutoff applied when the request does not carry one.
func NewSearchHandler(service SearchService, threshold float64, logger *zap.Logger) *SearchHandler {
	if threshold <= 0 {
		threshold = retrieval.DefaultSearchThreshold
	}
	return &SearchHandler{
		service:   service,
		threshold: threshold,
		logger:    logger,
	}
}

// HandleSearch handles POST /api/v1/search
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	threshold := h.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := h.service.Retrieve(r.Context(), req.Query, retrieval.Options{
		TopK:      req.TopK,
		Threshold: threshold,
		Category:  req.Category,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, SearchResponse{
		Results:      result.Matches,
		Count:        len(result.Matches),
		Confidence:   result.Confidence,
		SearchTimeMS: result.SearchTimeMS,
	})
}

// HandleRecentSearches handles GET /api/v1/search/recent
func (h *SearchHandler) HandleRecentSearches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	logs, err := h.service.RecentSearches(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, logs)
}

// HandleRebuildIndex handles POST /api/v1/index/rebuild
// Rebuilding is idempotent and safe while queries are in flight.
func (h *SearchHandler) HandleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.RebuildIndex(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("vector index rebuilt", zap.Int("entries", count))
	_ = utils.WriteOK(w, RebuildResponse{IndexedEntries: count})
}

// HandleIndexStats handles GET /api/v1/index/stats
func (h *SearchHandler) HandleIndexStats(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.service.IndexStats())
}
