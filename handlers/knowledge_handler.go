package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services/knowledge"
	"github.com/brightsmile/dental-assistant/utils"
	"go.uber.org/zap"
)

// BatchCreateRequest is the body for POST /api/v1/knowledge/batch
type BatchCreateRequest struct {
	Entries []knowledge.CreateInput `json:"entries" validate:"required,min=1,max=500"`
}

// SetActiveRequest is the body for PATCH /api/v1/knowledge/{id}/active
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// KnowledgeService defines the authoring operations the handler needs
type KnowledgeService interface {
	Create(ctx context.Context, input knowledge.CreateInput) (*models.QAEntry, error)
	BatchCreate(ctx context.Context, inputs []knowledge.CreateInput) ([]*models.QAEntry, error)
	Get(ctx context.Context, id int64) (*models.QAEntry, error)
	List(ctx context.Context, filter repositories.KnowledgeFilter) ([]*models.QAEntry, error)
	Update(ctx context.Context, id int64, input knowledge.UpdateInput) (*models.QAEntry, error)
	SetActive(ctx context.Context, id int64, active bool) (*models.QAEntry, error)
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]string, error)
	Sources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.KnowledgeStats, error)
}

// KnowledgeHandler handles knowledge base authoring HTTP requests
type KnowledgeHandler struct {
	service KnowledgeService
	logger  *zap.Logger
}

// NewKnowledgeHandler creates a new KnowledgeHandler
func NewKnowledgeHandler(service KnowledgeService, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/knowledge
func (h *KnowledgeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.KnowledgeFilter{
		Category:   q.Get("category"),
		Source:     models.EntrySource(q.Get("source")),
		ActiveOnly: q.Get("active_only") == "true",
		Limit:      queryInt(r, "limit", 100),
		Offset:     queryInt(r, "offset", 0),
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, entries)
}

// HandleCreate handles POST /api/v1/knowledge
func (h *KnowledgeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input knowledge.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	entry, err := h.service.Create(r.Context(), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("knowledge entry created",
		zap.Int64("id", entry.ID),
		zap.String("category", entry.Category),
		zap.Bool("embedded", entry.HasEmbedding()))

	_ = utils.WriteCreated(w, entry)
}

// HandleBatchCreate handles POST /api/v1/knowledge/batch
func (h *KnowledgeHandler) HandleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	entries, err := h.service.BatchCreate(r.Context(), req.Entries)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("knowledge entries batch created", zap.Int("count", len(entries)))
	_ = utils.WriteCreated(w, entries)
}

// HandleGet handles GET /api/v1/knowledge/{id}
func (h *KnowledgeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryIDParam(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, entry)
}

// HandleUpdate handles PUT /api/v1/knowledge/{id}
func (h *KnowledgeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryIDParam(w, r)
	if !ok {
		return
	}

	var input knowledge.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	entry, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, entry)
}

// HandleSetActive handles PATCH /api/v1/knowledge/{id}/active
func (h *KnowledgeHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryIDParam(w, r)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	entry, err := h.service.SetActive(r.Context(), id, req.Active)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, entry)
}

// HandleDelete handles DELETE /api/v1/knowledge/{id}
func (h *KnowledgeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleCategories handles GET /api/v1/knowledge/categories
func (h *KnowledgeHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, categories)
}

// HandleSources handles GET /api/v1/knowledge/sources
func (h *KnowledgeHandler) HandleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.Sources(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, sources)
}

// HandleStats handles GET /api/v1/knowledge/stats
func (h *KnowledgeHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, stats)
}

func (h *KnowledgeHandler) entryIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		_ = utils.WriteBadRequest(w, "Invalid entry ID format", nil)
		return 0, false
	}
	return id, true
}
