package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/services/chat"
	"github.com/brightsmile/dental-assistant/utils"
	"go.uber.org/zap"
)

// ChatRequest is the body for POST /api/v1/chat
type ChatRequest struct {
	Query     string `json:"query" validate:"required"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// CreateSessionRequest is the body for POST /api/v1/chat/sessions
type CreateSessionRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// ChatService defines the conversation operations the handler needs
type ChatService interface {
	CreateSession(ctx context.Context, userID string) (*models.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error)
	EndSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.ChatMessage, error)
	SessionStats(ctx context.Context, id uuid.UUID) (*models.SessionStats, error)
	Respond(ctx context.Context, sessionID uuid.UUID, query string) (*chat.Response, error)
}

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/v1/chat
// When no session_id is supplied a new session is created on the fly so a
// client can start talking with a single request.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var sessionID uuid.UUID
	if req.SessionID != "" {
		parsed, err := utils.ParseUUID(req.SessionID)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid session_id format", nil)
			return
		}
		sessionID = parsed
	} else {
		session, err := h.service.CreateSession(ctx, req.UserID)
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
		sessionID = session.ID
	}

	response, err := h.service.Respond(ctx, sessionID, req.Query)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("chat response assembled",
		zap.String("session_id", sessionID.String()),
		zap.Int("sources", response.MatchCount),
		zap.Bool("degraded", response.Degraded))

	_ = utils.WriteOK(w, response)
}

// HandleCreateSession handles POST /api/v1/chat/sessions
func (h *ChatHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}
	}

	session, err := h.service.CreateSession(r.Context(), req.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, session)
}

// HandleListSessions handles GET /api/v1/chat/sessions
func (h *ChatHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.service.ListSessions(r.Context(), userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, sessions)
}

// HandleGetSession handles GET /api/v1/chat/sessions/{id}
func (h *ChatHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, session)
}

// HandleEndSession handles DELETE /api/v1/chat/sessions/{id}
func (h *ChatHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.service.EndSession(r.Context(), sessionID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, session)
}

// HandleHistory handles GET /api/v1/chat/sessions/{id}/history
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	messages, err := h.service.History(r.Context(), sessionID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, messages)
}

// HandleSessionStats handles GET /api/v1/chat/sessions/{id}/stats
func (h *ChatHandler) HandleSessionStats(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	stats, err := h.service.SessionStats(r.Context(), sessionID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, stats)
}

func (h *ChatHandler) sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid session ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
