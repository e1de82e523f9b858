package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/services"
	"github.com/brightsmile/dental-assistant/services/chat"
)

// MockChatService is a mock implementation of ChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) CreateSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockChatService) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockChatService) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatSession), args.Error(1)
}

func (m *MockChatService) EndSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockChatService) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.ChatMessage, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatMessage), args.Error(1)
}

func (m *MockChatService) SessionStats(ctx context.Context, id uuid.UUID) (*models.SessionStats, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionStats), args.Error(1)
}

func (m *MockChatService) Respond(ctx context.Context, sessionID uuid.UUID, query string) (*chat.Response, error) {
	args := m.Called(ctx, sessionID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Response), args.Error(1)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleChat(t *testing.T) {
	logger := zap.NewNop()
	sessionID := uuid.New()

	t.Run("existing session", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		response := &chat.Response{
			SessionID:  sessionID,
			Answer:     "Brush twice a day with fluoride toothpaste.",
			Confidence: 0.85,
			MatchCount: 2,
		}
		mockSvc.On("Respond", mock.Anything, sessionID, "how often should I brush?").
			Return(response, nil)

		body := []byte(`{"query": "how often should I brush?", "session_id": "` + sessionID.String() + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleChat(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Brush twice a day")
		mockSvc.AssertExpectations(t)
	})

	t.Run("creates session when none supplied", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		session := models.NewChatSession("patient-7")
		mockSvc.On("CreateSession", mock.Anything, "patient-7").Return(session, nil)
		mockSvc.On("Respond", mock.Anything, session.ID, "do you take walk-ins?").
			Return(&chat.Response{SessionID: session.ID, Answer: "Yes."}, nil)

		body := []byte(`{"query": "do you take walk-ins?", "user_id": "patient-7"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleChat(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing query", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()

		handler.HandleChat(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "Respond")
	})

	t.Run("invalid session id", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		body := []byte(`{"query": "hello", "session_id": "not-a-uuid"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleChat(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("session not found", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		mockSvc.On("Respond", mock.Anything, sessionID, "hello").
			Return(nil, services.ErrSessionNotFound)

		body := []byte(`{"query": "hello", "session_id": "` + sessionID.String() + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleChat(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("generation failure surfaces as bad gateway", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		mockSvc.On("Respond", mock.Anything, sessionID, "hello").
			Return(nil, services.ErrEmbeddingUnavailable)

		body := []byte(`{"query": "hello", "session_id": "` + sessionID.String() + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleChat(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHandleCreateSession(t *testing.T) {
	logger := zap.NewNop()

	t.Run("with user", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		session := models.NewChatSession("patient-1")
		mockSvc.On("CreateSession", mock.Anything, "patient-1").Return(session, nil)

		body := []byte(`{"user_id": "patient-1"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleCreateSession(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), session.ID.String())
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty body defaults to anonymous", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		session := models.NewChatSession("")
		mockSvc.On("CreateSession", mock.Anything, "").Return(session, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions", nil)
		w := httptest.NewRecorder()

		handler.HandleCreateSession(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestHandleListSessions(t *testing.T) {
	logger := zap.NewNop()

	t.Run("by user with pagination", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		sessions := []*models.ChatSession{
			models.NewChatSession("patient-7"),
			models.NewChatSession("patient-7"),
		}
		mockSvc.On("ListSessions", mock.Anything, "patient-7", 10, 0).Return(sessions, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions?user_id=patient-7&limit=10", nil)
		w := httptest.NewRecorder()

		handler.HandleListSessions(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), sessions[0].ID.String())
		mockSvc.AssertExpectations(t)
	})

	t.Run("defaults applied", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		mockSvc.On("ListSessions", mock.Anything, "", 50, 0).
			Return([]*models.ChatSession{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil)
		w := httptest.NewRecorder()

		handler.HandleListSessions(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestHandleEndSession(t *testing.T) {
	logger := zap.NewNop()
	sessionID := uuid.New()

	t.Run("success", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		now := time.Now()
		session := &models.ChatSession{ID: sessionID, Active: false, EndedAt: &now}
		mockSvc.On("EndSession", mock.Anything, sessionID).Return(session, nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/sessions/"+sessionID.String(), nil)
		req = withURLParam(req, "id", sessionID.String())
		w := httptest.NewRecorder()

		handler.HandleEndSession(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("already ended", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		mockSvc.On("EndSession", mock.Anything, sessionID).Return(nil, services.ErrSessionEnded)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/sessions/"+sessionID.String(), nil)
		req = withURLParam(req, "id", sessionID.String())
		w := httptest.NewRecorder()

		handler.HandleEndSession(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/sessions/abc", nil)
		req = withURLParam(req, "id", "abc")
		w := httptest.NewRecorder()

		handler.HandleEndSession(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "EndSession")
	})
}

func TestHandleHistory(t *testing.T) {
	logger := zap.NewNop()
	sessionID := uuid.New()

	t.Run("with pagination", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		messages := []*models.ChatMessage{
			{ID: 1, SessionID: sessionID, Role: models.RoleUser, Content: "hi"},
			{ID: 2, SessionID: sessionID, Role: models.RoleAssistant, Content: "hello"},
		}
		mockSvc.On("History", mock.Anything, sessionID, 10, 5).Return(messages, nil)

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/chat/sessions/"+sessionID.String()+"/history?limit=10&offset=5", nil)
		req = withURLParam(req, "id", sessionID.String())
		w := httptest.NewRecorder()

		handler.HandleHistory(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "hello")
		mockSvc.AssertExpectations(t)
	})

	t.Run("defaults applied", func(t *testing.T) {
		mockSvc := new(MockChatService)
		handler := NewChatHandler(mockSvc, logger)

		mockSvc.On("History", mock.Anything, sessionID, 50, 0).
			Return([]*models.ChatMessage{}, nil)

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/chat/sessions/"+sessionID.String()+"/history", nil)
		req = withURLParam(req, "id", sessionID.String())
		w := httptest.NewRecorder()

		handler.HandleHistory(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestHandleSessionStats(t *testing.T) {
	logger := zap.NewNop()
	sessionID := uuid.New()

	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, logger)

	stats := &models.SessionStats{
		SessionID:     sessionID,
		TotalMessages: 4,
		UserMessages:  2,
		AvgConfidence: 0.82,
	}
	mockSvc.On("SessionStats", mock.Anything, sessionID).Return(stats, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/chat/sessions/"+sessionID.String()+"/stats", nil)
	req = withURLParam(req, "id", sessionID.String())
	w := httptest.NewRecorder()

	handler.HandleSessionStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0.82")
	mockSvc.AssertExpectations(t)
}
