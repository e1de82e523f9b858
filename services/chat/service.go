// Package chat manages assistant conversations: sessions, message
// persistence and response assembly on top of retrieval and generation.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
	"github.com/brightsmile/dental-assistant/services/retrieval"
)

// Retriever finds knowledge base context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) (*retrieval.Result, error)
}

// Generator produces the assistant's answer text.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tunes response assembly.
type Options struct {
	TopK      int
	Threshold float64
}

// Response is one assembled assistant answer.
type Response struct {
	SessionID      uuid.UUID             `json:"session_id"`
	Answer         string                `json:"response"`
	Sources        []models.SearchResult `json:"sources"`
	Confidence     float64               `json:"confidence_score"`
	ResponseTimeMS int64                 `json:"response_time_ms"`
	MatchCount     int                   `json:"search_results_count"`
	Degraded       bool                  `json:"degraded,omitempty"`
}

// Service runs assistant conversations.
type Service struct {
	sessions  repositories.SessionRepository
	messages  repositories.MessageRepository
	retriever Retriever
	generator Generator
	topK      int
	threshold float64
	logger    *zap.Logger
}

// NewService creates a chat service.
func NewService(
	sessions repositories.SessionRepository,
	messages repositories.MessageRepository,
	retriever Retriever,
	generator Generator,
	opts Options,
	logger *zap.Logger,
) *Service {
	topK := opts.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = retrieval.DefaultChatThreshold
	}
	return &Service{
		sessions:  sessions,
		messages:  messages,
		retriever: retriever,
		generator: generator,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// CreateSession starts a new conversation. An empty userID is recorded as
// anonymous.
func (s *Service) CreateSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	session := models.NewChatSession(strings.TrimSpace(userID))
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, services.WrapInternal("failed to create chat session", err)
	}

	s.logger.Info("chat session created",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", session.UserID))
	return session, nil
}

// GetSession retrieves a session by ID.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	return s.sessions.GetByID(ctx, id)
}

// EndSession marks a session inactive. Ending an already-ended session is
// a conflict; the session record itself is never deleted.
func (s *Service) EndSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.End(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("chat session ended", zap.String("session_id", id.String()))
	return session, nil
}

// ListSessions returns a user's sessions, newest first. An empty userID
// lists anonymous sessions, matching how CreateSession records them.
func (s *Service) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list chat sessions", err)
	}
	return sessions, nil
}

// History returns a session's messages in chronological order.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.ChatMessage, error) {
	if _, err := s.sessions.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, id, limit, offset)
}

// SessionStats aggregates analytics for a session.
func (s *Service) SessionStats(ctx context.Context, id uuid.UUID) (*models.SessionStats, error) {
	return s.messages.SessionStats(ctx, id)
}

// Respond processes one user turn: persist it, retrieve context, generate
// an answer and persist the assistant turn. Retrieval and generation
// failures degrade the answer rather than failing the turn; the only hard
// errors are an invalid query, a missing or ended session, or a failing
// store.
func (s *Service) Respond(ctx context.Context, sessionID uuid.UUID, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.ErrEmptyQuery
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, services.ErrSessionEnded
	}

	start := time.Now()

	userMsg := models.NewChatMessage(sessionID, models.RoleUser, query)
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, services.WrapInternal("failed to store user message", err)
	}

	matches, confidence := s.retrieveContext(ctx, sessionID, query)
	answer, degraded := s.generateAnswer(ctx, query, matches)
	if degraded {
		confidence = 0
	}

	responseTime := time.Since(start).Milliseconds()

	// The caller is gone; leave the turn half-recorded rather than
	// persisting an answer nobody received.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	assistantMsg := models.NewChatMessage(sessionID, models.RoleAssistant, answer)
	assistantMsg.Sources = matches
	assistantMsg.Confidence = &confidence
	assistantMsg.ResponseTimeMS = &responseTime
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return nil, services.WrapInternal("failed to store assistant message", err)
	}

	if err := s.sessions.IncrementMessageCount(ctx, sessionID, 2); err != nil {
		s.logger.Warn("failed to update session message count",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}

	s.logger.Info("chat turn completed",
		zap.String("session_id", sessionID.String()),
		zap.Int("matches", len(matches)),
		zap.Float64("confidence", confidence),
		zap.Int64("response_time_ms", responseTime),
		zap.Bool("degraded", degraded))

	return &Response{
		SessionID:      sessionID,
		Answer:         answer,
		Sources:        matches,
		Confidence:     confidence,
		ResponseTimeMS: responseTime,
		MatchCount:     len(matches),
		Degraded:       degraded,
	}, nil
}

// retrieveContext fetches knowledge base matches for the query. An
// unreachable embedding service degrades to answering without context.
func (s *Service) retrieveContext(ctx context.Context, sessionID uuid.UUID, query string) ([]models.SearchResult, float64) {
	result, err := s.retriever.Retrieve(ctx, query, retrieval.Options{
		TopK:      s.topK,
		Threshold: s.threshold,
		SessionID: &sessionID,
	})
	if err != nil {
		s.logger.Warn("retrieval unavailable, answering without context",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return nil, 0
	}
	return result.Matches, result.Confidence
}

// generateAnswer calls the generator, falling back to a static apology when
// it fails. The second return reports whether the answer is degraded.
func (s *Service) generateAnswer(ctx context.Context, query string, matches []models.SearchResult) (string, bool) {
	answer, err := s.generator.Generate(ctx, systemPrompt, buildUserPrompt(query, matches))
	if err != nil {
		s.logger.Warn("generation failed, using fallback response", zap.Error(err))
		return fallbackResponse, true
	}
	return answer, false
}
