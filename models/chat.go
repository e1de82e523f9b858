package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatSession represents a single conversation with the assistant.
// Sessions are never hard-deleted; ending a session only marks it inactive.
type ChatSession struct {
	ID           uuid.UUID  `json:"session_id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Active       bool       `json:"active" db:"active"`
	MessageCount int        `json:"message_count" db:"message_count"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// TableName returns the table name for the ChatSession model
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// NewChatSession creates a new ChatSession instance. An empty userID is
// recorded as anonymous.
func NewChatSession(userID string) *ChatSession {
	if userID == "" {
		userID = "anonymous"
	}
	return &ChatSession{
		ID:        uuid.New(),
		UserID:    userID,
		Active:    true,
		StartedAt: time.Now().UTC(),
	}
}

// ChatMessage is one turn within a session. Assistant turns carry the
// sources and confidence that produced the answer.
type ChatMessage struct {
	ID             int64          `json:"id" db:"id"`
	SessionID      uuid.UUID      `json:"session_id" db:"session_id"`
	Role           MessageRole    `json:"role" db:"role" validate:"required,oneof=user assistant"`
	Content        string         `json:"content" db:"content" validate:"required"`
	Sources        []SearchResult `json:"sources,omitempty" db:"sources"`
	Confidence     *float64       `json:"confidence,omitempty" db:"confidence"`
	ResponseTimeMS *int64         `json:"response_time_ms,omitempty" db:"response_time_ms"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// NewChatMessage creates a new ChatMessage instance
func NewChatMessage(sessionID uuid.UUID, role MessageRole, content string) *ChatMessage {
	return &ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// SessionStats aggregates per-session analytics.
type SessionStats struct {
	SessionID         uuid.UUID  `json:"session_id"`
	UserID            string     `json:"user_id"`
	Active            bool       `json:"active"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	TotalMessages     int        `json:"total_messages"`
	UserMessages      int        `json:"user_messages"`
	AssistantMessages int        `json:"assistant_messages"`
	AvgConfidence     float64    `json:"avg_confidence"`
	AvgResponseTimeMS float64    `json:"avg_response_time_ms"`
}

// SearchLog records one vector search for diagnostics and analytics.
type SearchLog struct {
	ID           int64      `json:"id" db:"id"`
	SessionID    *uuid.UUID `json:"session_id,omitempty" db:"session_id"`
	Query        string     `json:"query" db:"query"`
	TopK         int        `json:"top_k" db:"top_k"`
	Scores       []float64  `json:"similarity_scores" db:"similarity_scores"`
	MatchedIDs   []int64    `json:"matched_entry_ids" db:"matched_entry_ids"`
	SearchTimeMS int64      `json:"search_time_ms" db:"search_time_ms"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the SearchLog model
func (SearchLog) TableName() string {
	return "search_logs"
}
