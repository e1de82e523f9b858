package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
)

// MessageRepository implements the repositories.MessageRepository interface
type MessageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB, logger *zap.Logger) repositories.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a message and assigns its ID
func (r *MessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (session_id, role, content, sources, confidence, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	sources, err := sourcesParam(msg.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode message sources: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	err = executor.QueryRowContext(ctx, query,
		msg.SessionID,
		msg.Role,
		msg.Content,
		sources,
		msg.Confidence,
		msg.ResponseTimeMS,
		msg.CreatedAt,
	).Scan(&msg.ID)

	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}

	r.logger.Debug("chat message created",
		zap.Int64("id", msg.ID),
		zap.String("session_id", msg.SessionID.String()),
		zap.String("role", string(msg.Role)))
	return nil
}

// ListBySession retrieves a session's messages in chronological order
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, sources, confidence, response_time_ms, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	if limit <= 0 {
		limit = 200
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		var sources []byte
		var confidence sql.NullFloat64
		var responseTime sql.NullInt64

		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&sources,
			&confidence,
			&responseTime,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}

		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode message sources: %w", err)
			}
		}
		if confidence.Valid {
			msg.Confidence = &confidence.Float64
		}
		if responseTime.Valid {
			msg.ResponseTimeMS = &responseTime.Int64
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return messages, nil
}

// SessionStats aggregates message analytics for a session
func (r *MessageRepository) SessionStats(ctx context.Context, sessionID uuid.UUID) (*models.SessionStats, error) {
	query := `
		SELECT
			s.user_id,
			s.active,
			s.started_at,
			s.ended_at,
			COUNT(m.id),
			COUNT(m.id) FILTER (WHERE m.role = 'user'),
			COUNT(m.id) FILTER (WHERE m.role = 'assistant'),
			COALESCE(AVG(m.confidence), 0),
			COALESCE(AVG(m.response_time_ms), 0)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		WHERE s.id = $1
		GROUP BY s.id, s.user_id, s.active, s.started_at, s.ended_at
	`

	executor := GetExecutor(ctx, r.db)
	stats := &models.SessionStats{SessionID: sessionID}
	var endedAt sql.NullTime

	err := executor.QueryRowContext(ctx, query, sessionID).Scan(
		&stats.UserID,
		&stats.Active,
		&stats.StartedAt,
		&endedAt,
		&stats.TotalMessages,
		&stats.UserMessages,
		&stats.AssistantMessages,
		&stats.AvgConfidence,
		&stats.AvgResponseTimeMS,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session stats: %w", err)
	}

	if endedAt.Valid {
		stats.EndedAt = &endedAt.Time
	}
	return stats, nil
}

// sourcesParam encodes message sources for the JSONB column; empty maps to NULL.
func sourcesParam(sources []models.SearchResult) (interface{}, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}
	return data, nil
}
