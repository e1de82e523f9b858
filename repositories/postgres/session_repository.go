package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
)

// SessionRepository implements the repositories.SessionRepository interface
type SessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB, logger *zap.Logger) repositories.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (id, user_id, active, message_count, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Active,
		session.MessageCount,
		session.StartedAt,
		session.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}

	r.logger.Debug("chat session created", zap.String("session_id", session.ID.String()))
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	query := `
		SELECT id, user_id, active, message_count, started_at, ended_at
		FROM chat_sessions
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	session := &models.ChatSession{}
	var endedAt sql.NullTime

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Active,
		&session.MessageCount,
		&session.StartedAt,
		&endedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return session, nil
}

// End marks a session inactive and records its end time
func (r *SessionRepository) End(ctx context.Context, session *models.ChatSession) error {
	query := `
		UPDATE chat_sessions
		SET active = false, ended_at = $2
		WHERE id = $1 AND active = true
	`

	endedAt := time.Now().UTC()

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, session.ID, endedAt)
	if err != nil {
		return fmt.Errorf("failed to end chat session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return services.ErrSessionEnded
	}

	session.Active = false
	session.EndedAt = &endedAt

	r.logger.Debug("chat session ended", zap.String("session_id", session.ID.String()))
	return nil
}

// IncrementMessageCount bumps the stored message counter
func (r *SessionRepository) IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error {
	query := `UPDATE chat_sessions SET message_count = message_count + $2 WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update message count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return services.ErrSessionNotFound
	}
	return nil
}

// ListByUser retrieves sessions for a user, newest first
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error) {
	query := `
		SELECT id, user_id, active, message_count, started_at, ended_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	if limit <= 0 {
		limit = 50
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		session := &models.ChatSession{}
		var endedAt sql.NullTime
		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Active,
			&session.MessageCount,
			&session.StartedAt,
			&endedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		if endedAt.Valid {
			session.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat session rows: %w", err)
	}
	return sessions, nil
}
