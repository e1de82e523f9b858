package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
)

// SearchLogRepository implements the repositories.SearchLogRepository interface
type SearchLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSearchLogRepository creates a new search log repository
func NewSearchLogRepository(db *DB, logger *zap.Logger) repositories.SearchLogRepository {
	return &SearchLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a search log entry
func (r *SearchLogRepository) Create(ctx context.Context, log *models.SearchLog) error {
	query := `
		INSERT INTO search_logs (session_id, query, top_k, similarity_scores, matched_entry_ids, search_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	scores, err := jsonParam(log.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode similarity scores: %w", err)
	}
	matched, err := jsonParam(log.MatchedIDs)
	if err != nil {
		return fmt.Errorf("failed to encode matched ids: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	err = executor.QueryRowContext(ctx, query,
		log.SessionID,
		log.Query,
		log.TopK,
		scores,
		matched,
		log.SearchTimeMS,
		log.CreatedAt,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to create search log: %w", err)
	}
	return nil
}

// ListRecent retrieves the most recent search logs
func (r *SearchLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.SearchLog, error) {
	query := `
		SELECT id, session_id, query, top_k, similarity_scores, matched_entry_ids, search_time_ms, created_at
		FROM search_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	if limit <= 0 {
		limit = 100
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SearchLog
	for rows.Next() {
		log := &models.SearchLog{}
		var sessionID uuid.NullUUID
		var scores, matched []byte

		err := rows.Scan(
			&log.ID,
			&sessionID,
			&log.Query,
			&log.TopK,
			&scores,
			&matched,
			&log.SearchTimeMS,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search log: %w", err)
		}

		if sessionID.Valid {
			log.SessionID = &sessionID.UUID
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &log.Scores); err != nil {
				return nil, fmt.Errorf("failed to decode similarity scores: %w", err)
			}
		}
		if len(matched) > 0 {
			if err := json.Unmarshal(matched, &log.MatchedIDs); err != nil {
				return nil, fmt.Errorf("failed to decode matched ids: %w", err)
			}
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search log rows: %w", err)
	}
	return logs, nil
}

// jsonParam encodes a slice for a JSONB column; empty maps to NULL.
func jsonParam(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case []float64:
		if len(s) == 0 {
			return nil, nil
		}
	case []int64:
		if len(s) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
