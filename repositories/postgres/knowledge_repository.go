package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
)

// KnowledgeRepository implements the repositories.KnowledgeRepository interface
type KnowledgeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *DB, logger *zap.Logger) repositories.KnowledgeRepository {
	return &KnowledgeRepository{
		db:     db,
		logger: logger,
	}
}

const knowledgeColumns = `id, question, answer, category, source, source_url, embedding, embedding_model, active, created_at, updated_at`

// Create inserts a new entry and assigns its ID
func (r *KnowledgeRepository) Create(ctx context.Context, entry *models.QAEntry) error {
	query := `
		INSERT INTO knowledge_base (question, answer, category, source, source_url, embedding, embedding_model, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	embedding, err := embeddingParam(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	err = executor.QueryRowContext(ctx, query,
		entry.Question,
		entry.Answer,
		nullString(entry.Category),
		entry.Source,
		nullString(entry.SourceURL),
		embedding,
		nullString(entry.EmbeddingModel),
		entry.Active,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	r.logger.Debug("knowledge entry created", zap.Int64("id", entry.ID))
	return nil
}

// GetByID retrieves an entry by ID
func (r *KnowledgeRepository) GetByID(ctx context.Context, id int64) (*models.QAEntry, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	entry, err := scanEntry(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}
	return entry, nil
}

// GetByIDs retrieves entries by ID; missing IDs are omitted from the result
func (r *KnowledgeRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.QAEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base WHERE id = ANY($1)`
	return r.queryEntries(ctx, query, pq.Array(ids))
}

// List retrieves entries matching the filter, newest first
func (r *KnowledgeRepository) List(ctx context.Context, filter repositories.KnowledgeFilter) ([]*models.QAEntry, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base WHERE 1=1`
	var args []interface{}

	if filter.ActiveOnly {
		query += ` AND active = true`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(` AND source = $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	return r.queryEntries(ctx, query, args...)
}

// ListSearchable retrieves all active entries that carry an embedding
func (r *KnowledgeRepository) ListSearchable(ctx context.Context) ([]*models.QAEntry, error) {
	query := `
		SELECT ` + knowledgeColumns + `
		FROM knowledge_base
		WHERE active = true AND embedding IS NOT NULL
		ORDER BY id
	`
	return r.queryEntries(ctx, query)
}

// Update updates an entry in place
func (r *KnowledgeRepository) Update(ctx context.Context, entry *models.QAEntry) error {
	query := `
		UPDATE knowledge_base
		SET question = $2,
		    answer = $3,
		    category = $4,
		    source = $5,
		    source_url = $6,
		    embedding = $7,
		    embedding_model = $8,
		    active = $9,
		    updated_at = $10
		WHERE id = $1
	`

	embedding, err := embeddingParam(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		entry.ID,
		entry.Question,
		entry.Answer,
		nullString(entry.Category),
		entry.Source,
		nullString(entry.SourceURL),
		embedding,
		nullString(entry.EmbeddingModel),
		entry.Active,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update knowledge entry: %w", err)
	}

	return r.requireRow(result, entry.ID, "updated")
}

// SetActive flips the active flag without touching entry content
func (r *KnowledgeRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE knowledge_base SET active = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set knowledge entry active flag: %w", err)
	}

	return r.requireRow(result, id, "active flag set")
}

// Delete removes an entry permanently
func (r *KnowledgeRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM knowledge_base WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge entry: %w", err)
	}

	return r.requireRow(result, id, "deleted")
}

// Categories lists the distinct categories of active entries
func (r *KnowledgeRepository) Categories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category FROM knowledge_base
		WHERE active = true AND category IS NOT NULL AND category <> ''
		ORDER BY category
	`
	return r.queryStrings(ctx, query)
}

// Sources lists the distinct sources of active entries
func (r *KnowledgeRepository) Sources(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT source FROM knowledge_base
		WHERE active = true
		ORDER BY source
	`
	return r.queryStrings(ctx, query)
}

// Stats aggregates entry counts by status, category and source
func (r *KnowledgeRepository) Stats(ctx context.Context) (*models.KnowledgeStats, error) {
	executor := GetExecutor(ctx, r.db)
	stats := &models.KnowledgeStats{
		ByCategory: make(map[string]int64),
		BySource:   make(map[string]int64),
	}

	countQuery := `
		SELECT
			COUNT(*) FILTER (WHERE active),
			COUNT(*) FILTER (WHERE NOT active)
		FROM knowledge_base
	`
	if err := executor.QueryRowContext(ctx, countQuery).Scan(&stats.TotalActive, &stats.TotalInactive); err != nil {
		return nil, fmt.Errorf("failed to count knowledge entries: %w", err)
	}

	categoryQuery := `
		SELECT COALESCE(category, ''), COUNT(*)
		FROM knowledge_base
		WHERE active = true
		GROUP BY category
	`
	if err := r.queryCounts(ctx, categoryQuery, stats.ByCategory); err != nil {
		return nil, err
	}

	sourceQuery := `
		SELECT source, COUNT(*)
		FROM knowledge_base
		WHERE active = true
		GROUP BY source
	`
	if err := r.queryCounts(ctx, sourceQuery, stats.BySource); err != nil {
		return nil, err
	}

	return stats, nil
}

// queryEntries is a helper method to query multiple entries
func (r *KnowledgeRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*models.QAEntry, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QAEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge entry rows: %w", err)
	}

	return entries, nil
}

func (r *KnowledgeRepository) queryStrings(ctx context.Context, query string) ([]string, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge values: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating value rows: %w", err)
	}
	return values, nil
}

func (r *KnowledgeRepository) queryCounts(ctx context.Context, query string, dest map[string]int64) error {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query knowledge counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan count row: %w", err)
		}
		dest[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating count rows: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) requireRow(result sql.Result, id int64, action string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return services.ErrEntryNotFound
	}
	r.logger.Debug("knowledge entry "+action, zap.Int64("id", id))
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.QAEntry, error) {
	entry := &models.QAEntry{}
	var category, sourceURL, embeddingModel sql.NullString
	var embedding []byte

	err := row.Scan(
		&entry.ID,
		&entry.Question,
		&entry.Answer,
		&category,
		&entry.Source,
		&sourceURL,
		&embedding,
		&embeddingModel,
		&entry.Active,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Category = category.String
	entry.SourceURL = sourceURL.String
	entry.EmbeddingModel = embeddingModel.String

	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &entry.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
	}

	return entry, nil
}

// embeddingParam encodes an embedding for the JSONB column; nil maps to NULL.
func embeddingParam(embedding []float32) (interface{}, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
