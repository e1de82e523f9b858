package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/brightsmile/dental-assistant/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// InTransaction executes a function within a transaction.
	// Commits if the function succeeds, rolls back on error. The function
	// must use the context it receives for all repository calls.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// KnowledgeFilter narrows List queries. Zero values mean no filter.
type KnowledgeFilter struct {
	Category   string
	Source     models.EntrySource
	ActiveOnly bool
	Limit      int
	Offset     int
}

// KnowledgeRepository handles knowledge base entry persistence
type KnowledgeRepository interface {
	// Create inserts a new entry and assigns its ID
	Create(ctx context.Context, entry *models.QAEntry) error

	// GetByID retrieves an entry by ID
	GetByID(ctx context.Context, id int64) (*models.QAEntry, error)

	// GetByIDs retrieves entries by ID; missing IDs are omitted from the result
	GetByIDs(ctx context.Context, ids []int64) ([]*models.QAEntry, error)

	// List retrieves entries matching the filter, newest first
	List(ctx context.Context, filter KnowledgeFilter) ([]*models.QAEntry, error)

	// ListSearchable retrieves all active entries that carry an embedding
	ListSearchable(ctx context.Context) ([]*models.QAEntry, error)

	// Update updates an entry in place
	Update(ctx context.Context, entry *models.QAEntry) error

	// SetActive flips the active flag without touching entry content
	SetActive(ctx context.Context, id int64, active bool) error

	// Delete removes an entry permanently
	Delete(ctx context.Context, id int64) error

	// Categories lists the distinct categories of active entries
	Categories(ctx context.Context) ([]string, error)

	// Sources lists the distinct sources of active entries
	Sources(ctx context.Context) ([]string, error)

	// Stats aggregates entry counts by status, category and source
	Stats(ctx context.Context) (*models.KnowledgeStats, error)
}

// SessionRepository handles chat session persistence
type SessionRepository interface {
	// Create inserts a new session
	Create(ctx context.Context, session *models.ChatSession) error

	// GetByID retrieves a session by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)

	// End marks a session inactive and records its end time
	End(ctx context.Context, session *models.ChatSession) error

	// IncrementMessageCount bumps the stored message counter
	IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error

	// ListByUser retrieves sessions for a user, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error)
}

// MessageRepository handles chat message persistence
type MessageRepository interface {
	// Create inserts a message and assigns its ID
	Create(ctx context.Context, msg *models.ChatMessage) error

	// ListBySession retrieves a session's messages in chronological order
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*models.ChatMessage, error)

	// SessionStats aggregates message analytics for a session
	SessionStats(ctx context.Context, sessionID uuid.UUID) (*models.SessionStats, error)
}

// SearchLogRepository handles search log persistence
type SearchLogRepository interface {
	// Create inserts a search log entry
	Create(ctx context.Context, log *models.SearchLog) error

	// ListRecent retrieves the most recent search logs
	ListRecent(ctx context.Context, limit int) ([]*models.SearchLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Knowledge  KnowledgeRepository
	Sessions   SessionRepository
	Messages   MessageRepository
	SearchLogs SearchLogRepository
}
