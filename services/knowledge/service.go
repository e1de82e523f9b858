// Package knowledge manages the curated question/answer entries that back
// retrieval. Writes go through here so the vector index can be kept in
// step via change listeners instead of full rebuilds.
package knowledge

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
)

// ChangeListener observes entry lifecycle events. Listeners are invoked
// synchronously after the store write succeeds.
type ChangeListener interface {
	// EntryUpserted is called after an entry is created or updated.
	EntryUpserted(entry *models.QAEntry)

	// EntryRemoved is called after an entry is deleted.
	EntryRemoved(id int64)
}

// Embedder produces entry embeddings. Results are returned in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// CreateInput holds the fields for a new entry.
type CreateInput struct {
	Question  string             `json:"question" validate:"required"`
	Answer    string             `json:"answer" validate:"required"`
	Category  string             `json:"category"`
	Source    models.EntrySource `json:"source"`
	SourceURL string             `json:"source_url"`
}

// UpdateInput holds the fields of an entry update. Nil fields are left
// unchanged.
type UpdateInput struct {
	Question  *string `json:"question"`
	Answer    *string `json:"answer"`
	Category  *string `json:"category"`
	SourceURL *string `json:"source_url"`
}

// Service manages knowledge base entries.
type Service struct {
	repo      repositories.KnowledgeRepository
	txManager repositories.TransactionManager
	embedder  Embedder
	listeners []ChangeListener
	indexSize func() int
	logger    *zap.Logger
}

// NewService creates a knowledge service. txManager may be nil; batch
// creation then runs without transactional grouping.
func NewService(
	repo repositories.KnowledgeRepository,
	txManager repositories.TransactionManager,
	embedder Embedder,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		embedder:  embedder,
		logger:    logger,
	}
}

// AddListener registers a change listener. Not safe to call once the
// service is handling requests.
func (s *Service) AddListener(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// SetIndexSizeFunc wires the vector index size into Stats.
func (s *Service) SetIndexSizeFunc(fn func() int) {
	s.indexSize = fn
}

// Create validates, embeds and stores a new entry. When the embedding
// service is down the entry is stored anyway and stays out of search until
// it is re-embedded by the next update or rebuild.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.QAEntry, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	entry := models.NewQAEntry(
		strings.TrimSpace(input.Question),
		strings.TrimSpace(input.Answer),
		strings.TrimSpace(input.Category),
		input.Source,
	)
	entry.SourceURL = strings.TrimSpace(input.SourceURL)

	s.embedEntries(ctx, entry)

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, services.WrapInternal("failed to store knowledge entry", err)
	}

	s.notifyUpserted(entry)
	s.logger.Info("knowledge entry created",
		zap.Int64("id", entry.ID),
		zap.String("category", entry.Category),
		zap.Bool("searchable", entry.Searchable()))
	return entry, nil
}

// BatchCreate validates, embeds and stores several entries in one pass.
// The embedding call is batched and entries are stored in a single
// transaction; all entries are created or none are.
func (s *Service) BatchCreate(ctx context.Context, inputs []CreateInput) ([]*models.QAEntry, error) {
	if len(inputs) == 0 {
		return nil, services.ErrInvalidInput
	}

	entries := make([]*models.QAEntry, len(inputs))
	for i, input := range inputs {
		if err := validateInput(input); err != nil {
			return nil, err
		}
		entry := models.NewQAEntry(
			strings.TrimSpace(input.Question),
			strings.TrimSpace(input.Answer),
			strings.TrimSpace(input.Category),
			input.Source,
		)
		entry.SourceURL = strings.TrimSpace(input.SourceURL)
		entries[i] = entry
	}

	s.embedEntries(ctx, entries...)

	store := func(ctx context.Context) error {
		for _, entry := range entries {
			if err := s.repo.Create(ctx, entry); err != nil {
				return services.WrapInternal("failed to store knowledge entry", err)
			}
		}
		return nil
	}

	var err error
	if s.txManager != nil {
		err = s.txManager.InTransaction(ctx, store)
	} else {
		err = store(ctx)
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		s.notifyUpserted(entry)
	}
	s.logger.Info("knowledge entries batch created", zap.Int("count", len(entries)))
	return entries, nil
}

// Get retrieves an entry by ID.
func (s *Service) Get(ctx context.Context, id int64) (*models.QAEntry, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves entries matching the filter.
func (s *Service) List(ctx context.Context, filter repositories.KnowledgeFilter) ([]*models.QAEntry, error) {
	return s.repo.List(ctx, filter)
}

// Update applies a partial update. A change to the question, answer or
// category invalidates the stored embedding and triggers a re-embed.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*models.QAEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if input.Question != nil {
		q := strings.TrimSpace(*input.Question)
		if q == "" {
			return nil, services.ErrEmptyQuestion
		}
		if q != entry.Question {
			entry.Question = q
			contentChanged = true
		}
	}
	if input.Answer != nil {
		a := strings.TrimSpace(*input.Answer)
		if a == "" {
			return nil, services.ErrEmptyAnswer
		}
		if a != entry.Answer {
			entry.Answer = a
			contentChanged = true
		}
	}
	if input.Category != nil {
		c := strings.TrimSpace(*input.Category)
		if c != entry.Category {
			entry.Category = c
			contentChanged = true
		}
	}
	if input.SourceURL != nil {
		entry.SourceURL = strings.TrimSpace(*input.SourceURL)
	}

	if contentChanged {
		entry.Invalidate()
		s.embedEntries(ctx, entry)
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.notifyUpserted(entry)
	s.logger.Info("knowledge entry updated",
		zap.Int64("id", entry.ID),
		zap.Bool("content_changed", contentChanged),
		zap.Bool("searchable", entry.Searchable()))
	return entry, nil
}

// SetActive activates or deactivates an entry. Deactivated entries stay in
// the store but leave the index.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*models.QAEntry, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifyUpserted(entry)
	s.logger.Info("knowledge entry active flag changed",
		zap.Int64("id", id),
		zap.Bool("active", active))
	return entry, nil
}

// Delete removes an entry permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	for _, l := range s.listeners {
		l.EntryRemoved(id)
	}
	s.logger.Info("knowledge entry deleted", zap.Int64("id", id))
	return nil
}

// Categories lists the distinct categories of active entries.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Sources lists the distinct sources of active entries.
func (s *Service) Sources(ctx context.Context) ([]string, error) {
	return s.repo.Sources(ctx)
}

// Stats aggregates knowledge base counts, including the live index size.
func (s *Service) Stats(ctx context.Context) (*models.KnowledgeStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if s.indexSize != nil {
		stats.IndexSize = s.indexSize()
	}
	return stats, nil
}

// embedEntries attaches embeddings to the given entries in one batched
// call. A failing embedding service degrades to storing the entries
// unembedded; they are excluded from search until re-embedded.
func (s *Service) embedEntries(ctx context.Context, entries ...*models.QAEntry) {
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.EmbeddingText()
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("embedding unavailable, storing entries unembedded",
			zap.Int("count", len(entries)),
			zap.Error(err))
		return
	}

	model := s.embedder.Model()
	for i, entry := range entries {
		entry.Embedding = vectors[i]
		entry.EmbeddingModel = model
	}
}

func (s *Service) notifyUpserted(entry *models.QAEntry) {
	for _, l := range s.listeners {
		l.EntryUpserted(entry)
	}
}

func validateInput(input CreateInput) error {
	if strings.TrimSpace(input.Question) == "" {
		return services.ErrEmptyQuestion
	}
	if strings.TrimSpace(input.Answer) == "" {
		return services.ErrEmptyAnswer
	}
	return nil
}
