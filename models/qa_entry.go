package models

import (
	"time"
)

// EntrySource identifies where a knowledge base entry came from
type EntrySource string

const (
	SourceUserDefined  EntrySource = "user_defined"
	SourceDentalCorpus EntrySource = "dental_corpus"
	SourceExternal     EntrySource = "external"
)

// QAEntry represents a curated question/answer pair in the knowledge base.
// An entry is only eligible for vector search when it is active and carries
// an embedding (see Searchable).
type QAEntry struct {
	ID             int64       `json:"id" db:"id"`
	Question       string      `json:"question" db:"question" validate:"required"`
	Answer         string      `json:"answer" db:"answer" validate:"required"`
	Category       string      `json:"category,omitempty" db:"category"`
	Source         EntrySource `json:"source" db:"source" validate:"required"`
	SourceURL      string      `json:"source_url,omitempty" db:"source_url"`
	Embedding      []float32   `json:"-" db:"embedding"`
	EmbeddingModel string      `json:"embedding_model,omitempty" db:"embedding_model"`
	Active         bool        `json:"active" db:"active"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the QAEntry model
func (QAEntry) TableName() string {
	return "knowledge_base"
}

// NewQAEntry creates a new QAEntry instance. The embedding is attached
// separately, once the embedding client has produced it.
func NewQAEntry(question, answer, category string, source EntrySource) *QAEntry {
	now := time.Now().UTC()
	if source == "" {
		source = SourceUserDefined
	}
	return &QAEntry{
		Question:  question,
		Answer:    answer,
		Category:  category,
		Source:    source,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasEmbedding reports whether the entry carries an embedding vector.
func (e *QAEntry) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// Searchable reports whether the entry may appear in search results.
// Inactive or unembedded entries are retained in the store but excluded
// from the vector index.
func (e *QAEntry) Searchable() bool {
	return e.Active && e.HasEmbedding()
}

// EmbeddingText returns the text that is embedded for this entry: the
// question and answer combined, so that both phrasings contribute to
// similarity matching.
func (e *QAEntry) EmbeddingText() string {
	return "Q: " + e.Question + "\nA: " + e.Answer
}

// Invalidate clears the cached embedding. Called when question, answer or
// category change; the entry is unsearchable until re-embedded.
func (e *QAEntry) Invalidate() {
	e.Embedding = nil
	e.EmbeddingModel = ""
	e.UpdatedAt = time.Now().UTC()
}

// SearchResult is the per-query projection of a matched entry. It is
// ephemeral and never persisted.
type SearchResult struct {
	EntryID    int64       `json:"entry_id"`
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Category   string      `json:"category,omitempty"`
	Source     EntrySource `json:"source"`
	SourceURL  string      `json:"source_url,omitempty"`
	Similarity float64     `json:"similarity_score"`
}

// KnowledgeStats summarizes the state of the knowledge base.
type KnowledgeStats struct {
	TotalActive   int64            `json:"total_active"`
	TotalInactive int64            `json:"total_inactive"`
	ByCategory    map[string]int64 `json:"by_category"`
	BySource      map[string]int64 `json:"by_source"`
	IndexSize     int              `json:"index_size"`
}
