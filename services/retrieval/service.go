// Package retrieval orchestrates knowledge base search: it embeds the
// query, scans the vector index and hydrates matches from the store.
package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/models"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
	"github.com/brightsmile/dental-assistant/services/index"

	"github.com/google/uuid"
)

const (
	// DefaultTopK is the number of matches returned when the caller does
	// not ask for a specific count.
	DefaultTopK = 5

	// DefaultSearchThreshold is the minimum similarity for direct search.
	DefaultSearchThreshold = 0.7

	// DefaultChatThreshold is the minimum similarity for chat context,
	// lower than search so the assistant sees weaker but usable matches.
	DefaultChatThreshold = 0.5
)

// Embedder produces the query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes a single retrieval.
type Options struct {
	TopK      int
	Threshold float64
	Category  string     // when set, only entries in this category are returned
	SessionID *uuid.UUID // attributed in the search log when set
}

// Result is the outcome of one retrieval.
type Result struct {
	Matches      []models.SearchResult
	Confidence   float64
	SearchTimeMS int64
}

// Service performs vector retrieval over the knowledge base. It also
// listens for knowledge base changes to keep the index current.
type Service struct {
	embedder   Embedder
	index      *index.Index
	knowledge  repositories.KnowledgeRepository
	searchLogs repositories.SearchLogRepository
	dedupe     bool
	logger     *zap.Logger
}

// NewService creates a retrieval service. searchLogs may be nil to disable
// search logging. When dedupe is enabled, matches carrying an identical
// answer are collapsed into the highest-scoring one.
func NewService(
	embedder Embedder,
	ix *index.Index,
	knowledge repositories.KnowledgeRepository,
	searchLogs repositories.SearchLogRepository,
	dedupe bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		embedder:   embedder,
		index:      ix,
		knowledge:  knowledge,
		searchLogs: searchLogs,
		dedupe:     dedupe,
		logger:     logger,
	}
}

// Retrieve finds the knowledge base entries most similar to query.
// An empty match list is a normal outcome; the only errors are an invalid
// query, an unreachable embedding service, or a failing store.
func (s *Service) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.ErrEmptyQuery
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	// Over-fetch so category filtering and dedupe can drop matches
	// without starving the caller.
	fetch := topK
	if opts.Category != "" || s.dedupe {
		fetch = topK * 3
	}
	matches := s.index.Search(vector, fetch, opts.Threshold)
	searchTime := time.Since(start).Milliseconds()

	results, err := s.hydrate(ctx, matches, opts.Category)
	if err != nil {
		return nil, err
	}
	if s.dedupe {
		results = dedupeByAnswer(results)
	}
	if len(results) > topK {
		results = results[:topK]
	}

	s.logSearch(ctx, query, topK, opts.SessionID, results, searchTime)

	return &Result{
		Matches:      results,
		Confidence:   Confidence(results),
		SearchTimeMS: searchTime,
	}, nil
}

// hydrate turns index matches into full search results. Entries deleted or
// deactivated since the match was scored are dropped silently.
func (s *Service) hydrate(ctx context.Context, matches []index.Match, category string) ([]models.SearchResult, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	entries, err := s.knowledge.GetByIDs(ctx, ids)
	if err != nil {
		return nil, services.WrapInternal("failed to load matched entries", err)
	}
	byID := make(map[int64]*models.QAEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		entry, ok := byID[m.ID]
		if !ok || !entry.Active {
			continue
		}
		if category != "" && entry.Category != category {
			continue
		}
		results = append(results, models.SearchResult{
			EntryID:    entry.ID,
			Question:   entry.Question,
			Answer:     entry.Answer,
			Category:   entry.Category,
			Source:     entry.Source,
			SourceURL:  entry.SourceURL,
			Similarity: m.Score,
		})
	}
	return results, nil
}

// logSearch records the search best-effort; a failing log never fails the
// retrieval itself.
func (s *Service) logSearch(ctx context.Context, query string, topK int, sessionID *uuid.UUID, results []models.SearchResult, searchTime int64) {
	if s.searchLogs == nil {
		return
	}

	log := &models.SearchLog{
		SessionID:    sessionID,
		Query:        query,
		TopK:         topK,
		SearchTimeMS: searchTime,
		CreatedAt:    time.Now().UTC(),
	}
	for _, r := range results {
		log.Scores = append(log.Scores, r.Similarity)
		log.MatchedIDs = append(log.MatchedIDs, r.EntryID)
	}

	if err := s.searchLogs.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record search log", zap.Error(err))
	}
}

// RecentSearches returns the latest search log entries, newest first.
// Empty when search logging is disabled.
func (s *Service) RecentSearches(ctx context.Context, limit int) ([]*models.SearchLog, error) {
	if s.searchLogs == nil {
		return []*models.SearchLog{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	logs, err := s.searchLogs.ListRecent(ctx, limit)
	if err != nil {
		return nil, services.WrapInternal("failed to list recent searches", err)
	}
	return logs, nil
}

// RebuildIndex reloads every searchable entry from the store and swaps the
// index contents in one step. Safe to call at any time; concurrent searches
// see either the old or the new contents.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	entries, err := s.knowledge.ListSearchable(ctx)
	if err != nil {
		return 0, services.WrapInternal("failed to load searchable entries", err)
	}

	indexed := make([]index.Entry, 0, len(entries))
	for _, e := range entries {
		indexed = append(indexed, index.Entry{ID: e.ID, Vector: e.Embedding})
	}
	s.index.Rebuild(indexed)

	return s.index.Len(), nil
}

// IndexStats exposes the current vector index statistics.
func (s *Service) IndexStats() index.Stats {
	return s.index.Stats()
}

// EntryUpserted keeps the index in step with a created or updated entry.
// Unsearchable entries are removed rather than indexed.
func (s *Service) EntryUpserted(entry *models.QAEntry) {
	if entry.Searchable() {
		s.index.Add(entry.ID, entry.Embedding)
		return
	}
	s.index.Remove(entry.ID)
}

// EntryRemoved drops a deleted entry from the index.
func (s *Service) EntryRemoved(id int64) {
	s.index.Remove(id)
}

// Confidence scores how trustworthy a set of matches is: the top similarity
// scaled by how much corroboration the remaining matches provide. Zero when
// nothing matched; never exceeds the top similarity.
func Confidence(results []models.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	support := float64(len(results)) / 3.0
	if support > 1 {
		support = 1
	}
	return results[0].Similarity * (0.7 + 0.3*support)
}

// dedupeByAnswer collapses matches that share an identical answer, keeping
// the highest-scoring occurrence. Input order is preserved.
func dedupeByAnswer(results []models.SearchResult) []models.SearchResult {
	if len(results) < 2 {
		return results
	}
	seen := make(map[string]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		key := strings.TrimSpace(r.Answer)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
