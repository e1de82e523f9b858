// Package index implements the in-memory vector index backing knowledge
// base retrieval. Exact cosine-similarity scan; at the low thousands of
// entries this system holds, an approximate index buys nothing.
package index

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Entry pairs a knowledge base entry id with its embedding vector.
type Entry struct {
	ID     int64
	Vector []float32
}

// Match is a single search hit: an entry id and its similarity to the query.
type Match struct {
	ID    int64
	Score float64
}

// Stats describes the current state of the index.
type Stats struct {
	Size      int `json:"size"`
	Dimension int `json:"dimension"`
}

// snapshot is an immutable point-in-time view of the index. Searches scan
// a snapshot without holding any lock; mutations build a replacement and
// swap the pointer, so an in-flight search always sees either the pre- or
// post-mutation state, never a mixture.
type snapshot struct {
	ids     []int64
	vectors [][]float32 // L2-normalized, parallel to ids
}

// Index is an in-memory cosine-similarity index over entry embeddings.
// Safe for concurrent use: reads are lock-free against the current
// snapshot, writes are serialized by a mutex.
type Index struct {
	mu     sync.Mutex // serializes mutations
	cur    *snapshot  // read via loadSnapshot, replaced atomically under mu
	curMu  sync.RWMutex
	logger *zap.Logger
}

// New creates an empty Index.
func New(logger *zap.Logger) *Index {
	return &Index{
		cur:    &snapshot{},
		logger: logger,
	}
}

func (ix *Index) loadSnapshot() *snapshot {
	ix.curMu.RLock()
	s := ix.cur
	ix.curMu.RUnlock()
	return s
}

func (ix *Index) storeSnapshot(s *snapshot) {
	ix.curMu.Lock()
	ix.cur = s
	ix.curMu.Unlock()
}

// Add inserts the vector for id, replacing any existing vector for the
// same id. Zero-length and zero-norm vectors are ignored.
func (ix *Index) Add(id int64, vector []float32) {
	normalized, ok := normalize(vector)
	if !ok {
		ix.logger.Warn("ignoring unusable embedding vector", zap.Int64("entry_id", id))
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	old := ix.loadSnapshot()
	next := &snapshot{
		ids:     make([]int64, 0, len(old.ids)+1),
		vectors: make([][]float32, 0, len(old.ids)+1),
	}
	for i, existing := range old.ids {
		if existing == id {
			continue
		}
		next.ids = append(next.ids, existing)
		next.vectors = append(next.vectors, old.vectors[i])
	}
	next.ids = append(next.ids, id)
	next.vectors = append(next.vectors, normalized)

	ix.storeSnapshot(next)
	ix.logger.Debug("entry added to index", zap.Int64("entry_id", id), zap.Int("size", len(next.ids)))
}

// Remove deletes id from the index. No-op when id is absent.
func (ix *Index) Remove(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	old := ix.loadSnapshot()
	pos := -1
	for i, existing := range old.ids {
		if existing == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}

	next := &snapshot{
		ids:     make([]int64, 0, len(old.ids)-1),
		vectors: make([][]float32, 0, len(old.ids)-1),
	}
	next.ids = append(next.ids, old.ids[:pos]...)
	next.ids = append(next.ids, old.ids[pos+1:]...)
	next.vectors = append(next.vectors, old.vectors[:pos]...)
	next.vectors = append(next.vectors, old.vectors[pos+1:]...)

	ix.storeSnapshot(next)
	ix.logger.Debug("entry removed from index", zap.Int64("entry_id", id), zap.Int("size", len(next.ids)))
}

// Rebuild atomically replaces the entire index contents with the given
// entries. A search running concurrently completes against either the old
// or the new snapshot.
func (ix *Index) Rebuild(entries []Entry) {
	next := &snapshot{
		ids:     make([]int64, 0, len(entries)),
		vectors: make([][]float32, 0, len(entries)),
	}
	for _, e := range entries {
		normalized, ok := normalize(e.Vector)
		if !ok {
			ix.logger.Warn("skipping entry with unusable embedding", zap.Int64("entry_id", e.ID))
			continue
		}
		next.ids = append(next.ids, e.ID)
		next.vectors = append(next.vectors, normalized)
	}

	ix.mu.Lock()
	ix.storeSnapshot(next)
	ix.mu.Unlock()

	ix.logger.Info("index rebuilt", zap.Int("size", len(next.ids)))
}

// Search returns up to k entries whose cosine similarity to query is at
// least threshold, ordered by descending score with ties broken by
// ascending id. An empty result is a normal outcome, not an error.
func (ix *Index) Search(query []float32, k int, threshold float64) []Match {
	if k <= 0 {
		return nil
	}
	normalized, ok := normalize(query)
	if !ok {
		return nil
	}

	snap := ix.loadSnapshot()

	matches := make([]Match, 0, k)
	for i, vec := range snap.vectors {
		if len(vec) != len(normalized) {
			// Dimension changed across an embedding model swap; stale
			// vectors are unmatchable until the next rebuild.
			continue
		}
		score := dot(normalized, vec)
		if score < threshold {
			continue
		}
		matches = append(matches, Match{ID: snap.ids[i], Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Len returns the number of entries currently indexed.
func (ix *Index) Len() int {
	return len(ix.loadSnapshot().ids)
}

// Stats returns the current index statistics.
func (ix *Index) Stats() Stats {
	snap := ix.loadSnapshot()
	s := Stats{Size: len(snap.ids)}
	if len(snap.vectors) > 0 {
		s.Dimension = len(snap.vectors[0])
	}
	return s
}

// normalize returns an L2-normalized copy of v, or ok=false for vectors
// that cannot participate in cosine similarity.
func normalize(v []float32) ([]float32, bool) {
	if len(v) == 0 {
		return nil, false
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

// dot computes the inner product of two normalized vectors, clamped to
// [0, 1] so callers can treat it as a similarity score.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	if sum < 0 {
		return 0
	}
	if sum > 1 {
		return 1
	}
	return sum
}
