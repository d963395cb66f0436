// Package memory provides an in-memory vector index using brute-force
// cosine similarity over L2-normalised vectors.
//
// Mutations build a fresh snapshot and swap it in atomically, so a
// search in flight sees either the pre- or post-mutation state, never a
// partial one. No lock is held while searching.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultScoreFloor excludes matches below this similarity even when k
// is not filled. Distinct from the orchestrator's confidence threshold.
const DefaultScoreFloor = 0.0

// Index is a copy-on-write brute-force vector index.
type Index struct {
	writeMu    sync.Mutex
	snap       atomic.Pointer[snapshot]
	scoreFloor float64
}

// snapshot is an immutable view of the index contents.
// entries preserve insertion order, which breaks score ties.
type snapshot struct {
	entries []domain.IndexEntry
	byID    map[string]int
}

// Option configures the index.
type Option func(*Index)

// WithScoreFloor sets the minimum similarity for search results.
func WithScoreFloor(floor float64) Option {
	return func(idx *Index) {
		idx.scoreFloor = floor
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	idx := &Index{scoreFloor: DefaultScoreFloor}
	for _, opt := range opts {
		opt(idx)
	}
	idx.snap.Store(&snapshot{byID: make(map[string]int)})
	return idx
}

// Add applies the batch as one atomic upsert. Entries with a known
// chunk ID replace the previous entry in place, keeping its insertion
// rank; new entries append.
func (idx *Index) Add(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()

	if dims := idx.dims(cur); dims > 0 {
		for i := range entries {
			if len(entries[i].Embedding) != dims {
				return fmt.Errorf("vector index: entry %s has %d dimensions, index has %d",
					entries[i].ChunkID, len(entries[i].Embedding), dims)
			}
		}
	}

	next := &snapshot{
		entries: make([]domain.IndexEntry, len(cur.entries), len(cur.entries)+len(entries)),
		byID:    make(map[string]int, len(cur.byID)+len(entries)),
	}
	copy(next.entries, cur.entries)
	for id, i := range cur.byID {
		next.byID[id] = i
	}

	for i := range entries {
		if at, ok := next.byID[entries[i].ChunkID]; ok {
			next.entries[at] = entries[i]
			continue
		}
		next.byID[entries[i].ChunkID] = len(next.entries)
		next.entries = append(next.entries, entries[i])
	}

	idx.snap.Store(next)
	return nil
}

// Search scores every entry against the query and returns up to k
// matches at or above the score floor, descending score, insertion
// order breaking ties.
func (idx *Index) Search(_ context.Context, query []float32, k int, filter driven.EntryFilter) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	snap := idx.snap.Load()
	if len(snap.entries) == 0 {
		return nil, nil
	}
	if dims := idx.dims(snap); len(query) != dims {
		return nil, fmt.Errorf("vector index: query has %d dimensions, index has %d", len(query), dims)
	}

	type scored struct {
		rank  int
		score float64
	}
	candidates := make([]scored, 0, len(snap.entries))
	for i := range snap.entries {
		if filter != nil && !filter(&snap.entries[i]) {
			continue
		}
		score := dot(query, snap.entries[i].Embedding)
		if score < idx.scoreFloor {
			continue
		}
		candidates = append(candidates, scored{rank: i, score: score})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].rank < candidates[b].rank
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	matches := make([]domain.Match, 0, k)
	for _, c := range candidates[:k] {
		e := &snap.entries[c.rank]
		matches = append(matches, domain.Match{
			ChunkID:    e.ChunkID,
			DocumentID: e.DocumentID,
			Filename:   e.Filename,
			Position:   e.Position,
			Content:    e.Content,
			Score:      c.score,
		})
	}
	return matches, nil
}

// RemoveDocument atomically drops all entries for the document and
// returns the number removed.
func (idx *Index) RemoveDocument(_ context.Context, documentID string) (int, error) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()

	next := &snapshot{
		entries: make([]domain.IndexEntry, 0, len(cur.entries)),
		byID:    make(map[string]int, len(cur.byID)),
	}
	removed := 0
	for i := range cur.entries {
		if cur.entries[i].DocumentID == documentID {
			removed++
			continue
		}
		next.byID[cur.entries[i].ChunkID] = len(next.entries)
		next.entries = append(next.entries, cur.entries[i])
	}

	if removed == 0 {
		return 0, nil
	}

	idx.snap.Store(next)
	return removed, nil
}

// Len returns the number of stored entries.
func (idx *Index) Len() int {
	return len(idx.snap.Load().entries)
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// dims returns the dimensionality of the stored vectors, 0 when empty.
func (idx *Index) dims(snap *snapshot) int {
	if len(snap.entries) == 0 {
		return 0
	}
	return len(snap.entries[0].Embedding)
}

func dot(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
