package driven

import (
	"context"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// VectorIndex stores chunk vectors and answers nearest-neighbour
// searches by cosine similarity (normalised dot product).
//
// The index is the pipeline's one shared mutable resource. Mutations
// must be atomic with respect to concurrent searches: a search in
// flight sees either all of a document's entries or none of them.
type VectorIndex interface {
	// Add inserts entries. Re-adding an entry with an existing chunk ID
	// replaces it (idempotent upsert). The batch is applied atomically.
	Add(ctx context.Context, entries []domain.IndexEntry) error

	// Search returns up to k nearest entries, descending score, ties
	// broken by insertion order. Entries scoring below the index's
	// configured floor are excluded even if k is not filled. A non-nil
	// filter restricts results to entries it accepts.
	Search(ctx context.Context, query []float32, k int, filter EntryFilter) ([]domain.Match, error)

	// RemoveDocument removes all entries for a document atomically and
	// returns the number removed.
	RemoveDocument(ctx context.Context, documentID string) (int, error)

	// Len returns the number of stored entries.
	Len() int

	// Close releases resources.
	Close() error
}

// EntryFilter is a predicate over index entries, used to exclude
// documents (deleted, access-restricted) from a search.
type EntryFilter func(entry *domain.IndexEntry) bool
