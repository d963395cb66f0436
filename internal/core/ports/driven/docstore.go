package driven

import (
	"context"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// DocumentStore persists documents and their chunks.
type DocumentStore interface {
	// SaveDocument stores a document together with its chunks. The save
	// is atomic: on error no partial chunks persist.
	SaveDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if absent.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves a document's chunks ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and cascades to its chunks.
	// Returns the number of chunks removed, or domain.ErrNotFound.
	DeleteDocument(ctx context.Context, id string) (int, error)

	// ListDocuments returns all documents ordered by upload time.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
