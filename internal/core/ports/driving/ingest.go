package driving

import (
	"context"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// IngestService turns uploaded content into searchable index entries.
type IngestService interface {
	// IngestDocument chunks, embeds and indexes pre-extracted text.
	// Returns the new document's ID and the number of chunks created.
	IngestDocument(ctx context.Context, filename, text string, metadata map[string]any) (string, int, error)

	// IngestFile extracts text from raw bytes first, then ingests it.
	// Fails with domain.ErrUnsupportedFormat for unhandled MIME types.
	IngestFile(ctx context.Context, filename string, data []byte, mimeType string) (string, int, error)

	// DeleteDocument removes a document, its chunks and its index
	// entries. Returns the number of index entries removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
