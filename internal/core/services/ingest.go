// Package services implements the driving ports by orchestrating the
// driven ports: ingestion, retrieval routing and answer generation.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/copilot-core/internal/chunker"
	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driving"
	"github.com/custodia-labs/copilot-core/internal/logger"
	"github.com/custodia-labs/copilot-core/internal/tokens"
)

// Ensure Ingest implements the interface.
var _ driving.IngestService = (*Ingest)(nil)

// Ingest turns uploaded content into stored documents and index
// entries: chunk, embed, persist, index.
type Ingest struct {
	chunker   *chunker.Chunker
	embedder  driven.EmbeddingService
	store     driven.DocumentStore
	index     driven.VectorIndex
	extractor driven.TextExtractor
	counter   *tokens.Counter
	now       func() time.Time
}

// NewIngest creates the ingestion service.
func NewIngest(
	ch *chunker.Chunker,
	embedder driven.EmbeddingService,
	store driven.DocumentStore,
	index driven.VectorIndex,
	extractor driven.TextExtractor,
	counter *tokens.Counter,
) *Ingest {
	return &Ingest{
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		index:     index,
		extractor: extractor,
		counter:   counter,
		now:       time.Now,
	}
}

// IngestDocument chunks, embeds, persists and indexes pre-extracted
// text. Nothing is persisted until every chunk has an embedding, so a
// provider failure leaves no partial state behind.
func (s *Ingest) IngestDocument(ctx context.Context, filename, text string, metadata map[string]any) (string, int, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, fmt.Errorf("ingest %q: document is empty", filename)
	}

	docID := uuid.New().String()
	chunks := s.chunker.Chunk(docID, text)
	if len(chunks) == 0 {
		return "", 0, fmt.Errorf("ingest %q: no chunks produced", filename)
	}

	logger.Debug("ingesting %q: %d chunks", filename, len(chunks))

	contents := make([]string, len(chunks))
	for i := range chunks {
		contents[i] = chunks[i].Content
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return "", 0, fmt.Errorf("ingest %q: embedding chunks: %w", filename, err)
	}
	if len(embeddings) != len(chunks) {
		return "", 0, fmt.Errorf("ingest %q: got %d embeddings for %d chunks", filename, len(embeddings), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
		chunks[i].TokenEstimate = s.counter.Count(chunks[i].Content)
	}

	doc := &domain.Document{
		ID:         docID,
		Filename:   filename,
		Content:    text,
		UploadedAt: s.now(),
		Metadata:   metadata,
	}

	if err := s.store.SaveDocument(ctx, doc, chunks); err != nil {
		return "", 0, fmt.Errorf("ingest %q: saving document: %w", filename, err)
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = domain.IndexEntry{
			ChunkID:    chunks[i].ID,
			DocumentID: docID,
			Filename:   filename,
			Position:   chunks[i].Position,
			Embedding:  chunks[i].Embedding,
			Content:    chunks[i].Content,
		}
	}

	if err := s.index.Add(ctx, entries); err != nil {
		// Roll the stored document back so storage and index agree.
		if _, delErr := s.store.DeleteDocument(ctx, docID); delErr != nil {
			logger.Error("rollback of %q failed: %v", filename, delErr)
		}
		return "", 0, fmt.Errorf("ingest %q: indexing chunks: %w", filename, err)
	}

	logger.Info("ingested %q as %s (%d chunks)", filename, docID, len(chunks))
	return docID, len(chunks), nil
}

// IngestFile extracts text from raw bytes first, then ingests it.
func (s *Ingest) IngestFile(ctx context.Context, filename string, data []byte, mimeType string) (string, int, error) {
	text, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		return "", 0, fmt.Errorf("ingest %q: %w", filename, err)
	}

	metadata := map[string]any{"mime_type": mimeType}
	return s.IngestDocument(ctx, filename, text, metadata)
}

// DeleteDocument removes a document from storage and the index.
// Returns the number of index entries removed.
func (s *Ingest) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if _, err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return 0, fmt.Errorf("delete %s: %w", documentID, err)
	}

	removed, err := s.index.RemoveDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete %s: removing index entries: %w", documentID, err)
	}

	logger.Info("deleted %s (%d index entries)", documentID, removed)
	return removed, nil
}

// ListDocuments returns all ingested documents.
func (s *Ingest) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx)
}
