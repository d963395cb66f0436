package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/copilot-core/internal/chunker"
	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/extractors"
	"github.com/custodia-labs/copilot-core/internal/tokens"
)

func newIngestFixture(t *testing.T) (*Ingest, *mockEmbedder, *mockStore, *mockIndex) {
	t.Helper()
	ch, err := chunker.New(500, 50)
	require.NoError(t, err)

	embedder := newMockEmbedder()
	store := newMockStore()
	index := newMockIndex()
	svc := NewIngest(ch, embedder, store, index, extractors.NewDefaultRegistry(), tokens.NewCounter("cl100k_base"))
	return svc, embedder, store, index
}

func TestIngest_DocumentStoredAndIndexed(t *testing.T) {
	svc, _, store, index := newIngestFixture(t)
	ctx := context.Background()

	text := "The deploy script builds the image. Then it pushes to the registry. Rollbacks use the previous tag."
	docID, count, err := svc.IngestDocument(ctx, "deploy.md", text, map[string]any{"team": "infra"})
	require.NoError(t, err)
	require.NotEmpty(t, docID)
	assert.Equal(t, 1, count)

	doc, err := store.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "deploy.md", doc.Filename)
	assert.Equal(t, text, doc.Content)

	chunks, err := store.GetChunks(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Embedding)
	assert.Positive(t, chunks[0].TokenEstimate)

	require.Len(t, index.added, 1)
	assert.Equal(t, docID, index.added[0].DocumentID)
	assert.Equal(t, "deploy.md", index.added[0].Filename)
}

func TestIngest_EmptyDocumentRejected(t *testing.T) {
	svc, _, store, index := newIngestFixture(t)

	_, _, err := svc.IngestDocument(context.Background(), "empty.md", "   \n\t", nil)
	assert.Error(t, err)
	assert.Empty(t, store.docs)
	assert.Zero(t, index.Len())
}

func TestIngest_EmbeddingFailureLeavesNoState(t *testing.T) {
	svc, embedder, store, index := newIngestFixture(t)
	embedder.err = domain.ErrEmbeddingUnavailable

	_, _, err := svc.IngestDocument(context.Background(), "doc.md", "Some sentence. Another one.", nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Empty(t, store.docs)
	assert.Zero(t, index.Len())
}

func TestIngest_IndexFailureRollsBackStore(t *testing.T) {
	svc, _, store, index := newIngestFixture(t)
	index.addErr = errors.New("dimension mismatch")

	_, _, err := svc.IngestDocument(context.Background(), "doc.md", "Some sentence. Another one.", nil)
	assert.Error(t, err)
	assert.Empty(t, store.docs, "stored document must be rolled back when indexing fails")
}

func TestIngest_FileRoutesThroughExtractor(t *testing.T) {
	svc, _, store, _ := newIngestFixture(t)
	ctx := context.Background()

	docID, count, err := svc.IngestFile(ctx, "notes.md", []byte("# Notes\n\nThe cache warms on boot."), "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	doc, err := store.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.False(t, strings.Contains(doc.Content, "#"), "markdown heading markers should be stripped")
	assert.Equal(t, "text/markdown", doc.Metadata["mime_type"])
}

func TestIngest_FileUnsupportedMIMEType(t *testing.T) {
	svc, _, _, _ := newIngestFixture(t)

	_, _, err := svc.IngestFile(context.Background(), "scan.pdf", []byte("%PDF-1.4"), "application/pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestIngest_DeleteDocumentRemovesIndexEntries(t *testing.T) {
	svc, _, store, index := newIngestFixture(t)
	ctx := context.Background()

	docID, _, err := svc.IngestDocument(ctx, "doc.md", "First sentence. Second sentence.", nil)
	require.NoError(t, err)

	removed, err := svc.DeleteDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, index.Len())

	_, err = store.GetDocument(ctx, docID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_DeleteUnknownDocument(t *testing.T) {
	svc, _, _, _ := newIngestFixture(t)

	_, err := svc.DeleteDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
