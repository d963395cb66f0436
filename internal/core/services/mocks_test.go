package services

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// mockEmbedder returns a fixed unit vector for every input.
type mockEmbedder struct {
	vec     []float32
	err     error
	batches [][]string
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{vec: []float32{1, 0, 0}}
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.batches = append(m.batches, texts)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = m.vec
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int   { return len(m.vec) }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }
func (m *mockEmbedder) Close() error      { return nil }

// mockIndex serves preset matches and records mutations.
type mockIndex struct {
	matches   []domain.Match
	added     []domain.IndexEntry
	addErr    error
	searchErr error
	removed   map[string]int
}

func newMockIndex() *mockIndex {
	return &mockIndex{removed: make(map[string]int)}
}

func (m *mockIndex) Add(_ context.Context, entries []domain.IndexEntry) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, entries...)
	return nil
}

func (m *mockIndex) Search(_ context.Context, _ []float32, k int, _ driven.EntryFilter) ([]domain.Match, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.matches) {
		k = len(m.matches)
	}
	return m.matches[:k], nil
}

func (m *mockIndex) RemoveDocument(_ context.Context, documentID string) (int, error) {
	count := 0
	var kept []domain.IndexEntry
	for _, e := range m.added {
		if e.DocumentID == documentID {
			count++
			continue
		}
		kept = append(kept, e)
	}
	m.added = kept
	m.removed[documentID] += count
	return count, nil
}

func (m *mockIndex) Len() int     { return len(m.added) }
func (m *mockIndex) Close() error { return nil }

// mockStore is an in-memory document store with failure injection.
type mockStore struct {
	docs    map[string]*domain.Document
	chunks  map[string][]domain.Chunk
	saveErr error
	listErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (m *mockStore) SaveDocument(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs[doc.ID] = doc
	m.chunks[doc.ID] = chunks
	return nil
}

func (m *mockStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *mockStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	return m.chunks[documentID], nil
}

func (m *mockStore) DeleteDocument(_ context.Context, id string) (int, error) {
	if _, ok := m.docs[id]; !ok {
		return 0, domain.ErrNotFound
	}
	n := len(m.chunks[id])
	delete(m.docs, id)
	delete(m.chunks, id)
	return n, nil
}

func (m *mockStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// mockCompletion serves scripted completions and streams.
type mockCompletion struct {
	completeText string
	completeErr  error
	inputTokens  int
	outputTokens int
	prompts      []string

	streamFragments []string
	streamErr       error
	openErr         error

	summary      string
	summarizeErr error
	summarized   []string
}

func (m *mockCompletion) Complete(_ context.Context, prompt string, _ driven.CompleteOptions) (*driven.Completion, error) {
	m.prompts = append(m.prompts, prompt)
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	return &driven.Completion{
		Text:         m.completeText,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
	}, nil
}

func (m *mockCompletion) StreamComplete(_ context.Context, prompt string, _ driven.CompleteOptions) (driven.TokenStream, error) {
	m.prompts = append(m.prompts, prompt)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &scriptedStream{fragments: m.streamFragments, err: m.streamErr}, nil
}

func (m *mockCompletion) Summarize(_ context.Context, text string, maxChars int) (string, error) {
	m.summarized = append(m.summarized, text)
	if m.summarizeErr != nil {
		return "", m.summarizeErr
	}
	if m.summary != "" {
		return m.summary, nil
	}
	return fmt.Sprintf("summary of %d chars in %d", len(text), maxChars), nil
}

func (m *mockCompletion) ModelName() string { return "claude-sonnet-4" }
func (m *mockCompletion) Close() error      { return nil }

// scriptedStream yields fragments then EOF or the scripted error.
type scriptedStream struct {
	fragments []string
	err       error
	pos       int
	closed    bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos < len(s.fragments) {
		frag := s.fragments[s.pos]
		s.pos++
		return frag, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// mockRetrieval serves a preset retrieval result.
type mockRetrieval struct {
	result *domain.RetrievalResult
	err    error
}

func (m *mockRetrieval) Retrieve(_ context.Context, _ string) (*domain.RetrievalResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
