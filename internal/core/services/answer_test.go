package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vectormem "github.com/custodia-labs/copilot-core/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/copilot-core/internal/chunker"
	"github.com/custodia-labs/copilot-core/internal/composer"
	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/costs"
	"github.com/custodia-labs/copilot-core/internal/extractors"
	"github.com/custodia-labs/copilot-core/internal/tokens"
)

func directResult(score float64, content string) *domain.RetrievalResult {
	return &domain.RetrievalResult{
		Matches: []domain.Match{
			{ChunkID: "a:0", DocumentID: "doc-1", Filename: "deploy.md", Content: content, Score: score},
		},
		Confidence: score,
		Outcome:    domain.OutcomeDirect,
	}
}

func newAnswerFixture(retrieval Retrieval, completion *mockCompletion) (*Answerer, *costs.Ledger, *mockStore) {
	ledger := costs.NewLedger(nil)
	store := newMockStore()
	a := NewAnswerer(retrieval, completion, composer.New(), ledger, store, tokens.NewCounter("cl100k_base"), 0)
	return a, ledger, store
}

func TestAnswer_DirectPath(t *testing.T) {
	completion := &mockCompletion{
		completeText: "Run the deploy script. [deploy.md#0]",
		inputTokens:  1000,
		outputTokens: 500,
	}
	retrieval := &mockRetrieval{result: directResult(0.9, "The deploy script builds and pushes.")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	ans, err := a.Answer(context.Background(), "how do we deploy?", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "Run the deploy script. [deploy.md#0]", ans.Text)
	assert.Equal(t, domain.OutcomeDirect, ans.Outcome)
	assert.Equal(t, []string{"deploy.md"}, ans.Sources)
	assert.InDelta(t, 0.9, ans.Confidence, 1e-9)
	assert.Equal(t, composer.DefaultVersion, ans.TemplateVersion)

	require.NotNil(t, ans.Cost)
	assert.Equal(t, "claude-sonnet-4", ans.Cost.Model)
	assert.Equal(t, 1000, ans.Cost.InputTokens)
	assert.Equal(t, 500, ans.Cost.OutputTokens)
	// 1000 * 0.003/1K + 500 * 0.015/1K
	assert.Equal(t, "0.0105", ans.Cost.TotalCost.String())
	assert.True(t, ans.Cost.Success)

	// The prompt carries the retrieved context with its source tag.
	require.Len(t, completion.prompts, 1)
	assert.Contains(t, completion.prompts[0], "[source: deploy.md#0]")
	assert.Contains(t, completion.prompts[0], "how do we deploy?")
}

func TestAnswer_ClarifyPathListsDocuments(t *testing.T) {
	completion := &mockCompletion{completeText: "Which service do you mean?"}
	retrieval := &mockRetrieval{result: &domain.RetrievalResult{
		Matches:    []domain.Match{{ChunkID: "a:0", Filename: "deploy.md", Content: "weak match", Score: 0.5}},
		Confidence: 0.5,
		Outcome:    domain.OutcomeClarify,
	}}
	a, _, store := newAnswerFixture(retrieval, completion)
	store.docs["d1"] = &domain.Document{ID: "d1", Filename: "deploy.md"}
	store.docs["d2"] = &domain.Document{ID: "d2", Filename: "runbook.md"}

	ans, err := a.Answer(context.Background(), "what about the thing?", nil, "")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeClarify, ans.Outcome)
	require.Len(t, completion.prompts, 1)
	assert.Contains(t, completion.prompts[0], "Do NOT answer the question")
	assert.Contains(t, completion.prompts[0], "Available documents: deploy.md, runbook.md")
}

func TestAnswer_SummarizePathCondensesContext(t *testing.T) {
	big := strings.Repeat("The runbook covers every incident class. ", 150) // ~6150 chars
	completion := &mockCompletion{completeText: "Condensed answer.", summary: "Key points only."}
	retrieval := &mockRetrieval{result: &domain.RetrievalResult{
		Matches:    []domain.Match{{ChunkID: "a:0", Filename: "runbook.md", Content: big, Score: 0.95}},
		Confidence: 0.95,
		Outcome:    domain.OutcomeSummarize,
	}}
	a, _, _ := newAnswerFixture(retrieval, completion)

	ans, err := a.Answer(context.Background(), "summarise the runbook", nil, "")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSummarize, ans.Outcome)
	require.Len(t, completion.summarized, 1)

	// The prompt contains the summary, not the oversized chunks.
	require.Len(t, completion.prompts, 1)
	assert.Contains(t, completion.prompts[0], "Key points only.")
	assert.Contains(t, completion.prompts[0], "[summarised from runbook.md]")
	assert.NotContains(t, completion.prompts[0], big)
}

func TestAnswer_SummarizeFailureFallsBackToTruncation(t *testing.T) {
	big := strings.Repeat("z", 6000)
	completion := &mockCompletion{completeText: "ok", summarizeErr: domain.ErrCompletionUnavailable}
	retrieval := &mockRetrieval{result: &domain.RetrievalResult{
		Matches:    []domain.Match{{ChunkID: "a:0", Filename: "big.md", Content: big, Score: 0.95}},
		Confidence: 0.95,
		Outcome:    domain.OutcomeSummarize,
	}}
	a, _, _ := newAnswerFixture(retrieval, completion)

	_, err := a.Answer(context.Background(), "query", nil, "")
	require.NoError(t, err)

	// Fallback keeps the first DefaultContextCeiling runes.
	require.Len(t, completion.prompts, 1)
	assert.Contains(t, completion.prompts[0], strings.Repeat("z", DefaultContextCeiling))
	assert.NotContains(t, completion.prompts[0], strings.Repeat("z", DefaultContextCeiling+1))
}

func TestAnswer_HistoryAppearsInPrompt(t *testing.T) {
	completion := &mockCompletion{completeText: "answer"}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "earlier question"},
		{Role: domain.RoleAssistant, Content: "earlier answer"},
	}
	_, err := a.Answer(context.Background(), "follow-up", history, "")
	require.NoError(t, err)

	require.Len(t, completion.prompts, 1)
	assert.Contains(t, completion.prompts[0], "User: earlier question")
	assert.Contains(t, completion.prompts[0], "Assistant: earlier answer")
}

func TestAnswer_ModelOverrideUsedForPricing(t *testing.T) {
	completion := &mockCompletion{completeText: "answer", inputTokens: 1000, outputTokens: 100}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	ans, err := a.Answer(context.Background(), "query", nil, "claude-opus-4")
	require.NoError(t, err)

	require.NotNil(t, ans.Cost)
	assert.Equal(t, "claude-opus-4", ans.Cost.Model)
	// 1000 * 0.015/1K + 100 * 0.075/1K
	assert.Equal(t, "0.0225", ans.Cost.TotalCost.String())
}

func TestAnswer_CompletionFailureRecordedInStats(t *testing.T) {
	completion := &mockCompletion{completeErr: domain.ErrCompletionUnavailable}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	_, err := a.Answer(context.Background(), "query", nil, "")
	assert.ErrorIs(t, err, domain.ErrCompletionUnavailable)

	stats := a.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.FailedRequests)
	assert.InDelta(t, 1.0, stats.ErrorRate, 1e-9)
}

func TestAnswer_EmptyQueryRejected(t *testing.T) {
	a, _, _ := newAnswerFixture(&mockRetrieval{}, &mockCompletion{})

	_, err := a.Answer(context.Background(), "   ", nil, "")
	assert.Error(t, err)
}

func TestAnswerStream_DeliversFragmentsThenCost(t *testing.T) {
	completion := &mockCompletion{streamFragments: []string{"Run ", "the ", "script."}}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	stream, err := a.AnswerStream(context.Background(), "how?", nil, "")
	require.NoError(t, err)

	var got strings.Builder
	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got.WriteString(frag)
	}

	assert.Equal(t, "Run the script.", got.String())

	meta := stream.Meta()
	assert.Equal(t, "Run the script.", meta.Text)
	assert.Equal(t, []string{"deploy.md"}, meta.Sources)
	require.NotNil(t, meta.Cost)
	assert.True(t, meta.Cost.Success)
	assert.Positive(t, meta.Cost.OutputTokens)

	stats := a.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Zero(t, stats.FailedRequests)
}

func TestAnswerStream_CancellationRecordsPartialCost(t *testing.T) {
	completion := &mockCompletion{streamFragments: []string{"partial ", "output ", "never seen"}}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, ledger, _ := newAnswerFixture(retrieval, completion)

	stream, err := a.AnswerStream(context.Background(), "how?", nil, "")
	require.NoError(t, err)

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial ", frag)

	require.NoError(t, stream.Close())

	// Cost of the produced fragment is booked as a failed request.
	stats := ledger.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.FailedRequests)
	require.NotNil(t, stream.Meta().Cost)
	assert.False(t, stream.Meta().Cost.Success)
	assert.Equal(t, "partial ", stream.Meta().Text)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, domain.ErrStreamCancelled)
}

func TestAnswerStream_MidStreamErrorRecordsFailure(t *testing.T) {
	completion := &mockCompletion{
		streamFragments: []string{"some "},
		streamErr:       domain.ErrCompletionUnavailable,
	}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	stream, err := a.AnswerStream(context.Background(), "how?", nil, "")
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, domain.ErrCompletionUnavailable)

	stats := a.Stats()
	assert.Equal(t, 1, stats.FailedRequests)
}

func TestAnswer_LatencyRecorded(t *testing.T) {
	completion := &mockCompletion{completeText: "answer"}
	retrieval := &mockRetrieval{result: directResult(0.9, "ctx")}
	a, _, _ := newAnswerFixture(retrieval, completion)

	ans, err := a.Answer(context.Background(), "query", nil, "")
	require.NoError(t, err)

	require.NotNil(t, ans.Cost)
	assert.GreaterOrEqual(t, ans.Cost.Latency, time.Duration(0))
}

// TestAnswer_EndToEndDeployQuestion runs ingest, retrieval and answer
// through the real chunker, real in-memory index, retriever and
// answerer together, mocking only the external providers.
func TestAnswer_EndToEndDeployQuestion(t *testing.T) {
	ctx := context.Background()

	ch, err := chunker.New(500, 50)
	require.NoError(t, err)

	embedder := newMockEmbedder()
	store := newMockStore()
	index := vectormem.New()
	counter := tokens.NewCounter("cl100k_base")

	ingest := NewIngest(ch, embedder, store, index, extractors.NewDefaultRegistry(), counter)
	docID, chunkCount, err := ingest.IngestDocument(ctx, "deploy.md",
		"Deploy via ./deploy.sh from the release branch. The script builds the image, pushes it to the registry and restarts the service.",
		nil)
	require.NoError(t, err)
	require.NotEmpty(t, docID)
	require.Positive(t, chunkCount)

	retriever, err := NewRetriever(embedder, index, RetrieverConfig{})
	require.NoError(t, err)

	completion := &mockCompletion{
		completeText: "Deploy via ./deploy.sh from the release branch. [deploy.md#0]",
	}
	a := NewAnswerer(retriever, completion, composer.New(), costs.NewLedger(nil), store, counter, 0)

	ans, err := a.Answer(ctx, "How do we deploy?", nil, "")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeDirect, ans.Outcome)
	assert.Equal(t, []string{"deploy.md"}, ans.Sources)
	assert.GreaterOrEqual(t, ans.Confidence, 0.7)

	// The composed prompt carries the indexed chunk and its source tag.
	require.Len(t, completion.prompts, 1)
	assert.Contains(t, completion.prompts[0], "./deploy.sh")
	assert.Contains(t, completion.prompts[0], "[source: deploy.md#0]")
	assert.Contains(t, completion.prompts[0], "How do we deploy?")

	require.NotNil(t, ans.Cost)
	assert.True(t, ans.Cost.Success)
}
