package driving

import (
	"context"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// AnswerService answers queries against the indexed document set.
type AnswerService interface {
	// Answer runs the full pipeline for one query: retrieve, route,
	// compose, complete, record cost.
	Answer(ctx context.Context, query string, history []domain.ConversationTurn, model string) (*domain.Answer, error)

	// AnswerStream is the streaming variant. The caller pulls fragments
	// from the stream until io.EOF; Meta() is valid once the stream is
	// exhausted or cancelled. Cancellation still records the cost of
	// tokens produced up to that point.
	AnswerStream(ctx context.Context, query string, history []domain.ConversationTurn, model string) (AnswerStream, error)
}

// AnswerStream delivers an answer incrementally.
type AnswerStream interface {
	// Recv returns the next text fragment, or io.EOF when the answer is
	// complete.
	Recv() (string, error)

	// Meta returns the answer metadata (sources, confidence, cost).
	// The cost record is only populated after the stream finishes or is
	// cancelled.
	Meta() *domain.Answer

	// Close cancels the stream and records partial cost.
	Close() error
}

// StatsService exposes the cost ledger's aggregate snapshot.
type StatsService interface {
	// Stats returns the current usage aggregates. O(1): the snapshot is
	// assembled from running accumulators, never by rescanning records.
	Stats() domain.UsageStats
}
