package driven

import (
	"context"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// CostSink is a durable destination for cost records. The ledger keeps
// aggregates in memory and appends each record to the sink; pending
// writes are flushed at shutdown.
type CostSink interface {
	// Append writes one record to the sink.
	Append(ctx context.Context, record *domain.CostRecord) error

	// Close flushes pending records and releases resources.
	Close() error
}
