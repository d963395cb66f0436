package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates an invalid configuration value, such as
	// an overlap not smaller than the chunk size. Configuration errors
	// are fatal at startup or call site, never silently defaulted.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingUnavailable indicates the embedding service failed or
	// is not configured. The embedder performs no retries; callers own
	// the retry policy.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable indicates the completion service failed
	// or is not configured.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrUnsupportedFormat indicates no text extractor handles the
	// uploaded file's MIME type. The document is not indexed and no
	// partial chunks persist.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrPricingUnavailable indicates the pricing table has no entry for
	// a model. Recording a silent zero cost would corrupt aggregates, so
	// unknown models fail instead.
	ErrPricingUnavailable = errors.New("no pricing for model")

	// ErrUnknownTemplate indicates an unregistered prompt template
	// version was selected. There is no silent fallback version.
	ErrUnknownTemplate = errors.New("unknown prompt template version")

	// ErrUnknownAggregator indicates an unregistered confidence
	// aggregation strategy was selected.
	ErrUnknownAggregator = errors.New("unknown confidence aggregator")

	// ErrStreamCancelled indicates a token stream was cancelled by the
	// consumer before exhaustion. Partial cost is still recorded.
	ErrStreamCancelled = errors.New("stream cancelled")
)
