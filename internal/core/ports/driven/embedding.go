package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations wrap an external model behind a pure, replaceable
// boundary: they perform no retries and no caching. Callers decide
// whether a failure is retried or aborts the pipeline.
//
// Vectors returned by implementations must be L2-normalised so that
// cosine similarity reduces to a dot product in the index.
type EmbeddingService interface {
	// Embed generates a normalised embedding for the given text.
	// Failures wrap domain.ErrEmbeddingUnavailable.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call,
	// preserving input order. The ingestion path uses this to amortise
	// external-call overhead.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
