// Package resilience wraps the external model services with retry
// policies. Providers return transient failures routinely; callers get
// a single result or a final error after backoff is exhausted.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/logger"
)

// Default retry policy values.
const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 500 * time.Millisecond
)

// Policy configures the retry behaviour.
type Policy struct {
	// MaxRetries is the number of attempts after the first failure
	// (default: 3).
	MaxRetries uint64

	// BaseBackoff is the initial exponential backoff step
	// (default: 500ms).
	BaseBackoff time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseBackoff == 0 {
		p.BaseBackoff = DefaultBaseBackoff
	}
	return p
}

func (p Policy) backoff() retry.Backoff {
	return retry.WithMaxRetries(p.MaxRetries, retry.NewExponential(p.BaseBackoff))
}

// retryable marks provider-unavailable errors for another attempt.
// Anything else (bad input, cancelled context) fails immediately.
func retryable(err error) error {
	if errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, domain.ErrCompletionUnavailable) {
		return retry.RetryableError(err)
	}
	return err
}

// Ensure Embedding implements the interface.
var _ driven.EmbeddingService = (*Embedding)(nil)

// Embedding retries transient failures of the wrapped embedding service.
type Embedding struct {
	inner  driven.EmbeddingService
	policy Policy
}

// NewEmbedding wraps an embedding service with the given policy.
func NewEmbedding(inner driven.EmbeddingService, policy Policy) *Embedding {
	return &Embedding{inner: inner, policy: policy.withDefaults()}
}

// Embed generates an embedding, retrying transient failures.
func (e *Embedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := retry.Do(ctx, e.policy.backoff(), func(ctx context.Context) error {
		var innerErr error
		result, innerErr = e.inner.Embed(ctx, text)
		if innerErr != nil {
			logger.Debug("embed attempt failed: %v", innerErr)
		}
		return retryable(innerErr)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmbedBatch generates embeddings, retrying transient failures.
func (e *Embedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := retry.Do(ctx, e.policy.backoff(), func(ctx context.Context) error {
		var innerErr error
		result, innerErr = e.inner.EmbedBatch(ctx, texts)
		if innerErr != nil {
			logger.Debug("embed batch attempt failed: %v", innerErr)
		}
		return retryable(innerErr)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dimensions returns the wrapped service's vector size.
func (e *Embedding) Dimensions() int {
	return e.inner.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (e *Embedding) ModelName() string {
	return e.inner.ModelName()
}

// Close closes the wrapped service.
func (e *Embedding) Close() error {
	return e.inner.Close()
}
