package resilience

import (
	"context"

	"github.com/sethvargo/go-retry"

	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/logger"
)

// Ensure Completion implements the interface.
var _ driven.CompletionService = (*Completion)(nil)

// Completion retries transient failures of the wrapped completion
// service. Streams are not retried once opened: a mid-stream failure
// surfaces to the caller, only opening the stream is covered.
type Completion struct {
	inner  driven.CompletionService
	policy Policy
}

// NewCompletion wraps a completion service with the given policy.
func NewCompletion(inner driven.CompletionService, policy Policy) *Completion {
	return &Completion{inner: inner, policy: policy.withDefaults()}
}

// Complete produces a completion, retrying transient failures.
func (c *Completion) Complete(ctx context.Context, prompt string, opts driven.CompleteOptions) (*driven.Completion, error) {
	var result *driven.Completion
	err := retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		var innerErr error
		result, innerErr = c.inner.Complete(ctx, prompt, opts)
		if innerErr != nil {
			logger.Debug("completion attempt failed: %v", innerErr)
		}
		return retryable(innerErr)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StreamComplete opens a token stream, retrying transient failures of
// the initial request.
func (c *Completion) StreamComplete(ctx context.Context, prompt string, opts driven.CompleteOptions) (driven.TokenStream, error) {
	var stream driven.TokenStream
	err := retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		var innerErr error
		stream, innerErr = c.inner.StreamComplete(ctx, prompt, opts)
		if innerErr != nil {
			logger.Debug("stream open attempt failed: %v", innerErr)
		}
		return retryable(innerErr)
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Summarize condenses text, retrying transient failures.
func (c *Completion) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	var result string
	err := retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		var innerErr error
		result, innerErr = c.inner.Summarize(ctx, text, maxChars)
		if innerErr != nil {
			logger.Debug("summarize attempt failed: %v", innerErr)
		}
		return retryable(innerErr)
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// ModelName returns the wrapped service's model name.
func (c *Completion) ModelName() string {
	return c.inner.ModelName()
}

// Close closes the wrapped service.
func (c *Completion) Close() error {
	return c.inner.Close()
}
