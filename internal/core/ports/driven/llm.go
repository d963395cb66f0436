package driven

import "context"

// CompletionService generates text from a composed prompt via an
// external LLM. Like EmbeddingService it is a pure boundary: no
// internal retries, failures wrap domain.ErrCompletionUnavailable.
type CompletionService interface {
	// Complete produces the full completion for a prompt in one call.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (*Completion, error)

	// StreamComplete produces the completion as a pull-based token
	// stream. The consumer calls Recv until io.EOF or cancels via Close;
	// either way the producer releases its resources.
	StreamComplete(ctx context.Context, prompt string, opts CompleteOptions) (TokenStream, error)

	// Summarize compresses text to roughly maxChars characters. Used by
	// the orchestrator's summarize-then-answer path.
	Summarize(ctx context.Context, text string, maxChars int) (string, error)

	// ModelName returns the default model this service targets.
	ModelName() string

	// Close releases resources.
	Close() error
}

// CompleteOptions configures a completion request.
type CompleteOptions struct {
	// Model overrides the service's default model when non-empty.
	Model string

	// MaxTokens caps the generated length. Zero means adapter default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// Completion is the result of a blocking completion call, including the
// provider-reported token usage when available.
type Completion struct {
	// Text is the generated completion.
	Text string

	// InputTokens and OutputTokens are provider-reported counts.
	// Zero when the provider does not report usage.
	InputTokens  int
	OutputTokens int
}

// TokenStream delivers completion text incrementally. It is a finite,
// cancellable sequence: Recv returns io.EOF after the last fragment.
type TokenStream interface {
	// Recv returns the next text fragment. io.EOF signals normal
	// exhaustion; any other error means the stream broke mid-flight.
	Recv() (string, error)

	// Close cancels the stream. Safe to call after exhaustion.
	Close() error
}
