// Package composer assembles layered, size-bounded prompts from system
// instructions, retrieved context, conversation history and the query.
//
// Templates are named, immutable versions: each version is a pure
// function from the same inputs to a prompt string, which keeps A/B
// comparison of prompt versions deterministic and side-effect free.
package composer

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// DefaultVersion is the template version used when none is configured.
const DefaultVersion = "v1.2.0"

// DefaultHistoryLimit is the number of most recent turns retained.
const DefaultHistoryLimit = 6

// Input carries everything a template needs. Templates never mutate it.
type Input struct {
	// System is the resolved system instruction text.
	System string

	// Outcome is the orchestrator's routing decision.
	Outcome domain.Outcome

	// Matches are the retrieved chunks, best first.
	Matches []domain.Match

	// Summary replaces the per-chunk context when the outcome is
	// OutcomeSummarize. Empty otherwise.
	Summary string

	// History is the trimmed conversation history, oldest first.
	History []domain.ConversationTurn

	// Query is the user's question.
	Query string

	// AvailableDocuments lists indexed filenames, shown on the clarify
	// path so the user can redirect the question.
	AvailableDocuments []string

	// Clarify and Citation are the resolved response-format
	// instruction texts.
	Clarify  string
	Citation string
}

// TemplateFunc renders a prompt from the input. Implementations must be
// pure: same input, same prompt.
type TemplateFunc func(in Input) string

// Prompt is a composed prompt tagged with its template version.
type Prompt struct {
	// Text is the full prompt.
	Text string

	// Version is the template version that produced it.
	Version string
}

// Composer maintains the registry of template versions and resolves
// instruction text through an optional TemplateStore.
type Composer struct {
	mu           sync.RWMutex
	templates    map[string]TemplateFunc
	version      string
	historyLimit int
	store        driven.TemplateStore
}

// Option configures the composer.
type Option func(*Composer)

// WithVersion sets the default template version.
func WithVersion(version string) Option {
	return func(c *Composer) {
		if version != "" {
			c.version = version
		}
	}
}

// WithHistoryLimit sets how many recent turns are retained.
func WithHistoryLimit(n int) Option {
	return func(c *Composer) {
		if n >= 0 {
			c.historyLimit = n
		}
	}
}

// WithTemplateStore sets the store for user-overridable instructions.
func WithTemplateStore(store driven.TemplateStore) Option {
	return func(c *Composer) {
		c.store = store
	}
}

// New creates a composer with the built-in template versions registered.
func New(opts ...Option) *Composer {
	c := &Composer{
		templates: map[string]TemplateFunc{
			"v1.1.0": templateV110,
			"v1.2.0": templateV120,
		},
		version:      DefaultVersion,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces a template version.
func (c *Composer) Register(version string, fn TemplateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[version] = fn
}

// Version returns the default template version.
func (c *Composer) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Validate checks that the given version is registered. Used at startup
// so an unknown configured version fails fast.
func (c *Composer) Validate(version string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.templates[version]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownTemplate, version)
	}
	return nil
}

// Compose renders the prompt for the given version. An empty version
// selects the default. Unknown versions are an error, never a silent
// fallback.
func (c *Composer) Compose(version string, in Input) (*Prompt, error) {
	c.mu.RLock()
	if version == "" {
		version = c.version
	}
	fn, ok := c.templates[version]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTemplate, version)
	}

	in.System = c.instruction(driven.InstructionSystem, in.System, defaultSystem)
	in.Clarify = c.instruction(driven.InstructionClarify, in.Clarify, defaultClarify)
	in.Citation = c.instruction(driven.InstructionCitation, in.Citation, defaultCitation)
	in.History = trimHistory(in.History, c.historyLimit)

	return &Prompt{Text: fn(in), Version: version}, nil
}

// instruction resolves an instruction text: explicit input first, then
// the template store, then the embedded default.
func (c *Composer) instruction(name, explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if c.store != nil {
		if text, err := c.store.Load(name); err == nil && text != "" {
			return text
		}
	}
	return fallback
}

// trimHistory keeps the most recent limit turns, dropping oldest first.
// The input slice is never modified.
func trimHistory(history []domain.ConversationTurn, limit int) []domain.ConversationTurn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
