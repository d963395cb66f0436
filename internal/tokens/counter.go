// Package tokens estimates token counts for cost metering and context
// sizing.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is used when no model-specific encoding resolves.
const defaultEncoding = "cl100k_base"

// heuristicCharsPerToken backs the fallback estimate when no tiktoken
// encoding is available (offline, unknown model). Roughly four
// characters per token for English text.
const heuristicCharsPerToken = 4

// Counter counts tokens using a tiktoken encoding, falling back to a
// character heuristic when the encoding cannot be loaded.
type Counter struct {
	mu  sync.RWMutex
	tke *tiktoken.Tiktoken
}

// NewCounter creates a counter for the given model or encoding name.
// Resolution order: encoding name, then model name, then the default
// encoding. A counter is always returned; with no encoding at all it
// degrades to the character heuristic.
func NewCounter(modelOrEncoding string) *Counter {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}

	tke, err := tiktoken.GetEncoding(modelOrEncoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(modelOrEncoding)
	}
	if err != nil {
		tke, _ = tiktoken.GetEncoding(defaultEncoding)
	}

	return &Counter{tke: tke}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.tke == nil {
		return Estimate(text)
	}
	return len(c.tke.Encode(text, nil, nil))
}

// Estimate approximates the token count of text without an encoding.
func Estimate(text string) int {
	return len(text) / heuristicCharsPerToken
}
