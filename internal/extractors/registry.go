// Package extractors converts uploaded file formats into plain text
// ready for chunking. A registry routes by MIME type; individual
// extractors handle one format family each.
package extractors

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.TextExtractor = (*Registry)(nil)

// Registry routes extraction to the registered extractor for the
// document's MIME type.
type Registry struct {
	byMIME map[string]driven.TextExtractor
}

// NewRegistry creates a registry with the given extractors. Later
// registrations win when MIME types overlap.
func NewRegistry(extractors ...driven.TextExtractor) *Registry {
	r := &Registry{byMIME: make(map[string]driven.TextExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// NewDefaultRegistry creates a registry with the built-in extractors.
func NewDefaultRegistry() *Registry {
	return NewRegistry(NewPlaintext(), NewMarkdown())
}

// Register adds an extractor for all MIME types it supports.
func (r *Registry) Register(e driven.TextExtractor) {
	for _, mime := range e.SupportedMIMETypes() {
		r.byMIME[mime] = e
	}
}

// Extract converts raw bytes to plain text using the extractor
// registered for the MIME type.
func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	e, ok := r.byMIME[mimeType]
	if !ok {
		return "", fmt.Errorf("no extractor for %q: %w", mimeType, domain.ErrUnsupportedFormat)
	}
	return e.Extract(ctx, data, mimeType)
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.byMIME))
	for mime := range r.byMIME {
		types = append(types, mime)
	}
	sort.Strings(types)
	return types
}
