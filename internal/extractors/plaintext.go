package extractors

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// Ensure Plaintext implements the interface.
var _ driven.TextExtractor = (*Plaintext)(nil)

// Plaintext handles plain text formats. The bytes are used as-is after
// UTF-8 validation and line-ending normalisation.
type Plaintext struct{}

// NewPlaintext creates a new plain text extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Plaintext) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/x-shellscript",
		"application/json",
	}
}

// Extract returns the content as a string with CRLF normalised to LF.
func (e *Plaintext) Extract(_ context.Context, data []byte, _ string) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.ErrUnsupportedFormat
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}
