package driven

import "context"

// TextExtractor turns uploaded file bytes into plain text.
//
// Extraction is an external collaborator: the core never parses file
// formats itself. Unhandled MIME types fail with
// domain.ErrUnsupportedFormat and leave no partial state behind.
type TextExtractor interface {
	// Extract returns the plain text content of the file.
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)

	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string
}
