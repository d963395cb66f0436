package domain

import "time"

// Document represents an uploaded document after text extraction.
// Documents are immutable once created; the only mutation is deletion,
// which cascades to chunks and index entries.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the original upload filename, used for citations.
	Filename string

	// Content is the full extracted plain text.
	Content string

	// UploadedAt is when the document entered the system.
	UploadedAt time.Time

	// Metadata contains caller-defined key-value pairs (size, MIME type).
	Metadata map[string]any
}

// Chunk is the unit of embedding and retrieval: a bounded, possibly
// overlapping segment of a document's text.
type Chunk struct {
	// ID is unique across the system (document ID + position).
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text of this chunk.
	Content string

	// Position is the zero-based sequence index within the document.
	Position int

	// Start and End are rune offsets into the parent document text.
	// Core spans of consecutive chunks do not overlap; the configured
	// overlap extends backwards from Start.
	Start int
	End   int

	// TokenEstimate is the approximate token count of Content.
	TokenEstimate int

	// Embedding is the vector representation, nil until computed.
	Embedding []float32
}

// IndexEntry is the unit stored in the vector index. Content and
// Filename are denormalised so search results can be assembled into
// prompt context without a document store round trip.
type IndexEntry struct {
	// ChunkID identifies the chunk; re-adding the same ID replaces the entry.
	ChunkID string

	// DocumentID links back to the owning document for cascade deletes.
	DocumentID string

	// Filename is the owning document's filename, carried for citations.
	Filename string

	// Position is the chunk's sequence index within the document.
	Position int

	// Embedding is the L2-normalised vector.
	Embedding []float32

	// Content is the chunk text.
	Content string
}
