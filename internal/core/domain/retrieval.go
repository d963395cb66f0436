package domain

import "unicode/utf8"

// Outcome is the terminal decision of the retrieval orchestrator,
// handed to the prompt composer along with the retrieved matches.
type Outcome string

// Available retrieval outcomes.
const (
	// OutcomeDirect means the evidence is strong enough to answer directly.
	OutcomeDirect Outcome = "direct_answer"

	// OutcomeClarify means retrieval confidence fell below the threshold
	// and the composer should ask for disambiguation instead of answering.
	OutcomeClarify Outcome = "clarify"

	// OutcomeSummarize means the retrieved context exceeded the size
	// ceiling and must be compressed before composition.
	OutcomeSummarize Outcome = "summarize_then_answer"
)

// IsValid returns true if the outcome is recognised.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeDirect, OutcomeClarify, OutcomeSummarize:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (o Outcome) String() string {
	return string(o)
}

// Match is a single retrieval hit: a chunk reference with its
// similarity score and the owning document's filename.
type Match struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// DocumentID identifies the owning document.
	DocumentID string

	// Filename is the owning document's filename, used for citations.
	Filename string

	// Position is the chunk's sequence index within the document.
	Position int

	// Content is the chunk text used for context assembly.
	Content string

	// Score is the cosine similarity of the chunk to the query.
	Score float64
}

// RetrievalResult is a relevance-ordered (descending score) sequence of
// matches, at most top-K long.
type RetrievalResult struct {
	// Matches are the retained hits, best first.
	Matches []Match

	// Confidence is the aggregate score computed by the configured
	// aggregation strategy. It reflects retrieval quality only, never
	// the completion model's certainty.
	Confidence float64

	// Outcome is the routing decision derived from Confidence and the
	// combined context size.
	Outcome Outcome
}

// ContextLength returns the summed length of all match contents in
// runes, matching the unit the chunker and the context ceiling use.
func (r *RetrievalResult) ContextLength() int {
	total := 0
	for i := range r.Matches {
		total += utf8.RuneCountInString(r.Matches[i].Content)
	}
	return total
}

// Sources returns the distinct document filenames in relevance order.
func (r *RetrievalResult) Sources() []string {
	seen := make(map[string]bool, len(r.Matches))
	sources := make([]string, 0, len(r.Matches))
	for i := range r.Matches {
		f := r.Matches[i].Filename
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		sources = append(sources, f)
	}
	return sources
}
