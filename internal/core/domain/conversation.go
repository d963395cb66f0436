package domain

// Turn roles.
const (
	// RoleUser marks a turn authored by the user.
	RoleUser = "user"

	// RoleAssistant marks a turn authored by the assistant.
	RoleAssistant = "assistant"
)

// ConversationTurn is one entry in an append-only conversation.
// Turns are never mutated once the assistant content is finalised.
type ConversationTurn struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the turn text.
	Content string

	// Metadata carries optional per-turn details (sources, confidence,
	// cost, latency, template version). Nil for plain turns.
	Metadata *TurnMetadata
}

// TurnMetadata records how an assistant turn was produced.
type TurnMetadata struct {
	// Sources are the document filenames cited by the turn.
	Sources []string

	// Confidence is the retrieval confidence behind the turn.
	Confidence float64

	// TemplateVersion is the prompt template the turn was composed with.
	TemplateVersion string

	// CostRecordID links to the cost record for the request.
	CostRecordID string
}

// Answer is the complete result of one query through the pipeline.
type Answer struct {
	// Text is the generated answer (or clarification request).
	Text string

	// Sources are the document filenames backing the answer.
	Sources []string

	// Confidence is the aggregate retrieval confidence.
	Confidence float64

	// Outcome is the routing decision that produced the answer.
	Outcome Outcome

	// TemplateVersion is the prompt template version used.
	TemplateVersion string

	// Cost is the accounting entry for this request.
	Cost *CostRecord
}
