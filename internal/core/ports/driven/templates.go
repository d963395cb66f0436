package driven

// TemplateStore provides user-overridable prompt instruction text.
// Implementations may load from files, embed defaults in the binary, or
// watch a directory for edits.
type TemplateStore interface {
	// Load returns the instruction text for the given name.
	Load(name string) (string, error)

	// Reload clears cached text, forcing fresh loads on next access.
	Reload()
}

// Well-known instruction names used by the prompt composer.
const (
	// InstructionSystem is the assistant's system preamble.
	InstructionSystem = "system"

	// InstructionClarify directs the assistant to ask for
	// disambiguation instead of answering.
	InstructionClarify = "clarify"

	// InstructionCitation defines the citation output format.
	InstructionCitation = "citation"
)
