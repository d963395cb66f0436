package composer

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// Embedded default instruction texts. A TemplateStore can override any
// of these per deployment.
const (
	defaultSystem = `You are a knowledge copilot. Answer questions using only the provided
document context. If the context does not contain the answer, say so
plainly instead of guessing.`

	defaultClarify = `The retrieved context is not strong enough to answer confidently.
Do NOT answer the question. Instead, ask one short clarifying question
that would help narrow the request down, and mention which of the
available documents look closest to the topic.`

	defaultCitation = `Cite every fact with its source in the form [filename#chunk].
List the sources you used at the end of the answer.`
)

// templateV120 is the current production template: full section
// headers, tagged context blocks and explicit response instructions.
func templateV120(in Input) string {
	var sb strings.Builder

	sb.WriteString(in.System)
	sb.WriteString("\n\n# Context\n")
	writeContext(&sb, in)

	if len(in.History) > 0 {
		sb.WriteString("\n# Conversation so far\n")
		writeHistory(&sb, in.History)
	}

	sb.WriteString("\n# Question\n")
	sb.WriteString(in.Query)
	sb.WriteString("\n\n# Response instructions\n")
	writeResponseInstructions(&sb, in)

	return sb.String()
}

// templateV110 is the previous compact template, kept registered so
// prompt versions can be compared side by side.
func templateV110(in Input) string {
	var sb strings.Builder

	sb.WriteString(in.System)
	sb.WriteString("\n\nContext:\n")
	writeContext(&sb, in)

	if len(in.History) > 0 {
		sb.WriteString("\nHistory:\n")
		writeHistory(&sb, in.History)
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(in.Query)
	sb.WriteString("\n")
	writeResponseInstructions(&sb, in)

	return sb.String()
}

// writeContext renders the retrieved evidence. Each chunk is tagged
// with its source filename and chunk index so citations can be
// extracted from the completion later.
func writeContext(sb *strings.Builder, in Input) {
	if in.Summary != "" {
		sb.WriteString("[summarised from ")
		sb.WriteString(strings.Join(sourceNames(in.Matches), ", "))
		sb.WriteString("]\n")
		sb.WriteString(in.Summary)
		sb.WriteString("\n")
		return
	}

	if len(in.Matches) == 0 {
		sb.WriteString("(no matching documents)\n")
		return
	}

	for i := range in.Matches {
		m := &in.Matches[i]
		fmt.Fprintf(sb, "[source: %s#%d]\n%s\n\n", m.Filename, m.Position, m.Content)
	}
}

func writeHistory(sb *strings.Builder, history []domain.ConversationTurn) {
	for i := range history {
		role := "User"
		if history[i].Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(sb, "%s: %s\n", role, history[i].Content)
	}
}

func writeResponseInstructions(sb *strings.Builder, in Input) {
	if in.Outcome == domain.OutcomeClarify {
		sb.WriteString(in.Clarify)
		if len(in.AvailableDocuments) > 0 {
			sb.WriteString("\nAvailable documents: ")
			sb.WriteString(strings.Join(in.AvailableDocuments, ", "))
		}
		sb.WriteString("\n")
		return
	}
	sb.WriteString(in.Citation)
	sb.WriteString("\n")
}

func sourceNames(matches []domain.Match) []string {
	seen := make(map[string]bool, len(matches))
	var names []string
	for i := range matches {
		f := matches[i].Filename
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		names = append(names, f)
	}
	return names
}
