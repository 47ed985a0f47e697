package llm

import (
	"encoding/json"
	"strings"
)

const chatSystemPrompt = `You are Elva, a warm and capable personal assistant.
Answer conversationally and concisely. When the user shares feelings, respond
with empathy before offering help.`

const rewriteSystemPrompt = `You are Elva. Rewrite the draft below so it reads
friendly, clear and professional. Keep every fact, name, date and address from
the draft. Reply with the rewritten text only.`

// structuredSystemPrompt asks for a short, reviewable summary of the action
// described by intentData.
func structuredSystemPrompt(intentData map[string]any) string {
	var sb strings.Builder
	sb.WriteString("You are Elva, a precise personal assistant. ")
	sb.WriteString("The user asked for an action that will be shown to them for approval before it runs. ")
	sb.WriteString("Summarize what will be done in a few short lines, listing the key details.")

	if len(intentData) > 0 {
		if data, err := json.Marshal(intentData); err == nil {
			sb.WriteString("\n\nExtracted details:\n")
			sb.Write(data)
		}
	}
	return sb.String()
}
