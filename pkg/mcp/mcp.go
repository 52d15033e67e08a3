package mcp

import (
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"github.com/macropower/ruler/pkg/questionnaire"
)

const (
	name         = "ruler"
	instructions = `MCP Server 'ruler' profiles a software project and selects the rules that apply to it.

REQUIRED workflow:
1. Use 'detect' with a directory path containing the project (e.g., ".", "./services/api"). It returns a sessionId and the pending questions.
2. STOP and READ the pending questions. Ask the user each question, offering the options EXACTLY as listed. Options labeled "current", "detected" or "recommended" should be presented first.
3. Use 'answer' with the sessionId, the question id and the chosen option values. Repeat until no questions are pending. An empty values list skips the question.
4. Use 'finalize' with the sessionId to get the selected rules and the audit trail.

IMPORTANT: Never invent option values. Use the option values from the latest 'detect' or 'answer' output.
`
)

func stringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func sessionIDSchema() *jsonschema.Schema {
	return stringSchema("The sessionId returned by the detect tool.")
}

// resultSchema accepts any object. Results embed types with custom JSON
// encodings that inferred schemas do not describe.
func resultSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Description: description}
}

// formatQuestions renders pending questions for the text content of a
// tool result.
func formatQuestions(qs []questionnaire.Question) string {
	if len(qs) == 0 {
		return "No questions are pending. Use 'finalize' to get the selection."
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%d pending questions:\n", len(qs))

	for _, q := range qs {
		fmt.Fprintf(&b, "- %s: %s", q.ID, q.Prompt)

		if q.MultiSelect {
			b.WriteString(" (select one or more)")
		}

		if q.Reason != "" {
			fmt.Fprintf(&b, " [%s]", q.Reason)
		}

		b.WriteString("\n")

		for _, opt := range q.Options {
			fmt.Fprintf(&b, "    %s: %s", opt.Value, opt.Text)

			if opt.Label != "" {
				fmt.Fprintf(&b, " (%s)", opt.Label)
			}

			b.WriteString("\n")
		}
	}

	return b.String()
}

// truncateString truncates a string to maxLen characters with ellipsis if needed.
func truncateString(str string, maxLen int) string {
	if str == "" {
		return ""
	}
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]"
	}

	return str
}
