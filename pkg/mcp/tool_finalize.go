package mcp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/ruler/pkg/report"
	"github.com/macropower/ruler/pkg/result"
)

// FinalizeParams defines parameters for the finalize tool.
type FinalizeParams struct {
	SessionID string `json:"sessionId"`
}

// FinalizeResult contains the selection of a session.
type FinalizeResult struct {
	Selection *result.Selection `json:"selection"`
	SessionID string            `json:"sessionId"`
	Message   string            `json:"message"`
}

func finalizeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "finalize",
		Description: "Select the rules for a session. Pending questions are treated as skipped.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"sessionId": sessionIDSchema(),
			},
			Required: []string{"sessionId"},
		},
		OutputSchema: resultSchema("The selected rules, the resolved profile and the audit trail."),
	}
}

// handleFinalize handles the finalize tool call.
func (s *Server) handleFinalize(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[FinalizeParams],
) (*mcp.CallToolResultFor[FinalizeResult], error) {
	id := params.Arguments.SessionID

	session, err := s.sessions.Get(id)
	if err != nil {
		return invalidInput[FinalizeResult](err), nil
	}

	sel, err := s.engine.Finalize(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("finalize session %s: %w", id, err)
	}

	var buf bytes.Buffer

	err = report.New(report.FormatText).Render(&buf, sel)
	if err != nil {
		return nil, fmt.Errorf("render selection: %w", err)
	}

	res := FinalizeResult{
		SessionID: id,
		Selection: sel,
		Message: fmt.Sprintf("Selected %d rules from %d categories.",
			len(sel.SelectedRules), len(sel.Categories)),
	}

	return &mcp.CallToolResultFor[FinalizeResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: res.Message + "\n" + truncateString(buf.String(), maxReportLen)},
		},
		StructuredContent: res,
	}, nil
}

const maxReportLen = 8000
