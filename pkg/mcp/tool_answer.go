package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/log"
)

// AnswerParams defines parameters for the answer tool.
type AnswerParams struct {
	SessionID  string   `json:"sessionId"`
	QuestionID string   `json:"questionId"`
	Values     []string `json:"values"`
}

func answerTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "answer",
		Description: "Answer one pending question of a session. You MUST use a question id and option values from the latest detect or answer output EXACTLY.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"sessionId":  sessionIDSchema(),
				"questionId": stringSchema("The id of a pending question."),
				"values": {
					Type:        "array",
					Description: "The chosen option values. Leave empty to skip the question.",
					Items:       &jsonschema.Schema{Type: "string"},
				},
			},
			Required: []string{"sessionId", "questionId"},
		},
		OutputSchema: resultSchema("The session and its remaining pending questions."),
	}
}

// handleAnswer handles the answer tool call.
func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[AnswerParams],
) (*mcp.CallToolResultFor[SessionResult], error) {
	args := params.Arguments

	session, err := s.sessions.Update(args.SessionID, func(cur engine.Session) (engine.Session, error) {
		return s.engine.Answer(cur, args.QuestionID, args.Values...) //nolint:wrapcheck // Reported as is.
	})
	if err != nil {
		return invalidInput[SessionResult](err), nil
	}

	log.WithContext(ctx).DebugContext(ctx, "answered question",
		slog.String("session", args.SessionID),
		slog.String("question", args.QuestionID),
		slog.Any("values", args.Values),
	)

	return newSessionResult(args.SessionID, session), nil
}
