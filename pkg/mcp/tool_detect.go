package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/ruler/api/v1beta1/projectconfigs"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/questionnaire"
)

// ErrOutsideRoot is returned for tool paths that leave the server root.
var ErrOutsideRoot = errors.New("path is outside the server root")

// DetectParams defines parameters for the detect tool.
type DetectParams struct {
	Answers map[string][]string `json:"answers,omitempty"`
	Path    string              `json:"path"`
}

// SessionResult describes a session after detect or answer.
type SessionResult struct {
	Profile   map[string]attr.Value    `json:"profile"`
	SessionID string                   `json:"sessionId"`
	Message   string                   `json:"message"`
	Tier      string                   `json:"tier"`
	Warnings  []string                 `json:"warnings,omitempty"`
	Facts     []questionnaire.Fact     `json:"facts,omitempty"`
	Questions []questionnaire.Question `json:"questions"`
	Done      bool                     `json:"done"`
}

func detectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "detect",
		Description: "Collect evidence about the project at a path and start a selection session. You MUST specify a path.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": stringSchema("The project directory, relative to the server root."),
				"answers": {
					Type:        "object",
					Description: "Optional answers known up front, keyed by attribute. These attributes are never asked.",
					AdditionalProperties: &jsonschema.Schema{
						Type:  "array",
						Items: &jsonschema.Schema{Type: "string"},
					},
				},
			},
			Required: []string{"path"},
		},
		OutputSchema: resultSchema("The new session and its pending questions."),
	}
}

// handleDetect handles the detect tool call.
func (s *Server) handleDetect(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[DetectParams],
) (*mcp.CallToolResultFor[SessionResult], error) {
	root, err := s.resolve(params.Arguments.Path)
	if err != nil {
		return invalidInput[SessionResult](err), nil
	}

	opts, err := projectOpts(root)
	if err != nil {
		return invalidInput[SessionResult](err), nil
	}

	if len(params.Arguments.Answers) > 0 {
		answers := make(map[string]attr.Value, len(params.Arguments.Answers))
		for k, v := range params.Arguments.Answers {
			answers[k] = v
		}

		opts = append(opts, engine.WithAnswers(answers))
	}

	session, err := s.engine.Detect(ctx, root, opts...)
	if err != nil {
		return invalidInput[SessionResult](err), nil
	}

	id := s.sessions.Add(session)

	log.WithContext(ctx).DebugContext(ctx, "started session",
		slog.String("session", id),
		slog.String("root", root),
		slog.Int("pending", len(session.Pending())),
	)

	return newSessionResult(id, session), nil
}

// projectOpts reads answers and current values from the project file in
// root, if there is one.
func projectOpts(root string) ([]engine.DetectOpt, error) {
	pc, _, err := projectconfigs.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load project config: %w", err)
	}

	if pc == nil {
		return nil, nil
	}

	return []engine.DetectOpt{
		engine.WithAnswers(pc.Answers),
		engine.WithCurrent(pc.Current),
	}, nil
}

// resolve joins relative paths to the server root and rejects paths, after
// following symlinks, that are not within it.
func (s *Server) resolve(path string) (string, error) {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}

	p = filepath.Clean(p)

	resolved, err := filepath.EvalSymlinks(p)
	switch {
	case err == nil:
		p = resolved
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return p, nil
}

func newSessionResult(id string, session engine.Session) *mcp.CallToolResultFor[SessionResult] {
	result := SessionResult{
		SessionID: id,
		Profile:   session.Profile,
		Tier:      session.Step.Tier.String(),
		Warnings:  session.Warnings,
		Facts:     session.Step.Facts,
		Questions: session.Pending(),
		Done:      session.Done(),
	}
	if result.Questions == nil {
		result.Questions = []questionnaire.Question{}
	}

	result.Message = fmt.Sprintf("Session %s, %s tier.", id, result.Tier)
	if result.Done {
		result.Message = fmt.Sprintf("Session %s is complete.", id)
	}

	return &mcp.CallToolResultFor[SessionResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message + "\n" + formatQuestions(result.Questions)},
		},
		StructuredContent: result,
	}
}

// invalidInput reports an error the caller can correct.
func invalidInput[Out any](err error) *mcp.CallToolResultFor[Out] {
	return &mcp.CallToolResultFor[Out]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "INVALID INPUT ERROR: " + err.Error()},
		},
		IsError: true,
	}
}
