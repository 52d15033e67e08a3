package mcp_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/mcp"
	"github.com/macropower/ruler/pkg/signal"
)

type stubCollector struct {
	signals []signal.Signal
}

func (c stubCollector) Collect(_ context.Context, _ string) ([]signal.Signal, error) {
	return slices.Clone(c.signals), nil
}

func newServer(t *testing.T, root string, opts ...mcp.ServerOpt) *mcp.Server {
	t.Helper()

	eng, err := engine.New(engine.WithCollector(stubCollector{signals: []signal.Signal{
		signal.New(attr.Language, "go", signal.Manifest, 0.9, "go.mod"),
		signal.New(attr.Framework, "gin", signal.Manifest, 0.9, "go.mod: github.com/gin-gonic/gin"),
	}}))
	require.NoError(t, err)

	srv, err := mcp.NewServer("", eng, root, opts...)
	require.NoError(t, err)

	return srv
}

func connect(t *testing.T, srv *mcp.Server) *sdk.ClientSession {
	t.Helper()

	ctx := t.Context()
	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	serverSession, err := srv.Server().Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "client"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, clientSession.Close())
		assert.NoError(t, serverSession.Wait())
	})

	return clientSession
}

func callTool(t *testing.T, cs *sdk.ClientSession, name string, args map[string]any) *sdk.CallToolResult {
	t.Helper()

	r, err := cs.CallTool(t.Context(), &sdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, r)

	return r
}

func structured(t *testing.T, r *sdk.CallToolResult) map[string]any {
	t.Helper()

	require.False(t, r.IsError, "tool returned an error: %v", r.Content)

	m, ok := r.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content is %T", r.StructuredContent)

	return m
}

func questionIDs(t *testing.T, m map[string]any) []string {
	t.Helper()

	qs, ok := m["questions"].([]any)
	require.True(t, ok)

	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.(map[string]any)["id"].(string)) //nolint:forcetypeassert // Test data.
	}

	return ids
}

func TestServer_Workflow(t *testing.T) {
	t.Parallel()

	srv := newServer(t, t.TempDir())
	cs := connect(t, srv)

	detected := structured(t, callTool(t, cs, "detect", map[string]any{"path": "."}))

	id, ok := detected["sessionId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	assert.Equal(t, "fundamentals", detected["tier"])
	assert.Equal(t, false, detected["done"])
	assert.NotContains(t, questionIDs(t, detected), attr.Framework)
	assert.Contains(t, questionIDs(t, detected), attr.Scale)
	assert.Equal(t, 1, srv.Sessions().Len())

	answered := structured(t, callTool(t, cs, "answer", map[string]any{
		"sessionId":  id,
		"questionId": attr.Scale,
		"values":     []string{"large"},
	}))
	assert.Equal(t, id, answered["sessionId"])
	assert.NotContains(t, questionIDs(t, answered), attr.Scale)

	profile, ok := answered["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "large", profile[attr.Scale])

	final := structured(t, callTool(t, cs, "finalize", map[string]any{"sessionId": id}))

	sel, ok := final["selection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SelectionResult", sel["kind"])
	assert.Contains(t, sel["categories"], "Language>Go")
	assert.NotEmpty(t, sel["selectedRules"])
	assert.NotEmpty(t, sel["fingerprint"])
	assert.Contains(t, final["message"], "Selected")
}

func TestServer_InvalidInput(t *testing.T) {
	t.Parallel()

	srv := newServer(t, t.TempDir())
	cs := connect(t, srv)

	detected := structured(t, callTool(t, cs, "detect", map[string]any{"path": "."}))
	id := detected["sessionId"].(string) //nolint:forcetypeassert // Checked by the workflow test.

	tcs := map[string]struct {
		args map[string]any
		tool string
		want string
	}{
		"unknown session": {
			tool: "answer",
			args: map[string]any{"sessionId": "nope", "questionId": attr.Scale, "values": []string{"large"}},
			want: "unknown session",
		},
		"unknown question": {
			tool: "answer",
			args: map[string]any{"sessionId": id, "questionId": "favorite_color", "values": []string{"blue"}},
			want: "unknown question",
		},
		"question not pending": {
			tool: "answer",
			args: map[string]any{"sessionId": id, "questionId": attr.SLA, "values": []string{"99.9"}},
			want: "not pending",
		},
		"value outside the domain": {
			tool: "answer",
			args: map[string]any{"sessionId": id, "questionId": attr.Scale, "values": []string{"galactic"}},
			want: "invalid answer",
		},
		"finalize unknown session": {
			tool: "finalize",
			args: map[string]any{"sessionId": "nope"},
			want: "unknown session",
		},
		"detect unknown pre-answer": {
			tool: "detect",
			args: map[string]any{"path": ".", "answers": map[string]any{"favorite_color": []string{"blue"}}},
			want: "unknown attribute",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			r := callTool(t, cs, tc.tool, tc.args)
			require.True(t, r.IsError)
			require.NotEmpty(t, r.Content)

			text, ok := r.Content[0].(*sdk.TextContent)
			require.True(t, ok)
			assert.Contains(t, text.Text, "INVALID INPUT ERROR")
			assert.Contains(t, text.Text, tc.want)
		})
	}

	// Rejected answers leave the session untouched.
	again := structured(t, callTool(t, cs, "answer", map[string]any{
		"sessionId":  id,
		"questionId": attr.Scale,
		"values":     []string{"small"},
	}))
	assert.NotContains(t, questionIDs(t, again), attr.Scale)
}

func TestServer_ProjectConfig(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	project := filepath.Join(root, "svc")
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, ".ruler.yaml"), []byte(`apiVersion: ruler.macropower.dev/v1beta1
kind: ProjectConfig
answers:
  scale: medium
current:
  team: small
`), 0o600))

	srv := newServer(t, root)
	cs := connect(t, srv)

	detected := structured(t, callTool(t, cs, "detect", map[string]any{"path": "svc"}))
	assert.NotContains(t, questionIDs(t, detected), attr.Scale)

	profile, ok := detected["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "medium", profile[attr.Scale])
	assert.Equal(t, "solo", profile[attr.Team])

	id := detected["sessionId"].(string) //nolint:forcetypeassert // Checked above.

	final := structured(t, callTool(t, cs, "finalize", map[string]any{"sessionId": id}))
	sel := final["selection"].(map[string]any)
	labels := sel["labels"].(map[string]any)
	team := labels[attr.Team].(map[string]any)
	assert.Equal(t, map[string]any{"kind": "current", "value": "small"}, team)
}

func TestServer_SessionLimit(t *testing.T) {
	t.Parallel()

	srv := newServer(t, t.TempDir(), mcp.WithSessionLimit(2))
	cs := connect(t, srv)

	first := structured(t, callTool(t, cs, "detect", map[string]any{"path": "."}))
	callTool(t, cs, "detect", map[string]any{"path": "."})
	callTool(t, cs, "detect", map[string]any{"path": "."})

	assert.Equal(t, 2, srv.Sessions().Len())

	r := callTool(t, cs, "finalize", map[string]any{"sessionId": first["sessionId"]})
	assert.True(t, r.IsError)
}

func TestServer_DetectPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "svc"), 0o755))

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	srv := newServer(t, root)
	cs := connect(t, srv)

	tcs := map[string]struct {
		path    string
		wantErr bool
	}{
		"root":              {path: "."},
		"relative":          {path: "svc"},
		"absolute inside":   {path: filepath.Join(root, "svc")},
		"parent":            {path: "..", wantErr: true},
		"cleaned to parent": {path: "svc/../../", wantErr: true},
		"absolute outside":  {path: outside, wantErr: true},
		"symlink outside":   {path: "escape", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			r := callTool(t, cs, "detect", map[string]any{"path": tc.path})
			if !tc.wantErr {
				structured(t, r)
				return
			}

			require.True(t, r.IsError)

			text, ok := r.Content[0].(*sdk.TextContent)
			require.True(t, ok)
			assert.Contains(t, text.Text, mcp.ErrOutsideRoot.Error())
		})
	}
}
