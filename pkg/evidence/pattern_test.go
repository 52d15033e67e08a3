package evidence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/pkg/evidence"
	"github.com/macropower/ruler/pkg/signal"
)

func TestPatternScanner(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"main.go":             "package main\n\nimport \"github.com/gin-gonic/gin\"\n\nfunc main() { r := gin.New(); r.GET(\"/\", nil) }\n",
		"server/ws.go":        "package server\n\nvar upgrader = websocket.Upgrader{}\n",
		"server/ws_test.go":   "package server\n",
		"scripts/seed.py":     "print('seed')\n",
		"schema/api.graphql":  "type Query { ping: String }\n",
		"deploy/app.yaml":     "apiVersion: apps/v1\nkind: Deployment\n",
		"node_modules/x/a.js": "require('express')\n",
	})

	w, err := evidence.NewConfig().NewWalker()
	require.NoError(t, err)

	s := evidence.NewPatternScanner(w)
	assert.Equal(t, signal.CodePattern, s.Name())

	sigs, err := s.Collect(t.Context(), root)
	require.NoError(t, err)
	assertSorted(t, sigs)

	tcs := map[string]struct {
		attribute  string
		value      string
		confidence float64
	}{
		"go share":        {"language", "go", 0.65},
		"python share":    {"language", "python", 0.55},
		"gin import":      {"framework", "gin", 0.6},
		"rest routes":     {"api_style", "rest", 0.5},
		"websocket":       {"realtime_transport", "websocket", 0.6},
		"realtime":        {"realtime", "basic", 0.5},
		"graphql schema":  {"api_style", "graphql", 0.7},
		"kubernetes yaml": {"infra", "kubernetes", 0.6},
		"test density":    {"testing", "basic", 0.5},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := find(t, sigs, tc.attribute, tc.value)
			assert.InDelta(t, tc.confidence, got.RawConfidence, 1e-9)
			assert.NotEmpty(t, got.Evidence)
		})
	}

	assert.NotContains(t, values(sigs, "framework"), "express", "ignored directories are not scanned")
}

func TestPatternScanner_Empty(t *testing.T) {
	t.Parallel()

	w, err := evidence.NewConfig().NewWalker()
	require.NoError(t, err)

	sigs, err := evidence.NewPatternScanner(w).Collect(t.Context(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestPatternScanner_LanguageCap(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.rs": "", "b.rs": ""})

	w, err := evidence.NewConfig().NewWalker()
	require.NoError(t, err)

	sigs, err := evidence.NewPatternScanner(w).Collect(t.Context(), root)
	require.NoError(t, err)

	got := find(t, sigs, "language", "rust")
	assert.InDelta(t, 0.7, got.RawConfidence, 1e-9)
	assert.Equal(t, []string{"2 of 2 source files are rust"}, got.Evidence)
	assert.Empty(t, values(sigs, "testing"))
}
