package evidence_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/pkg/signal"
)

// writeTree creates files below a temporary root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	return root
}

// find returns the signal for attribute and value.
func find(t *testing.T, sigs []signal.Signal, attribute, value string) signal.Signal {
	t.Helper()

	for _, s := range sigs {
		if s.Attribute == attribute && s.Value == value {
			return s
		}
	}

	require.Failf(t, "signal not found", "%s=%s in %v", attribute, value, sigs)

	return signal.Signal{}
}

func values(sigs []signal.Signal, attribute string) []string {
	var out []string
	for _, s := range sigs {
		if s.Attribute == attribute {
			out = append(out, s.Value)
		}
	}

	return out
}

func assertSorted(t *testing.T, sigs []signal.Signal) {
	t.Helper()

	for i := 1; i < len(sigs); i++ {
		assert.LessOrEqual(t, signal.Compare(sigs[i-1], sigs[i]), 0, "signals out of order at %d", i)
	}
}
