package matrices_test

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/api"
	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/api/v1beta1/matrices"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/selector"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	m, err := matrices.Default()
	require.NoError(t, err)

	assert.Equal(t, v1beta1.APIVersion, m.GetAPIVersion())
	assert.Equal(t, matrices.Kind, m.GetKind())
	assert.Contains(t, m.Core, "core/code-style")

	mx, err := m.Compile(attr.Default())
	require.NoError(t, err)

	for _, name := range []string{"Scale", "Testing", "Observability", "Team", "Real-time"} {
		c, ok := mx.Category(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, c.Tier, name)
	}
}

func TestDefault_TierInheritance(t *testing.T) {
	t.Parallel()

	m, err := matrices.Default()
	require.NoError(t, err)

	reg := attr.Default()

	mx, err := m.Compile(reg)
	require.NoError(t, err)

	sel := selector.New(reg, mx)

	for _, c := range m.Categories {
		if c.Tier == "" {
			continue
		}

		a, ok := reg.Get(c.Tier)
		require.True(t, ok)

		var prev []string

		for _, v := range a.Values {
			got := sel.Select(context.Background(), reg.Defaults().With(c.Tier, v)).Rules
			for _, r := range prev {
				assert.Contains(t, got, r, "%s=%s must include lower tiers", c.Tier, v)
			}

			prev = got
		}
	}
}

func TestDefault_NoDuplicates(t *testing.T) {
	t.Parallel()

	m, err := matrices.Default()
	require.NoError(t, err)

	reg := attr.Default()

	mx, err := m.Compile(reg)
	require.NoError(t, err)

	set := reg.Defaults().
		With(attr.Compliance, "gdpr", "hipaa").
		With(attr.DataSensitivity, "regulated").
		With(attr.Testing, "full").
		With(attr.APIStyle, "rest")

	got := selector.New(reg, mx).Select(context.Background(), set)
	assert.True(t, slices.IsSorted(got.Rules))
	assert.Equal(t, len(got.Rules), len(slices.Compact(slices.Clone(got.Rules))))
	assert.Contains(t, got.Rules, "compliance/phi-handling")
	assert.Contains(t, got.Rules, "api/rest-resource-naming")
	assert.Empty(t, got.Warnings)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		wantErr bool
	}{
		"valid": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Matrix
core: [core/style]
categories:
  - name: Go
    triggers:
      - match: language == "go"
    rules: [go/errors]
`,
		},
		"wrong kind": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
core: []
categories: []
`,
			wantErr: true,
		},
		"missing match": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Matrix
core: []
categories:
  - name: Go
    triggers:
      - exclude: true
`,
			wantErr: true,
		},
		"invalid yaml": {
			input:   "kind: [",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m, err := matrices.Parse([]byte(tc.input))
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Len(t, m.Categories, 1)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	t.Parallel()

	m, err := matrices.Parse([]byte(`apiVersion: ruler.macropower.dev/v1beta1
kind: Matrix
core: []
categories:
  - name: Broken
    triggers:
      - match: maturity == "poc"
    rules: [x]
`))
	require.NoError(t, err)

	_, err = m.Compile(attr.Default())
	require.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "matrix.yaml")
	require.NoError(t, matrices.WriteDefault(path, false))

	m, err := matrices.Load(path)
	require.NoError(t, err)

	def, err := matrices.Default()
	require.NoError(t, err)
	assert.Equal(t, def.Definition, m.Definition)

	data, err := api.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, matrices.DefaultYAML(), data)
}
