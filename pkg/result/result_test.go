package result_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/result"
	"github.com/macropower/ruler/pkg/selector"
	"github.com/macropower/ruler/pkg/signal"
)

func input() result.Input {
	return result.Input{
		Root: "/src/app",
		Entries: []result.Entry{
			{
				Attribute:  "language",
				Value:      attr.Value{"python"},
				Source:     signal.Manifest,
				Confidence: 0.9,
				Evidence:   []string{"found pyproject.toml"},
			},
			{
				Attribute: "database",
				Value:     attr.Value{"none"},
				Source:    signal.Default,
			},
		},
		Labels: map[string]label.Label{
			"language": {Kind: label.Detected, Value: "python"},
			"database": {Kind: label.Recommended, Value: "none"},
		},
		Selection: selector.Selection{
			Rules:      []string{"core-style", "python-api"},
			Categories: []string{"Backend>API", "core"},
			Provenance: map[string][]string{
				"core-style": {"core"},
				"python-api": {"Backend>API"},
			},
		},
	}
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	got, err := result.Assemble(input())
	require.NoError(t, err)

	assert.Equal(t, v1beta1.APIVersion, got.APIVersion)
	assert.Equal(t, result.Kind, got.Kind)
	assert.Equal(t, "/src/app", got.Root)
	assert.Equal(t, []string{"core-style", "python-api"}, got.SelectedRules)
	assert.Equal(t, []string{"Backend>API", "core"}, got.Categories)
	assert.Equal(t, map[string]attr.Value{
		"language": {"python"},
		"database": {"none"},
	}, got.Profile)

	require.Len(t, got.AuditTrail, 2)
	assert.Equal(t, "database", got.AuditTrail[0].Attribute)
	assert.True(t, got.AuditTrail[0].Defaulted())
	assert.Equal(t, "language", got.AuditTrail[1].Attribute)
	assert.False(t, got.AuditTrail[1].Defaulted())

	e, ok := got.Entry("language")
	require.True(t, ok)
	assert.InDelta(t, 0.9, e.Confidence, 1e-9)

	_, ok = got.Entry("orm")
	assert.False(t, ok)

	assert.Equal(t, "python", got.Set().First("language"))
	assert.Len(t, got.Fingerprint, 16)
}

func TestAssemble_Labels(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate func(in *result.Input)
		err    error
	}{
		"missing label": {
			mutate: func(in *result.Input) { delete(in.Labels, "database") },
			err:    label.ErrLabelConflict,
		},
		"extra label": {
			mutate: func(in *result.Input) {
				in.Labels["orm"] = label.Label{Kind: label.Detected, Value: "none"}
			},
			err: label.ErrLabelConflict,
		},
		"duplicate entry": {
			mutate: func(in *result.Input) {
				in.Entries = append(in.Entries, in.Entries[0])
			},
			err: result.ErrInvalidResult,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := input()
			tc.mutate(&in)

			_, err := result.Assemble(in)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := result.Assemble(input())
	require.NoError(t, err)

	reordered := input()
	reordered.Entries[0], reordered.Entries[1] = reordered.Entries[1], reordered.Entries[0]

	b, err := result.Assemble(reordered)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)

	jb, err := json.Marshal(b)
	require.NoError(t, err)

	assert.JSONEq(t, string(ja), string(jb))
	assert.Equal(t, ja, jb)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	profile := map[string]attr.Value{"language": {"go"}, "database": {"postgresql"}}

	a, err := result.Fingerprint(profile, []string{"core-style"})
	require.NoError(t, err)

	b, err := result.Fingerprint(map[string]attr.Value{
		"database": {"postgresql"},
		"language": {"go"},
	}, []string{"core-style"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := result.Fingerprint(profile, []string{"core-style", "go-api"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	want, err := result.Assemble(input())
	require.NoError(t, err)

	data, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := result.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, want.Profile, got.Profile)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)

	_, err = result.Decode([]byte(`{"apiVersion":"v0","kind":"SelectionResult"}`))
	require.ErrorIs(t, err, result.ErrInvalidResult)

	_, err = result.Decode([]byte(`{`))
	require.ErrorIs(t, err, result.ErrInvalidResult)
}
