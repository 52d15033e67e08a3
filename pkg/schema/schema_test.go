package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/pkg/schema"
	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/vcs"
	"github.com/macropower/ruler/pkg/yaml"
)

type settings struct {
	Name    string        `json:"name" jsonschema:"minLength=1"`
	Timeout time.Duration `json:"timeout,omitempty"`
	Weights []float64     `json:"weights,omitempty" jsonschema:"maxItems=2"`
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	data, err := schema.NewGenerator(&settings{}).Generate()
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"required": [`)
	assert.Contains(t, out, `"name"`)
	assert.Contains(t, out, `"$ref": "#/$defs/TimeDuration"`)

	def, ok := schema.NewGenerator(&settings{}).Schema().Definitions["TimeDuration"]
	require.True(t, ok)
	assert.Equal(t, "string", def.Type)
	assert.Equal(t, "A duration such as 5s or 1h30m.", def.Description)
}

// sameNames nests two distinct types that are both named Config.
type sameNames struct {
	Scoring *score.Config `json:"scoring,omitempty"`
	VCS     *vcs.Config   `json:"vcs,omitempty"`
	Name    string        `json:"name"`
}

func TestGenerator_SameTypeNames(t *testing.T) {
	t.Parallel()

	s := schema.NewGenerator(&sameNames{}).Schema()

	var props []string
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props = append(props, pair.Key)
	}

	assert.Equal(t, []string{"scoring", "vcs", "name"}, props)
	assert.Contains(t, s.Definitions, "ScoreConfig")
	assert.Contains(t, s.Definitions, "VcsConfig")

	v := schema.MustNewValidatorFor("https://example.com/same.json", &sameNames{})

	var data any
	require.NoError(t, yaml.Unmarshal([]byte("name: api\nscoring:\n  threshold: 0.5\nvcs:\n  lookback: 24h\n"), &data))
	require.NoError(t, v.Validate(data))

	var misplaced any
	require.NoError(t, yaml.Unmarshal([]byte("name: api\nvcs:\n  threshold: 0.5\n"), &misplaced))

	var yamlErr *yaml.Error
	require.ErrorAs(t, v.Validate(misplaced), &yamlErr)
	assert.Equal(t, "$.vcs", yamlErr.Path.String())
}

func TestNewValidator(t *testing.T) {
	t.Parallel()

	_, err := schema.NewValidator("https://example.com/s.json", []byte("{"))
	require.ErrorContains(t, err, "unmarshal schema")

	_, err = schema.NewValidator("https://example.com/s.json", []byte(`{"type": 5}`))
	require.ErrorContains(t, err, "compile schema")

	_, err = schema.NewValidator("https://example.com/s.json", []byte(`{"type": "object"}`))
	require.NoError(t, err)
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	v := schema.MustNewValidatorFor("https://example.com/settings.json", &settings{})

	tcs := map[string]struct {
		input    string
		wantPath string
		wantErr  bool
	}{
		"valid": {
			input: "name: api\ntimeout: 5s\n",
		},
		"missing name": {
			input:    "timeout: 5s\n",
			wantErr:  true,
			wantPath: "$",
		},
		"bad duration": {
			input:    "name: api\ntimeout: soon\n",
			wantErr:  true,
			wantPath: "$.timeout",
		},
		"too many weights": {
			input:    "name: api\nweights: [1, 2, 3]\n",
			wantErr:  true,
			wantPath: "$.weights",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var data any
			require.NoError(t, yaml.Unmarshal([]byte(tc.input), &data))

			err := v.Validate(data)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())
		})
	}
}
