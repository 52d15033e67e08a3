package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/api/v1beta1/configs"
	"github.com/macropower/ruler/pkg/config"
	"github.com/macropower/ruler/pkg/yaml"
)

func createTempFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestNewLoaderFromFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupFile func(t *testing.T) string
		wantErr   bool
	}{
		"valid file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return createTempFile(t, "apiVersion: ruler.macropower.dev/v1beta1\nkind: Configuration\n")
			},
			wantErr: false,
		},
		"non-existent file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return "/non/existent/file.yaml"
			},
			wantErr: true,
		},
		"directory instead of file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := tc.setupFile(t)

			got, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)

			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, path, got.Path())
			}
		})
	}
}

func TestLoader_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		wantKind jsonschema.ErrorKind
		input    string
		wantPath string
		errMsg   string
		wantErr  bool
	}{
		"valid config": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
scoring:
  threshold: 0.6
vcs:
  lookback: 24h
`,
			wantErr: false,
		},
		"invalid yaml": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields": {
			input: `scoring:
  threshold: 0.6
`,
			wantErr:  true,
			wantPath: "$",
			wantKind: &kind.Required{},
		},
		"threshold out of range": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
scoring:
  threshold: 3
`,
			wantErr:  true,
			wantPath: "$.scoring.threshold",
			wantKind: &kind.Maximum{},
		},
		"unknown property": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
vcs:
  threshold: 0.6
`,
			wantErr:  true,
			wantPath: "$.vcs",
			wantKind: &kind.AdditionalProperties{},
		},
		"bad duration": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
evidence:
  timeout: soon
`,
			wantErr:  true,
			wantPath: "$.evidence.timeout",
			wantKind: &kind.Pattern{},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			err := cl.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)

			if tc.errMsg != "" {
				assert.Contains(t, err.Error(), tc.errMsg)
			}

			if tc.wantKind == nil {
				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())

			var validationErr *jsonschema.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.True(t, hasKind(validationErr, tc.wantKind), "want %T in %v", tc.wantKind, validationErr)
		})
	}
}

// hasKind reports whether err or any of its causes has the same error kind
// type as want.
func hasKind(err *jsonschema.ValidationError, want jsonschema.ErrorKind) bool {
	if reflect.TypeOf(err.ErrorKind) == reflect.TypeOf(want) {
		return true
	}

	for _, cause := range err.Causes {
		if hasKind(cause, want) {
			return true
		}
	}

	return false
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		wantIs  error
		input   string
		errMsg  string
		wantErr bool
	}{
		"valid config": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
evidence:
  timeout: 2s
`,
			wantErr: false,
		},
		"invalid yaml": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"kind is checked": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Matrix
`,
			wantErr: true,
			wantIs:  v1beta1.ErrInvalidTypeMeta,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			cfg, err := cl.Load()
			if tc.wantErr {
				require.Error(t, err)

				if tc.wantIs != nil {
					require.ErrorIs(t, err, tc.wantIs)
				} else {
					assert.Contains(t, err.Error(), tc.errMsg)
				}

				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, cfg.Scoring)
			}
		})
	}
}

type rejectAll struct{}

func (rejectAll) Validate(any) error { return errors.New("rejected") }

func TestWithValidator(t *testing.T) {
	t.Parallel()

	path := createTempFile(t, "apiVersion: ruler.macropower.dev/v1beta1\nkind: Configuration\n")

	cl, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator, config.WithValidator(rejectAll{}))
	require.NoError(t, err)

	err = cl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "rejected")
}
