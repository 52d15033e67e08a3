package configs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/api/v1beta1/configs"
	"github.com/macropower/ruler/pkg/config"
	"github.com/macropower/ruler/pkg/evidence"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/schema"
	"github.com/macropower/ruler/pkg/vcs"
	"github.com/macropower/ruler/pkg/yaml"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	assert.NotNil(t, cfg)
	assert.Equal(t, "ruler.macropower.dev/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())
	assert.NotNil(t, cfg.Scoring)
	assert.NotNil(t, cfg.Evidence)
	assert.NotNil(t, cfg.VCS)
	assert.NotNil(t, cfg.Labels)
	require.NoError(t, cfg.Validate())
}

func TestConfig_EnsureDefaults(t *testing.T) {
	t.Parallel()

	cfg := &configs.Config{}

	assert.Nil(t, cfg.Scoring)
	assert.Nil(t, cfg.Evidence)

	cfg.EnsureDefaults()

	assert.NotNil(t, cfg.Scoring)
	assert.NotNil(t, cfg.Evidence)
	assert.NotNil(t, cfg.VCS)
	assert.Equal(t, label.DefaultPrecedence, cfg.Labels.Precedence)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		wantErr bool
	}{
		"minimal": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
`,
		},
		"custom weights": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
scoring:
  weights:
    code-pattern: 0.8
  threshold: 0.6
`,
		},
		"weight out of range": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
scoring:
  weights:
    manifest: 2
`,
			wantErr: true,
		},
		"unknown disabled source": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
evidence:
  disable: [telemetry]
`,
			wantErr: true,
		},
		"incomplete precedence": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
labels:
  precedence: [current, detected]
`,
			wantErr: true,
		},
		"wrong kind": {
			input: `apiVersion: ruler.macropower.dev/v1beta1
kind: Matrix
`,
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			l := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			err := l.Validate()
			if err == nil {
				_, err = l.Load()
			}

			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestConfig_Write(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupPath func(t *testing.T) string
		errMsg    string
		wantErr   bool
	}{
		"new file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "config.yaml")
			},
			wantErr: false,
		},
		"existing file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				path := filepath.Join(t.TempDir(), "config.yaml")
				err := os.WriteFile(path, []byte("existing"), 0o600)
				require.NoError(t, err)

				return path
			},
			wantErr: false, // Should not overwrite existing file.
		},
		"creates parent directories": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				dir := t.TempDir()

				return filepath.Join(dir, "subdir", "config.yaml")
			},
			wantErr: false, // Should create parent directories.
		},
		"path is directory": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
			errMsg:  "path is a directory",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := configs.New()
			path := tc.setupPath(t)

			err := cfg.Write(path)

			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
			} else {
				require.NoError(t, err)
				// Verify file exists and has content.
				_, err := os.Stat(path)
				require.NoError(t, err)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupPath func(t *testing.T) string
		errMsg    string
		force     bool
		wantErr   bool
	}{
		"new file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "config.yaml")
			},
			force:   false,
			wantErr: false,
		},
		"existing file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				path := filepath.Join(t.TempDir(), "config.yaml")
				err := os.WriteFile(path, []byte("existing"), 0o600)
				require.NoError(t, err)

				return path
			},
			force:   false,
			wantErr: false, // Should not overwrite existing file.
		},
		"create parent directories": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				dir := t.TempDir()

				return filepath.Join(dir, "nested", "deep", "config.yaml")
			},
			force:   false,
			wantErr: false,
		},
		"path is directory": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			force:   false,
			wantErr: true,
			errMsg:  "path is a directory",
		},
		"force new file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "config.yaml")
			},
			force:   true,
			wantErr: false,
		},
		"force existing file creates backup": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				path := filepath.Join(t.TempDir(), "config.yaml")
				err := os.WriteFile(path, []byte("existing content"), 0o600)
				require.NoError(t, err)

				return path
			},
			force:   true,
			wantErr: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := tc.setupPath(t)

			// Record if the file existed before to check backup behavior.
			var originalContent []byte

			info, err := os.Stat(path)
			if err == nil && info.Mode().IsRegular() {
				originalContent, err = os.ReadFile(path)
				require.NoError(t, err)
			}

			err = configs.WriteDefault(path, tc.force)

			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
			} else {
				require.NoError(t, err)
				// Verify file exists and has content.
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.True(t, info.Mode().IsRegular())
				assert.Positive(t, info.Size())

				// If force=true and original content existed, verify backup was created.
				if tc.force && len(originalContent) > 0 {
					dir := filepath.Dir(path)
					entries, err := os.ReadDir(dir)
					require.NoError(t, err)

					backupFound := false
					for _, entry := range entries {
						if filepath.Ext(entry.Name()) != ".old" {
							continue
						}

						backupPath := filepath.Join(dir, entry.Name())
						backupContent, err := os.ReadFile(backupPath)
						require.NoError(t, err)
						assert.Equal(t, originalContent, backupContent, "backup should contain original content")

						backupFound = true

						break
					}

					assert.True(t, backupFound, "backup file should be created when force=true and file exists")
				}
			}
		})
	}
}

//nolint:paralleltest // We need to set environment variables, so run tests sequentially.
func TestGetPath(t *testing.T) {
	tcs := map[string]struct {
		setupEnv func(t *testing.T)
		want     string
	}{
		"XDG_CONFIG_HOME is set and not empty": {
			setupEnv: func(t *testing.T) {
				t.Helper()
				t.Setenv("XDG_CONFIG_HOME", "/custom/config")
			},
			want: "/custom/config/ruler/config.yaml",
		},
		"XDG_CONFIG_HOME is empty and HOME is set": {
			setupEnv: func(t *testing.T) {
				t.Helper()
				t.Setenv("XDG_CONFIG_HOME", "")
				t.Setenv("HOME", "/test/home")
			},
			want: "/test/home/.config/ruler/config.yaml",
		},
		"XDG_CONFIG_HOME is not set and HOME is set": {
			setupEnv: func(t *testing.T) {
				t.Helper()

				err := os.Unsetenv("XDG_CONFIG_HOME")
				require.NoError(t, err)
				t.Setenv("HOME", "/test/home")
			},
			want: "/test/home/.config/ruler/config.yaml",
		},
		"XDG_CONFIG_HOME is empty and HOME is empty": {
			setupEnv: func(t *testing.T) {
				t.Helper()
				t.Setenv("XDG_CONFIG_HOME", "")
				t.Setenv("HOME", "")
			},
			want: filepath.Join(os.TempDir(), "ruler", "config.yaml"), //nolint:usetesting // Needs to equal host.
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			if tc.setupEnv != nil {
				tc.setupEnv(t)
			}

			got := configs.GetPath()

			assert.NotEmpty(t, got)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDefaultConfigYAMLIsValid(t *testing.T) {
	t.Parallel()

	// Write the default config to a temporary file.
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "default-config.yaml")

	err := configs.WriteDefault(configPath, false)
	require.NoError(t, err)

	// Load the written config using the Loader API.
	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err)

	cfgYAML, err := cfg.MarshalYAML()
	require.NoError(t, err)

	defaultCfg := configs.New()
	defaultCfgYAML, err := defaultCfg.MarshalYAML()
	require.NoError(t, err)

	assert.YAMLEq(t, string(defaultCfgYAML), string(cfgYAML), "Default config should match the loaded config")
}

func TestConfig_MarshalYAML(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	data, err := cfg.MarshalYAML()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// Verify the marshaled YAML contains expected fields.
	yamlStr := string(data)
	assert.Contains(t, yamlStr, "apiVersion: ruler.macropower.dev/v1beta1")
	assert.Contains(t, yamlStr, "kind: Configuration")
}

func TestEmbeddedConfigMatchesSourceFile(t *testing.T) {
	t.Parallel()

	// Read the source config.yaml file.
	sourceConfig, err := os.ReadFile("config.yaml")
	require.NoError(t, err)

	// Write the embedded config to a temp file.
	tempDir := t.TempDir()
	embeddedConfigPath := filepath.Join(tempDir, "embedded-config.yaml")

	err = configs.WriteDefault(embeddedConfigPath, false)
	require.NoError(t, err)

	// Read the written embedded config.
	embeddedConfig, err := os.ReadFile(embeddedConfigPath)
	require.NoError(t, err)

	// They should be identical.
	assert.Equal(t, string(sourceConfig), string(embeddedConfig))
}

func TestUnmarshalAndValidateDefaultConfig(t *testing.T) {
	t.Parallel()

	// Write the embedded default config to a temporary file.
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "default-config.yaml")

	err := configs.WriteDefault(configPath, false)
	require.NoError(t, err)

	// Load and validate the config using the same process as the main application.
	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err, "embedded default config should load without errors")

	require.NoError(t, cfg.Validate(), "embedded default config should pass validation")

	assert.Equal(t, "ruler.macropower.dev/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())
	assert.InDelta(t, 0.7, *cfg.Scoring.Threshold, 1e-9)
	assert.Equal(t, evidence.DefaultTimeout, cfg.Evidence.Timeout)
	assert.Equal(t, vcs.DefaultCommand, cfg.VCS.Command)
}

func TestDefaultValidator_DefaultYAML(t *testing.T) {
	t.Parallel()

	var data any
	require.NoError(t, yaml.Unmarshal(configs.DefaultYAML(), &data))
	require.NoError(t, configs.DefaultValidator.Validate(data))

	written, err := configs.New().MarshalYAML()
	require.NoError(t, err)

	var roundTrip any
	require.NoError(t, yaml.Unmarshal(written, &roundTrip))
	require.NoError(t, configs.DefaultValidator.Validate(roundTrip))
}

func TestConfig_SchemaProperties(t *testing.T) {
	t.Parallel()

	s := schema.NewGenerator(configs.New()).Schema()

	for _, prop := range []string{"apiVersion", "kind", "scoring", "evidence", "vcs", "labels", "matrix"} {
		_, ok := s.Properties.Get(prop)
		assert.True(t, ok, prop)
	}

	_, ok := s.Properties.Get("precedence")
	assert.False(t, ok, "nested properties must not leak to the top level")
}
