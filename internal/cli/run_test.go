package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/api/v1beta1/configs"
	"github.com/macropower/ruler/internal/cli"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/questionnaire"
	"github.com/macropower/ruler/pkg/report"
	"github.com/macropower/ruler/pkg/result"
	"github.com/macropower/ruler/pkg/signal"
)

const testConfig = `apiVersion: ruler.macropower.dev/v1beta1
kind: Configuration
vcs:
  disabled: true
`

// project writes a small Node project and a global config with history
// scanning disabled, returning both paths.
func project(t *testing.T, files map[string]string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o600))

	return dir, cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := cli.NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(t.Context())

	return stdout.String(), err
}

func TestRun(t *testing.T) {
	dir, cfg := project(t, map[string]string{
		"package.json": `{"name":"api","dependencies":{"express":"^4.19.0"}}`,
		".ruler.yaml":  "apiVersion: ruler.macropower.dev/v1beta1\nkind: ProjectConfig\nanswers:\n  scale: medium\n",
	})
	out := filepath.Join(t.TempDir(), "rules.json")

	stdout, err := execute(t, "--config", cfg, "--no-input", "-f", "json", "-o", out, dir)
	require.NoError(t, err)

	var printed map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &printed))
	assert.Equal(t, result.Kind, printed["kind"])

	b, err := os.ReadFile(out)
	require.NoError(t, err)

	sel, err := result.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, attr.Value{"medium"}, sel.Profile[attr.Scale])
	assert.NotEmpty(t, sel.SelectedRules)
	assert.NotEmpty(t, sel.Fingerprint)

	entry, ok := sel.Entry(attr.Scale)
	require.True(t, ok)
	assert.Equal(t, signal.UserAnswer, entry.Source)
}

func TestRun_Answers(t *testing.T) {
	dir, cfg := project(t, nil)
	out := filepath.Join(t.TempDir(), "rules.json")

	_, err := execute(t, "run", dir, "--config", cfg, "--no-input", "-o", out,
		"-a", "database=postgres", "-a", "team=small")
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)

	sel, err := result.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, attr.Value{"postgres"}, sel.Profile[attr.Database])
	assert.Equal(t, attr.Value{"small"}, sel.Profile[attr.Team])
}

func TestRun_Diff(t *testing.T) {
	dir, cfg := project(t, map[string]string{
		"package.json": `{"name":"api","dependencies":{"express":"^4.19.0"}}`,
	})
	out := filepath.Join(t.TempDir(), "rules.json")

	first, err := execute(t, "--config", cfg, "--no-input", "-o", out, "--diff", dir)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := execute(t, "--config", cfg, "--no-input", "-o", out, "--diff", dir)
	require.NoError(t, err)
	assert.Empty(t, second)

	third, err := execute(t, "--config", cfg, "--no-input", "-o", out, "--diff", "-a", "team=large", dir)
	require.NoError(t, err)
	assert.Contains(t, third, "+++ current")
	assert.Contains(t, third, "large")
}

func TestRun_Errors(t *testing.T) {
	dir, cfg := project(t, nil)

	tcs := map[string]struct {
		want error
		args []string
	}{
		"malformed answer": {
			args: []string{"-a", "scale"},
			want: cli.ErrInvalidAnswerFlag,
		},
		"unknown attribute": {
			args: []string{"-a", "flavor=vanilla"},
			want: engine.ErrInvalidAnswer,
		},
		"system attribute": {
			args: []string{"-a", "os=plan9"},
			want: engine.ErrInvalidAnswer,
		},
		"value outside domain": {
			args: []string{"-a", "scale=galactic"},
			want: engine.ErrInvalidAnswer,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			args := append([]string{"--config", cfg, "--no-input", dir}, tc.args...)

			_, err := execute(t, args...)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := execute(t, "--config", cfg, "--no-input", "-f", "xml", dir)
	require.ErrorIs(t, err, cli.ErrInvalidArgument)
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestRun_FreshConfig(t *testing.T) {
	dir, _ := project(t, map[string]string{
		"package.json": `{"name":"api","dependencies":{"express":"^4.19.0"}}`,
	})

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	stdout, err := execute(t, "--no-input", "-f", "json", dir)
	require.NoError(t, err)

	sel, err := result.Decode([]byte(stdout))
	require.NoError(t, err)
	assert.Equal(t, attr.Value{"express"}, sel.Profile[attr.Framework])
	assert.NotEmpty(t, sel.SelectedRules)

	_, err = os.Stat(configs.GetPath())
	require.NoError(t, err, "default config should be written on first run")

	_, err = execute(t, "detect", "-f", "json", dir)
	require.NoError(t, err)
}

func TestDetect(t *testing.T) {
	dir, cfg := project(t, map[string]string{
		"package.json": `{"name":"api","dependencies":{"express":"^4.19.0","prisma":"^5.0.0"}}`,
	})

	stdout, err := execute(t, "detect", dir, "--config", cfg, "-f", "json")
	require.NoError(t, err)

	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &d))
	assert.Contains(t, d, "profile")
	assert.Contains(t, d, "pending")

	text, err := execute(t, "detect", dir, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, text, "express")
}

func TestSchema(t *testing.T) {
	for _, kind := range []string{"config", "matrix", "project"} {
		stdout, err := execute(t, "schema", kind)
		require.NoError(t, err, kind)

		var s map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &s), kind)
		assert.Contains(t, s, "properties", kind)
	}

	_, err := execute(t, "schema", "policy")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ruler ")
}

type stubCollector struct{}

func (stubCollector) Collect(_ context.Context, _ string) ([]signal.Signal, error) {
	return nil, nil
}

// firstOption answers every question with its first option and records the
// tiers it was asked about.
type firstOption struct {
	tiers []questionnaire.Tier
}

func (p *firstOption) Prompt(_ context.Context, step questionnaire.Step) (map[string][]string, error) {
	p.tiers = append(p.tiers, step.Tier)

	answers := map[string][]string{}
	for _, q := range step.Questions {
		answers[q.ID] = []string{q.Options[0].Value}
	}

	return answers, nil
}

func TestComplete(t *testing.T) {
	t.Parallel()

	eng, err := engine.New(engine.WithCollector(stubCollector{}))
	require.NoError(t, err)

	tcs := map[string]struct {
		prompter   *firstOption
		wantPrompt bool
	}{
		"prompted": {prompter: &firstOption{}, wantPrompt: true},
		"skipped":  {},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := eng.Detect(t.Context(), t.TempDir())
			require.NoError(t, err)
			require.False(t, s.Done())

			var p cli.Prompter
			if tc.prompter != nil {
				p = tc.prompter
			}

			got, err := cli.Complete(t.Context(), eng, s, p)
			require.NoError(t, err)
			assert.True(t, got.Done())

			if !tc.wantPrompt {
				for _, a := range got.State.Answers {
					assert.True(t, a.Skipped(), a.QuestionID)
				}

				return
			}

			require.NotEmpty(t, tc.prompter.tiers)
			assert.IsNonDecreasing(t, tc.prompter.tiers)

			for _, a := range got.State.Answers {
				assert.False(t, a.Skipped(), a.QuestionID)
			}
		})
	}
}

func TestComplete_Canceled(t *testing.T) {
	t.Parallel()

	eng, err := engine.New(engine.WithCollector(stubCollector{}))
	require.NoError(t, err)

	s, err := eng.Detect(t.Context(), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = cli.Complete(ctx, eng, s, nil)
	require.ErrorIs(t, err, context.Canceled)
}
