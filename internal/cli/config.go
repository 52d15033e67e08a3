package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/macropower/ruler/api/v1beta1/configs"
	"github.com/macropower/ruler/api/v1beta1/matrices"
	"github.com/macropower/ruler/api/v1beta1/projectconfigs"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/config"
	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/evidence"
)

var ErrInvalidAnswerFlag = errors.New("invalid --answer")

// settings is the configuration in effect for one target directory.
type settings struct {
	Config      *configs.Config
	Project     *projectconfigs.ProjectConfig
	ConfigPath  string
	ProjectPath string
	// MatrixPath is the matrix file in use. Empty means the built-in matrix.
	MatrixPath string
}

// loadSettings reads the global configuration from configPath, writing the
// default file first if there is none, and the project configuration that
// applies to target.
func loadSettings(configPath, target string) (*settings, error) {
	if configPath == "" {
		configPath = configs.GetPath()
	}

	s := &settings{
		Config:     configs.New(),
		ConfigPath: configPath,
	}

	err := configs.WriteDefault(configPath, false)
	if err != nil {
		slog.Error("write default config", slog.Any("err", err))
	}

	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	if err != nil {
		slog.Warn("could not read config, using defaults", slog.Any("err", err))
	} else {
		err = cl.Validate()
		if err != nil {
			return nil, fmt.Errorf("invalid config %q: %w", configPath, err)
		}

		s.Config, err = cl.Load()
		if err != nil {
			return nil, fmt.Errorf("invalid config %q: %w", configPath, err)
		}
	}

	if s.Config.Matrix != "" {
		s.MatrixPath = relativeTo(configPath, s.Config.Matrix)
	}

	s.Project, s.ProjectPath, err = projectconfigs.Load(target)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already annotated.
	}

	if s.Project != nil {
		slog.Debug("loaded project config", slog.String("path", s.ProjectPath))

		if s.Project.Matrix != "" {
			s.MatrixPath = relativeTo(s.ProjectPath, s.Project.Matrix)
		}

		s.Config.Evidence.Ignore = append(s.Config.Evidence.Ignore, s.Project.Ignore...)
	}

	return s, nil
}

// relativeTo resolves path against the directory of file.
func relativeTo(file, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(filepath.Dir(file), path)
}

// newEngine builds an [engine.Engine] from the settings.
func (s *settings) newEngine() (*engine.Engine, error) {
	reg := attr.Default()

	collector, err := evidence.NewDefaultCollector(s.Config.Evidence, s.Config.VCS)
	if err != nil {
		return nil, fmt.Errorf("create collector: %w", err)
	}

	scorer, err := s.Config.Scoring.New()
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}

	opts := []engine.Opt{
		engine.WithRegistry(reg),
		engine.WithCollector(collector),
		engine.WithScorer(scorer),
		engine.WithLabels(s.Config.Labels),
	}

	if s.MatrixPath != "" {
		m, err := matrices.Load(s.MatrixPath)
		if err != nil {
			return nil, fmt.Errorf("load matrix: %w", err)
		}

		compiled, err := m.Compile(reg)
		if err != nil {
			return nil, err //nolint:wrapcheck // Already annotated.
		}

		opts = append(opts, engine.WithMatrix(compiled))
	}

	eng, err := engine.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	return eng, nil
}

// detectOpts merges the project's answers with answers given on the
// command line. Command line answers win.
func (s *settings) detectOpts(answers map[string]attr.Value) []engine.DetectOpt {
	merged := map[string]attr.Value{}

	var opts []engine.DetectOpt

	if s.Project != nil {
		maps.Copy(merged, s.Project.Answers)
		opts = append(opts, engine.WithCurrent(s.Project.Current))
	}

	maps.Copy(merged, answers)

	if len(merged) > 0 {
		opts = append(opts, engine.WithAnswers(merged))
	}

	return opts
}

// parseAnswers parses repeated "attribute=value[,value]" flags.
func parseAnswers(flags []string) (map[string]attr.Value, error) {
	answers := make(map[string]attr.Value, len(flags))

	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)

		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q: expected attribute=value", ErrInvalidAnswerFlag, f)
		}

		var values attr.Value

		for v := range strings.SplitSeq(raw, ",") {
			v = strings.TrimSpace(v)
			if v != "" && !slices.Contains(values, v) {
				values = append(values, v)
			}
		}

		answers[name] = values
	}

	return answers, nil
}
