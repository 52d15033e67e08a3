// Package projectconfigs provides the ProjectConfig configuration kind:
// per-project answers and previously agreed attribute values.
package projectconfigs

import (
	"fmt"
	"maps"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/macropower/ruler/api"
	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/config"
	"github.com/macropower/ruler/pkg/schema"
)

// Kind is the kind of project configuration documents.
const Kind = "ProjectConfig"

var (
	// FileNames contains the valid names for project configuration files.
	FileNames = []string{
		".ruler.yaml",
		"ruler.yaml",
	}

	// DefaultValidator validates project configuration against the JSON schema.
	DefaultValidator = schema.MustNewValidatorFor("/projectconfigs.v1beta1.json", &ProjectConfig{})

	// ValidKinds contains the valid kind values for project configurations.
	ValidKinds = []string{Kind}

	// Compile-time interface checks.
	_ v1beta1.Object = (*ProjectConfig)(nil)
)

// ProjectConfig represents project-level configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type ProjectConfig struct {
	v1beta1.TypeMeta `json:",inline"`
	// Answers pre-answer questions. Answered attributes are never asked.
	Answers map[string]attr.Value `json:"answers,omitempty" jsonschema:"title=Answers"`
	// Current holds values previously agreed for the project. They are
	// labeled "current" and take label precedence.
	Current map[string]attr.Value `json:"current,omitempty" jsonschema:"title=Current Values"`
	// Ignore adds doublestar patterns to the evidence ignore list.
	Ignore []string `json:"ignore,omitempty" jsonschema:"title=Ignore Patterns"`
	// Matrix is the path of a Matrix file, relative to this file.
	Matrix string `json:"matrix,omitempty" jsonschema:"title=Matrix Path"`
}

// New creates a new [ProjectConfig].
func New() *ProjectConfig {
	c := &ProjectConfig{TypeMeta: v1beta1.NewTypeMeta(Kind)}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *ProjectConfig) EnsureDefaults() {
	if c.Answers == nil {
		c.Answers = map[string]attr.Value{}
	}

	if c.Current == nil {
		c.Current = map[string]attr.Value{}
	}
}

// Validate checks every answer and current value against the built-in
// attributes.
func (c *ProjectConfig) Validate() error {
	return c.ValidateWith(attr.Default())
}

// ValidateWith checks every answer and current value against reg.
func (c *ProjectConfig) ValidateWith(reg *attr.Registry) error {
	err := c.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("validate project config: %w", err)
	}

	fields := []struct {
		values map[string]attr.Value
		name   string
	}{
		{name: "answers", values: c.Answers},
		{name: "current", values: c.Current},
	}

	for _, f := range fields {
		field, values := f.name, f.values
		for _, name := range slices.Sorted(maps.Keys(values)) {
			a, err := reg.Lookup(name)
			if err != nil {
				return fmt.Errorf("validate project config: %s: %w", field, err)
			}

			if a.Kind == attr.KindSystem {
				return fmt.Errorf("validate project config: %s: %w: %s is detected from the environment",
					field, attr.ErrInvalidAttribute, name)
			}

			err = a.Check(values[name])
			if err != nil {
				return fmt.Errorf("validate project config: %s: %w", field, err)
			}
		}
	}

	return nil
}

func (c ProjectConfig) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// Find searches for a project config file starting from targetPath
// and walking up the directory tree until the filesystem root.
// It checks for all [FileNames] in each directory.
// Returns the path to the config file if found, or empty string if not found.
func Find(targetPath string) (string, error) {
	path, err := api.FindConfigFile(targetPath, FileNames)
	if err != nil {
		return "", fmt.Errorf("find project config: %w", err)
	}

	return path, nil
}

// Load finds and loads the project config for targetPath. It returns nil
// without error when there is none.
func Load(targetPath string) (*ProjectConfig, string, error) {
	path, err := Find(targetPath)
	if err != nil || path == "" {
		return nil, "", err
	}

	l, err := config.NewLoaderFromFile(path, New, DefaultValidator)
	if err != nil {
		return nil, path, err //nolint:wrapcheck // Return the original error.
	}

	err = l.Validate()
	if err != nil {
		return nil, path, fmt.Errorf("validate project config: %w", err)
	}

	cfg, err := l.Load()
	if err != nil {
		return nil, path, err //nolint:wrapcheck // Already annotated.
	}

	return cfg, path, nil
}
