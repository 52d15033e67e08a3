// Package configs provides the global Configuration kind for ruler.
package configs

import (
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/ruler/api"
	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/evidence"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/schema"
	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/vcs"
)

// Kind is the kind of global configuration documents.
const Kind = "Configuration"

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	// ValidKinds contains the valid kind values for global configurations.
	ValidKinds = []string{Kind}

	// DefaultValidator validates global configuration against the JSON schema.
	DefaultValidator = schema.MustNewValidatorFor("/configs.v1beta1.json", &Config{})

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the global ruler configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	v1beta1.TypeMeta `json:",inline"`
	Scoring          *score.Config    `json:"scoring,omitempty" jsonschema:"title=Scoring"`
	Evidence         *evidence.Config `json:"evidence,omitempty" jsonschema:"title=Evidence"`
	VCS              *vcs.Config      `json:"vcs,omitempty" jsonschema:"title=VCS History"`
	Labels           *label.Config    `json:"labels,omitempty" jsonschema:"title=Labels"`
	// Matrix is the path of a Matrix file replacing the built-in matrix.
	Matrix string `json:"matrix,omitempty" jsonschema:"title=Matrix Path"`
}

// New creates a new global [Config] with default values.
func New() *Config {
	c := &Config{TypeMeta: v1beta1.NewTypeMeta(Kind)}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Scoring == nil {
		c.Scoring = score.NewConfig()
	} else {
		c.Scoring.EnsureDefaults()
	}

	if c.Evidence == nil {
		c.Evidence = evidence.NewConfig()
	} else {
		c.Evidence.EnsureDefaults()
	}

	if c.VCS == nil {
		c.VCS = vcs.NewConfig()
	} else {
		c.VCS.EnsureDefaults()
	}

	if c.Labels == nil {
		c.Labels = label.NewConfig()
	} else {
		c.Labels.EnsureDefaults()
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	err := c.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if c.Scoring != nil {
		err = c.Scoring.Validate()
		if err != nil {
			return fmt.Errorf("validate scoring config: %w", err)
		}
	}

	if c.Evidence != nil {
		err = c.Evidence.Validate()
		if err != nil {
			return fmt.Errorf("validate evidence config: %w", err)
		}
	}

	if c.Labels != nil {
		_, _, err = c.Labels.New(attr.Default())
		if err != nil {
			return fmt.Errorf("validate labels config: %w", err)
		}
	}

	return nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Write writes the config to the specified path if it doesn't already exist.
func (c Config) Write(path string) error {
	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	err = api.WriteIfNotExists(path, b)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// DefaultYAML returns the embedded default configuration document.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultConfigYAML...)
}

// GetPath returns the path to the global configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
