package label

import (
	"slices"

	"github.com/macropower/ruler/pkg/attr"
)

// Config configures labeling.
type Config struct {
	// Precedence orders label kinds, strongest first.
	Precedence []Kind `json:"precedence,omitempty" jsonschema:"title=Precedence,enum=current,enum=detected,enum=recommended"`
	// Recommendations replace the built-in recommendation table.
	Recommendations []Recommendation `json:"recommendations,omitempty" jsonschema:"title=Recommendations"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills unset fields.
func (c *Config) EnsureDefaults() {
	if len(c.Precedence) == 0 {
		c.Precedence = slices.Clone(DefaultPrecedence)
	}
}

// New builds the [Resolver] and [Recommender] described by c.
func (c *Config) New(reg *attr.Registry) (*Resolver, *Recommender, error) {
	res, err := NewResolver(c.Precedence...)
	if err != nil {
		return nil, nil, err
	}

	rec, err := NewRecommender(reg, c.Recommendations...)
	if err != nil {
		return nil, nil, err
	}

	return res, rec, nil
}
