package score

import (
	"maps"
)

// Config configures scoring.
type Config struct {
	// Weights override the built-in source weights.
	Weights Weights `json:"weights,omitempty" jsonschema:"title=Source Weights"`
	// Threshold is the confidence below which detected values are confirmed
	// with the user.
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"title=Confirmation Threshold,minimum=0,maximum=1"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills unset fields.
func (c *Config) EnsureDefaults() {
	w := DefaultWeights()
	maps.Copy(w, c.Weights)
	c.Weights = w

	if c.Threshold == nil {
		t := DefaultThreshold
		c.Threshold = &t
	}
}

// Validate checks the weights and threshold.
func (c *Config) Validate() error {
	_, err := c.New()
	return err
}

// New creates the [Scorer] described by c.
func (c *Config) New() (*Scorer, error) {
	opts := []Opt{WithWeights(c.Weights)}
	if c.Threshold != nil {
		opts = append(opts, WithThreshold(*c.Threshold))
	}

	return New(opts...)
}
