package vcs

import (
	"time"
)

const (
	// DefaultCommand lists commits as hash, author email and unix time
	// separated by the ASCII unit separator.
	DefaultCommand = "git log --no-merges --format=%H%x1f%ae%x1f%ct"

	DefaultLookback   = 90 * 24 * time.Hour
	DefaultMaxCommits = 1000
)

// Config configures history scanning.
type Config struct {
	// Command is the log command. `--since` and `--max-count` arguments are
	// appended to it.
	Command string `json:"command,omitempty" jsonschema:"title=Log Command"`
	// Lookback bounds how far back commits are read.
	Lookback time.Duration `json:"lookback,omitempty" jsonschema:"title=Lookback Window"`
	// MaxCommits bounds how many commits are read.
	MaxCommits int `json:"maxCommits,omitempty" jsonschema:"title=Max Commits,minimum=1"`
	// Disabled turns history scanning off.
	Disabled bool `json:"disabled,omitempty" jsonschema:"title=Disabled"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills unset fields.
func (c *Config) EnsureDefaults() {
	if c.Command == "" {
		c.Command = DefaultCommand
	}

	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}

	if c.MaxCommits <= 0 {
		c.MaxCommits = DefaultMaxCommits
	}
}
