package evidence

import (
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/dustin/go-humanize"

	"github.com/macropower/ruler/pkg/signal"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxFiles    = 20000
	DefaultMaxFileSize = "1 MiB"
)

var ErrInvalidConfig = errors.New("invalid evidence config")

// Config configures evidence collection.
type Config struct {
	// Timeout bounds each source.
	Timeout time.Duration `json:"timeout,omitempty" jsonschema:"title=Source Timeout"`
	// MaxFileSize is the largest file read, e.g. "512 KiB".
	MaxFileSize string `json:"maxFileSize,omitempty" jsonschema:"title=Max File Size"`
	// Ignore lists doublestar patterns, relative to the project root, of
	// paths to skip in addition to the built-in ignored directories.
	Ignore []string `json:"ignore,omitempty" jsonschema:"title=Ignore Patterns"`
	// Disable lists sources to skip.
	Disable []signal.Source `json:"disable,omitempty" jsonschema:"title=Disabled Sources"`
	// MaxFiles bounds how many files are visited per source.
	MaxFiles int `json:"maxFiles,omitempty" jsonschema:"title=Max Files,minimum=1"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills unset fields.
func (c *Config) EnsureDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}

	if c.MaxFileSize == "" {
		c.MaxFileSize = DefaultMaxFileSize
	}
}

// Validate checks the size and patterns.
func (c *Config) Validate() error {
	if _, err := c.maxFileSize(); err != nil {
		return err
	}

	for _, p := range c.Ignore {
		if _, err := doublestar.Match(p, "a"); err != nil {
			return fmt.Errorf("%w: ignore pattern %q: %w", ErrInvalidConfig, p, err)
		}
	}

	for _, s := range c.Disable {
		switch s {
		case signal.Manifest, signal.CodePattern, signal.VCSHistory, signal.Environment:
		default:
			return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, s)
		}
	}

	return nil
}

func (c *Config) maxFileSize() (int64, error) {
	size, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: maxFileSize %q: %w", ErrInvalidConfig, c.MaxFileSize, err)
	}

	return int64(size), nil //nolint:gosec // G115: sizes are small.
}

// NewWalker creates a [Walker] from the configuration.
func (c *Config) NewWalker() (*Walker, error) {
	size, err := c.maxFileSize()
	if err != nil {
		return nil, err
	}

	return &Walker{
		ignore:      c.Ignore,
		maxFiles:    c.MaxFiles,
		maxFileSize: size,
	}, nil
}
