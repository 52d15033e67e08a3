// Package report renders a [result.Selection] for humans and machines.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/aymanbagabas/go-udiff"
	"github.com/muesli/termenv"

	"github.com/macropower/ruler/pkg/result"
	"github.com/macropower/ruler/pkg/yaml"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"

	// DefaultTheme is the chroma style used for highlighting.
	DefaultTheme = "github"
	// DefaultWidth is used for wrapping when the terminal width is unknown.
	DefaultWidth = 100
)

var (
	ErrUnknownFormat = errors.New("unknown format")

	AllFormats = []string{string(FormatText), string(FormatJSON), string(FormatYAML)}
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if slices.Contains([]Format{FormatJSON, FormatYAML, FormatText}, f) {
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Renderer writes selections in one format.
type Renderer struct {
	style   *chroma.Style
	format  Format
	profile termenv.Profile
	width   int
}

// Opt configures a [Renderer].
type Opt func(*Renderer)

// WithColor sets the color profile. [termenv.Ascii] disables color.
func WithColor(p termenv.Profile) Opt {
	return func(r *Renderer) { r.profile = p }
}

// WithTheme selects a chroma style by name. Unknown names fall back to
// chroma's default style.
func WithTheme(name string) Opt {
	return func(r *Renderer) { r.style = styles.Get(name) }
}

// WithWidth sets the wrapping width of text output.
func WithWidth(w int) Opt {
	return func(r *Renderer) {
		if w > 0 {
			r.width = w
		}
	}
}

// New creates a [Renderer]. Color is disabled unless [WithColor] is given.
func New(format Format, opts ...Opt) *Renderer {
	r := &Renderer{
		format:  format,
		profile: termenv.Ascii,
		style:   styles.Get(DefaultTheme),
		width:   DefaultWidth,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Format returns the output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render writes s to w.
func (r *Renderer) Render(w io.Writer, s *result.Selection) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		b, err := Encode(r.format, s)
		if err != nil {
			return err
		}

		return r.writeHighlighted(w, string(r.format), b)

	case FormatText:
		_, err := io.WriteString(w, r.text(s))
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownFormat, r.format)
}

// Encode serializes s as JSON or YAML. Identical selections always encode
// to identical bytes.
func Encode(format Format, s *result.Selection) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}

		return append(b, '\n'), nil

	case FormatYAML:
		b, err := yaml.Marshal(s)
		if err != nil {
			return nil, err //nolint:wrapcheck // Already wrapped.
		}

		return b, nil

	case FormatText:
	}

	return nil, fmt.Errorf("%w: %q cannot be encoded", ErrUnknownFormat, format)
}

// Diff returns a unified diff between the YAML encodings of two selections,
// or an empty string when they are equal.
func Diff(prev, next *result.Selection) (string, error) {
	a, err := Encode(FormatYAML, prev)
	if err != nil {
		return "", err
	}

	b, err := Encode(FormatYAML, next)
	if err != nil {
		return "", err
	}

	return udiff.Unified("previous", "current", string(a), string(b)), nil
}

// RenderDiff writes the diff of two selections, highlighted when color is
// enabled.
func (r *Renderer) RenderDiff(w io.Writer, prev, next *result.Selection) error {
	d, err := Diff(prev, next)
	if err != nil {
		return err
	}

	return r.writeHighlighted(w, "diff", []byte(d))
}

func (r *Renderer) writeHighlighted(w io.Writer, lang string, b []byte) error {
	if r.profile == termenv.Ascii {
		_, err := w.Write(b)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		return nil
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, string(b))
	if err != nil {
		return fmt.Errorf("lexer tokenize: %w", err)
	}

	var buf bytes.Buffer

	err = r.formatter().Format(&buf, r.style, iterator)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	_, err = buf.WriteTo(w)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func (r *Renderer) formatter() chroma.Formatter {
	switch r.profile {
	case termenv.TrueColor:
		return formatters.Get("terminal16m")

	case termenv.ANSI256:
		return formatters.Get("terminal256")

	case termenv.ANSI:
		return formatters.Get("terminal8")

	case termenv.Ascii:
	}

	return formatters.Get("noop")
}
