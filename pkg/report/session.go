package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize/english"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/questionnaire"
	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/yaml"
)

// Detection summarizes a session for display.
type Detection struct {
	Profile     map[string]attr.Value    `json:"profile"`
	Root        string                   `json:"root"`
	Resolutions []score.Resolution       `json:"resolutions"`
	Facts       []questionnaire.Fact     `json:"facts,omitempty"`
	Pending     []questionnaire.Question `json:"pending"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// NewDetection summarizes s. Resolutions are sorted by attribute.
func NewDetection(s engine.Session) Detection {
	d := Detection{
		Root:        s.Root,
		Profile:     s.Profile,
		Facts:       s.Step.Facts,
		Pending:     s.Pending(),
		Warnings:    s.Warnings,
		Resolutions: make([]score.Resolution, 0, len(s.State.Resolutions)),
	}

	for _, name := range slices.Sorted(maps.Keys(s.State.Resolutions)) {
		d.Resolutions = append(d.Resolutions, s.State.Resolutions[name])
	}

	if d.Pending == nil {
		d.Pending = []questionnaire.Question{}
	}

	return d
}

// RenderSession writes the detection state of s to w.
func (r *Renderer) RenderSession(w io.Writer, s engine.Session) error {
	d := NewDetection(s)

	var (
		b   []byte
		err error
	)

	switch r.format {
	case FormatJSON:
		b, err = json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}

		b = append(b, '\n')

	case FormatYAML:
		b, err = yaml.Marshal(d)
		if err != nil {
			return err //nolint:wrapcheck // Already wrapped.
		}

	case FormatText:
		_, err = io.WriteString(w, r.detectionText(d))
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, r.format)
	}

	return r.writeHighlighted(w, string(r.format), b)
}

func (r *Renderer) detectionText(d Detection) string {
	st := r.styles()

	var b strings.Builder

	if d.Root != "" {
		fmt.Fprintf(&b, "%s %s\n\n", st.title.Render("Project"), d.Root)
	}

	if len(d.Facts) > 0 {
		b.WriteString(st.title.Render("Environment"))
		b.WriteString("\n")

		for _, f := range d.Facts {
			fmt.Fprintf(&b, "  %s: %s\n", f.Prompt, f.Value)
		}

		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s\n",
		st.title.Render("Detected"),
		english.Plural(len(d.Resolutions), "attribute", ""),
	)

	if len(d.Resolutions) > 0 {
		b.WriteString(r.resolutionTable(st, d.Resolutions))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n",
		st.title.Render("Pending"),
		english.Plural(len(d.Pending), "question", ""),
	)

	for _, q := range d.Pending {
		fmt.Fprintf(&b, "  %s %s\n", q.Prompt, st.subtle.Render("("+q.ID+")"))

		if q.Reason != "" {
			b.WriteString(indent.String(wordwrap.String(q.Reason, max(r.width-6, 20)), 4))
			b.WriteString("\n")
		}

		for _, opt := range q.Options {
			line := "    - " + opt.Text
			if opt.Label != "" {
				line += " " + st.subtle.Render("("+opt.Label+")")
			}

			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	for _, w := range d.Warnings {
		b.WriteString("\n")
		b.WriteString(st.flag.Render("warning"))
		b.WriteString(indent.String(wordwrap.String(w, max(r.width-4, 20)), 2))
		b.WriteString("\n")
	}

	return b.String()
}

func (r *Renderer) resolutionTable(st textStyles, rs []score.Resolution) string {
	rows := make([][]string, 0, len(rs))
	flagged := map[int]bool{}

	for i, res := range rs {
		alts := make([]string, 0, len(res.Alternatives))
		for _, a := range res.Alternatives {
			alts = append(alts, fmt.Sprintf("%s %.0f%%", a.Value, a.Confidence*100))
		}

		if res.NeedsConfirmation {
			flagged[i] = true
		}

		rows = append(rows, []string{
			res.Attribute,
			res.Value,
			string(res.Source),
			fmt.Sprintf("%.0f%%", res.Confidence*100),
			strings.Join(alts, ", "),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.border).
		Headers("ATTRIBUTE", "VALUE", "SOURCE", "CONFIDENCE", "ALTERNATIVES").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return st.header
			case flagged[row]:
				return st.flag
			}

			return st.cell
		})

	return t.String()
}
