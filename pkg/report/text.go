package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize/english"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/macropower/ruler/pkg/result"
)

type textStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	flag   lipgloss.Style
	subtle lipgloss.Style
	border lipgloss.Style
}

func (r *Renderer) styles() textStyles {
	lr := lipgloss.NewRenderer(io.Discard)
	lr.SetColorProfile(r.profile)

	return textStyles{
		title:  lr.NewStyle().Bold(true).Underline(true),
		header: lr.NewStyle().Bold(true).Padding(0, 1),
		cell:   lr.NewStyle().Padding(0, 1),
		flag:   lr.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("3")),
		subtle: lr.NewStyle().Foreground(lipgloss.Color("8")),
		border: lr.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *Renderer) text(s *result.Selection) string {
	st := r.styles()

	var b strings.Builder

	if s.Root != "" {
		fmt.Fprintf(&b, "%s %s\n\n", st.title.Render("Project"), s.Root)
	}

	b.WriteString(st.title.Render("Profile"))
	b.WriteString("\n")
	b.WriteString(r.profileTable(st, s))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s from %s\n",
		st.title.Render("Rules"),
		english.Plural(len(s.SelectedRules), "rule", ""),
		english.Plural(len(s.Categories), "category", "categories"),
	)

	for _, rule := range s.SelectedRules {
		fmt.Fprintf(&b, "  %s %s\n", rule, st.subtle.Render("["+strings.Join(s.Provenance[rule], ", ")+"]"))
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(st.title.Render("Warnings"))
		b.WriteString("\n")

		for _, w := range s.Warnings {
			msg := fmt.Sprintf("%s (%s): %s", w.Category, w.Kind, w.Message)
			b.WriteString(indent.String(wordwrap.String(msg, max(r.width-4, 20)), 2))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n%s\n", st.subtle.Render("fingerprint "+s.Fingerprint))

	return b.String()
}

func (r *Renderer) profileTable(st textStyles, s *result.Selection) string {
	rows := make([][]string, 0, len(s.AuditTrail))
	flagged := map[int]bool{}

	for i, e := range s.AuditTrail {
		l := s.Labels[e.Attribute]

		confirm := ""
		if e.NeedsConfirmation {
			confirm = "confirm"
			flagged[i] = true
		}

		rows = append(rows, []string{
			e.Attribute,
			e.Value.String(),
			string(l.Kind),
			string(e.Source),
			fmt.Sprintf("%.0f%%", e.Confidence*100),
			confirm,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.border).
		Headers("ATTRIBUTE", "VALUE", "LABEL", "SOURCE", "CONFIDENCE", "").
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
