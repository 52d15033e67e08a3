package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/questionnaire"
)

// Prompter asks the questions of one questionnaire step. The returned map
// holds the chosen values by question ID. A missing or empty entry skips
// the question.
type Prompter interface {
	Prompt(ctx context.Context, step questionnaire.Step) (map[string][]string, error)
}

// Complete walks s through the questionnaire. With a nil [Prompter], every
// remaining question is skipped.
func Complete(ctx context.Context, eng *engine.Engine, s engine.Session, p Prompter) (engine.Session, error) {
	for !s.Done() {
		err := ctx.Err()
		if err != nil {
			return s, fmt.Errorf("questionnaire: %w", err)
		}

		if p == nil {
			s, err = eng.Skip(s)
			if err != nil {
				return s, fmt.Errorf("skip %s questions: %w", s.Step.Tier, err)
			}

			continue
		}

		answers, err := p.Prompt(ctx, s.Step)
		if err != nil {
			return s, fmt.Errorf("prompt %s questions: %w", s.Step.Tier, err)
		}

		for _, q := range s.Step.Questions {
			// An earlier answer in this tier may have settled it.
			if _, ok := s.Step.Question(q.ID); !ok {
				continue
			}

			s, err = eng.Answer(s, q.ID, answers[q.ID]...)
			if err != nil {
				return s, fmt.Errorf("answer %s: %w", q.ID, err)
			}
		}
	}

	return s, nil
}

// FormPrompter asks questions with [huh] forms, one form per tier.
type FormPrompter struct {
	theme *huh.Theme
}

// NewFormPrompter creates a [FormPrompter].
func NewFormPrompter() *FormPrompter {
	return &FormPrompter{theme: huh.ThemeCharm()}
}

// Prompt implements [Prompter].
func (p *FormPrompter) Prompt(ctx context.Context, step questionnaire.Step) (map[string][]string, error) {
	single := map[string]*string{}
	multi := map[string]*[]string{}

	fields := make([]huh.Field, 0, len(step.Questions)+1)
	if len(step.Facts) > 0 {
		fields = append(fields, huh.NewNote().
			Title("Environment").
			Description(factsText(step.Facts)))
	}

	for _, q := range step.Questions {
		if q.MultiSelect {
			values := preselected(q)
			multi[q.ID] = &values

			fields = append(fields, huh.NewMultiSelect[string]().
				Title(q.Prompt).
				Description(q.Reason).
				Options(options(q)...).
				Value(multi[q.ID]))

			continue
		}

		value := strongest(q)
		single[q.ID] = &value

		fields = append(fields, huh.NewSelect[string]().
			Title(q.Prompt).
			Description(q.Reason).
			Options(append(options(q), huh.NewOption("Skip", ""))...).
			Value(single[q.ID]))
	}

	form := huh.NewForm(huh.NewGroup(fields...).
		Title(fmt.Sprintf("%s questions", titleCase(step.Tier.String())))).
		WithTheme(p.theme)

	err := form.RunWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("run form: %w", err)
	}

	answers := make(map[string][]string, len(step.Questions))
	for id, v := range single {
		if *v != "" {
			answers[id] = []string{*v}
		}
	}

	for id, v := range multi {
		answers[id] = *v
	}

	return answers, nil
}

func options(q questionnaire.Question) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, huh.NewOption(optionText(o), o.Value))
	}

	return opts
}

// optionText appends the option label, e.g. "PostgreSQL (detected)".
func optionText(o questionnaire.Option) string {
	text := o.Text
	if text == "" {
		text = o.Value
	}

	if o.Label != "" {
		text += " (" + o.Label + ")"
	}

	return text
}

// preselected returns the labeled option values of q.
func preselected(q questionnaire.Question) []string {
	var out []string

	for _, o := range q.Options {
		if o.Label != "" {
			out = append(out, o.Value)
		}
	}

	return out
}

// strongest returns the value of the option with the strongest label.
func strongest(q questionnaire.Question) string {
	for _, k := range label.DefaultPrecedence {
		for _, o := range q.Options {
			if o.Label == string(k) {
				return o.Value
			}
		}
	}

	return ""
}

func factsText(facts []questionnaire.Fact) string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Prompt, f.Value))
	}

	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
