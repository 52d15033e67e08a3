package engine

import (
	"maps"
	"slices"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/questionnaire"
	"github.com/macropower/ruler/pkg/score"
)

// Session is the state of one selection run. It is a value that serializes
// to JSON, so it can be handed to a client and sent back.
type Session struct {
	// Profile holds the effective value of every attribute.
	Profile map[string]attr.Value `json:"profile"`
	// Current holds previously agreed values. They only affect labels.
	Current  map[string]attr.Value `json:"current,omitempty"`
	Root     string                `json:"root"`
	Warnings []string              `json:"warnings,omitempty"`
	Step     questionnaire.Step    `json:"step"`
	State    questionnaire.State   `json:"state"`
}

// Pending returns the questions awaiting an answer.
func (s Session) Pending() []questionnaire.Question {
	return s.Step.Questions
}

// Done reports whether every tier has been answered.
func (s Session) Done() bool {
	return s.Step.Done
}

func (s Session) clone() Session {
	out := s
	out.Profile = cloneValues(s.Profile)
	out.Current = cloneValues(s.Current)
	out.Warnings = slices.Clone(s.Warnings)

	out.State.Resolutions = make(map[string]score.Resolution, len(s.State.Resolutions))
	for k, r := range s.State.Resolutions {
		r.Evidence = slices.Clone(r.Evidence)
		r.Alternatives = slices.Clone(r.Alternatives)
		out.State.Resolutions[k] = r
	}

	out.State.Answers = make([]questionnaire.Answer, len(s.State.Answers))
	for i, a := range s.State.Answers {
		a.Values = slices.Clone(a.Values)
		out.State.Answers[i] = a
	}

	out.Step = cloneStep(s.Step)

	return out
}

func cloneStep(s questionnaire.Step) questionnaire.Step {
	out := s
	out.Facts = slices.Clone(s.Facts)

	out.Questions = make([]questionnaire.Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = slices.Clone(q.Options)
		out.Questions[i] = q
	}

	return out
}

func cloneValues(m map[string]attr.Value) map[string]attr.Value {
	if m == nil {
		return nil
	}

	out := make(map[string]attr.Value, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out[k] = slices.Clone(m[k])
	}

	return out
}
