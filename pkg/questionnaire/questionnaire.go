// Package questionnaire sequences the questions that fill gaps left by
// detection.
//
// Questions are grouped in tiers that are visited in order:
//
//   - [TierFacts]: system facts, shown but never asked
//   - [TierFundamentals]: what the project is
//   - [TierStrategy]: how it must be operated
//   - [TierTactical]: follow-ups unlocked by earlier values
//
// [Orchestrator.Next] is a pure function of a [State], so a caller may
// persist the resolutions and answers and resume at any point.
package questionnaire

import (
	"errors"
	"fmt"
	"slices"

	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/signal"
)

// Tier is a stage of the questionnaire.
type Tier int

const (
	TierFacts Tier = iota
	TierFundamentals
	TierStrategy
	TierTactical
)

var tierNames = []string{"facts", "fundamentals", "strategy", "tactical"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier(%d)", int(t))
	}

	return tierNames[t]
}

var (
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrQuestionNotPending = errors.New("question is not pending")
	ErrInvalidAnswer      = errors.New("invalid answer")
)

// Option is a selectable answer.
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
	// Label marks the option as current, detected or recommended.
	Label string `json:"label,omitempty"`
}

// Question asks for the value of one attribute. Its ID is the attribute
// name.
type Question struct {
	ID        string   `json:"id"`
	Attribute string   `json:"attribute"`
	Prompt    string   `json:"prompt"`
	Reason    string   `json:"reason,omitempty"`
	Options   []Option `json:"options"`
	Tier      Tier     `json:"tier"`
	// MultiSelect questions accept more than one value.
	MultiSelect bool `json:"multiSelect,omitempty"`
}

// Option returns the option for value.
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}

	return Option{}, false
}

// Answer is the caller's response to a [Question]. Empty values skip the
// question, leaving the attribute to its default.
type Answer struct {
	QuestionID string   `json:"questionId"`
	Attribute  string   `json:"attribute"`
	Values     []string `json:"values"`
}

// Skipped reports whether the answer carries no values.
func (a Answer) Skipped() bool {
	return len(a.Values) == 0
}

// Fact is a system attribute displayed for context.
type Fact struct {
	Attribute string        `json:"attribute"`
	Prompt    string        `json:"prompt"`
	Value     string        `json:"value"`
	Source    signal.Source `json:"source"`
}

// State is everything the questionnaire depends on.
type State struct {
	Resolutions map[string]score.Resolution `json:"resolutions"`
	Answers     []Answer                    `json:"answers,omitempty"`
}

// Answer returns the last answer for attribute.
func (s State) Answer(attribute string) (Answer, bool) {
	for i := len(s.Answers) - 1; i >= 0; i-- {
		if s.Answers[i].Attribute == attribute {
			return s.Answers[i], true
		}
	}

	return Answer{}, false
}

// Step is the questionnaire position for a [State].
type Step struct {
	Facts     []Fact     `json:"facts,omitempty"`
	Questions []Question `json:"questions,omitempty"`
	Tier      Tier       `json:"tier"`
	// Done is set once no tier has pending questions.
	Done bool `json:"done"`
}

// Question returns the pending question with id.
func (s Step) Question(id string) (Question, bool) {
	i := slices.IndexFunc(s.Questions, func(q Question) bool { return q.ID == id })
	if i < 0 {
		return Question{}, false
	}

	return s.Questions[i], true
}
