package questionnaire

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/signal"
)

// Orchestrator computes questionnaire steps.
type Orchestrator struct {
	registry *attr.Registry
	tiers    map[string]Tier
	plan     Plan
}

// Opt configures an [Orchestrator].
type Opt func(*Orchestrator)

// WithPlan replaces the built-in plan.
func WithPlan(p Plan) Opt {
	return func(o *Orchestrator) {
		o.plan = p
	}
}

// New creates an [Orchestrator].
func New(reg *attr.Registry, opts ...Opt) (*Orchestrator, error) {
	o := &Orchestrator{
		registry: reg,
		plan:     DefaultPlan(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.plan.validate(reg); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	o.tiers = map[string]Tier{}
	for _, name := range o.plan.Fundamentals {
		o.tiers[name] = TierFundamentals
	}

	for _, name := range o.plan.Strategy {
		o.tiers[name] = TierStrategy
	}

	for _, f := range o.plan.FollowUps {
		o.tiers[f.Attribute] = TierTactical
	}

	return o, nil
}

// TierOf returns the tier an attribute is asked in.
func (o *Orchestrator) TierOf(attribute string) (Tier, bool) {
	t, ok := o.tiers[attribute]
	return t, ok
}

// Next returns the first tier with pending questions. Tiers without pending
// questions are passed through; when none remain the step is done.
func (o *Orchestrator) Next(s State) Step {
	step := Step{Facts: o.facts(s)}

	for _, tier := range []Tier{TierFundamentals, TierStrategy, TierTactical} {
		if qs := o.pending(tier, s); len(qs) > 0 {
			step.Tier = tier
			step.Questions = qs

			return step
		}
	}

	step.Tier = TierTactical
	step.Done = true

	return step
}

// Effective returns the value of every attribute for s: the answer, else
// the detected value, else the default.
func (o *Orchestrator) Effective(s State) Values {
	return func(name string) attr.Value {
		if a, ok := s.Answer(name); ok && !a.Skipped() {
			return slices.Clone(attr.Value(a.Values))
		}

		if r, ok := s.Resolutions[name]; ok {
			return attr.Value{r.Value}
		}

		if a, ok := o.registry.Get(name); ok {
			return attr.Value{a.Default}
		}

		return nil
	}
}

func (o *Orchestrator) facts(s State) []Fact {
	systems := o.registry.OfKind(attr.KindSystem)
	facts := make([]Fact, 0, len(systems))

	for _, a := range systems {
		f := Fact{
			Attribute: a.Name,
			Prompt:    a.Prompt,
			Value:     a.Default,
			Source:    signal.Default,
		}
		if r, ok := s.Resolutions[a.Name]; ok {
			f.Value, f.Source = r.Value, r.Source
		}

		facts = append(facts, f)
	}

	slices.SortFunc(facts, func(a, b Fact) int { return strings.Compare(a.Attribute, b.Attribute) })

	return facts
}

func (o *Orchestrator) pending(tier Tier, s State) []Question {
	var qs []Question

	ask := func(name, because string) {
		if !o.needsAnswer(name, s) {
			return
		}

		reason := o.detectionReason(name, s)
		if because != "" {
			reason = because + "; " + reason
		}

		qs = append(qs, o.question(name, tier, reason))
	}

	switch tier {
	case TierFundamentals:
		for _, name := range o.plan.Fundamentals {
			ask(name, "")
		}

	case TierStrategy:
		for _, name := range o.plan.Strategy {
			ask(name, "")
		}

	case TierTactical:
		values := o.Effective(s)
		for _, f := range o.plan.FollowUps {
			if because, ok := f.When(values); ok {
				ask(f.Attribute, "asked because "+because)
			}
		}
	}

	return qs
}

// needsAnswer reports whether attribute has neither an answer nor a
// confident resolution.
func (o *Orchestrator) needsAnswer(attribute string, s State) bool {
	if _, ok := s.Answer(attribute); ok {
		return false
	}

	r, ok := s.Resolutions[attribute]

	return !ok || r.NeedsConfirmation
}

func (o *Orchestrator) detectionReason(attribute string, s State) string {
	r, ok := s.Resolutions[attribute]
	if !ok {
		return "not detected"
	}

	return fmt.Sprintf("detected %s with confidence %.2f", r.Value, r.Confidence)
}

func (o *Orchestrator) question(name string, tier Tier, reason string) Question {
	a, _ := o.registry.Get(name)

	q := Question{
		ID:          a.Name,
		Attribute:   a.Name,
		Prompt:      a.Prompt,
		Reason:      reason,
		Tier:        tier,
		MultiSelect: a.MultiSelect,
		Options:     make([]Option, 0, len(a.Values)),
	}
	if q.Prompt == "" {
		q.Prompt = a.Name
	}

	for _, v := range a.Values {
		q.Options = append(q.Options, Option{Value: v, Text: a.Display(v)})
	}

	return q
}

// Validate checks ans against the pending questions of step and returns it
// normalized: values are deduplicated and ordered as in the domain.
func (o *Orchestrator) Validate(step Step, ans Answer) (Answer, error) {
	q, ok := step.Question(ans.QuestionID)
	if !ok {
		if _, planned := o.tiers[ans.QuestionID]; planned {
			return Answer{}, fmt.Errorf("%w: %s", ErrQuestionNotPending, ans.QuestionID)
		}

		return Answer{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, ans.QuestionID)
	}

	if ans.Attribute != "" && ans.Attribute != q.Attribute {
		return Answer{}, fmt.Errorf("%w: question %s is about %s, not %s",
			ErrInvalidAnswer, q.ID, q.Attribute, ans.Attribute)
	}

	a, _ := o.registry.Get(q.Attribute)

	values := slices.Clone(ans.Values)
	slices.SortFunc(values, func(x, y string) int { return a.Rank(x) - a.Rank(y) })
	values = slices.Compact(values)

	if err := a.Check(values); err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrInvalidAnswer, err)
	}

	if len(values) > 1 && slices.Contains(values, attr.None) {
		return Answer{}, fmt.Errorf("%w: %s cannot be combined with other values", ErrInvalidAnswer, attr.None)
	}

	return Answer{QuestionID: q.ID, Attribute: q.Attribute, Values: values}, nil
}

// MatchOption resolves free-form input to an option value. It tries the
// exact value, then case-insensitive value or text, then the best fuzzy match
// on the option text.
func MatchOption(q Question, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty input for %s", ErrInvalidAnswer, q.ID)
	}

	if _, ok := q.Option(input); ok {
		return input, nil
	}

	for _, opt := range q.Options {
		if strings.EqualFold(opt.Value, input) || strings.EqualFold(opt.Text, input) {
			return opt.Value, nil
		}
	}

	texts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		texts[i] = opt.Text
	}

	if matches := fuzzy.Find(input, texts); len(matches) > 0 {
		return q.Options[matches[0].Index].Value, nil
	}

	return "", fmt.Errorf("%w: %q matches no option of %s", ErrInvalidAnswer, input, q.ID)
}

// ParseAnswer resolves comma-separated input into an [Answer]. Blank input
// skips the question.
func ParseAnswer(q Question, input string) (Answer, error) {
	ans := Answer{QuestionID: q.ID, Attribute: q.Attribute}

	for _, part := range strings.Split(input, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}

		v, err := MatchOption(q, part)
		if err != nil {
			return Answer{}, err
		}

		ans.Values = append(ans.Values, v)
	}

	return ans, nil
}
