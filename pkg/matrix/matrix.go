// Package matrix implements the context matrix: a declarative table of CEL
// trigger predicates mapping attribute sets to rule categories.
//
// Each category contributes rule identifiers either directly or through
// tiers keyed by a [attr.DomainTier] attribute. The matrix only decides
// which categories fire; turning categories into rule sets is done by
// package selector.
package matrix

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strconv"

	"github.com/google/cel-go/cel"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/expr"
	"github.com/macropower/ruler/pkg/log"
)

// CoreCategory is the pseudo-category recorded for the core rule set.
const CoreCategory = "core"

var (
	ErrInvalidMatrix = errors.New("invalid matrix")

	ruleIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._/-]*$`)
)

// Trigger is a CEL predicate over the attribute set.
type Trigger struct {
	// Match is a CEL expression returning a bool.
	Match string `json:"match" jsonschema:"title=Match Expression,minLength=1"`
	// Exclude marks the trigger as arguing against inclusion.
	Exclude bool `json:"exclude,omitempty" jsonschema:"title=Exclude"`
}

// Tier lists the rules contributed at one rank of a tiered category.
type Tier struct {
	// Value is a value of the category's tier attribute.
	Value string `json:"value" jsonschema:"title=Tier Value"`
	// Rules contributed by this tier and inherited by every higher tier.
	Rules []string `json:"rules" jsonschema:"title=Rules"`
}

// Category is a named bucket of rules with trigger predicates.
type Category struct {
	Name        string `json:"name" jsonschema:"title=Name,minLength=1"`
	Description string `json:"description,omitempty" jsonschema:"title=Description"`
	// Tier names the attribute whose rank selects [Category.Tiers].
	Tier string `json:"tier,omitempty" jsonschema:"title=Tier Attribute"`
	// Triggers fire the category. Tiered categories without include
	// triggers fire when the attribute reaches the lowest listed tier.
	Triggers []Trigger `json:"triggers,omitempty" jsonschema:"title=Triggers"`
	// Rules contributed whenever the category fires.
	Rules []string `json:"rules,omitempty" jsonschema:"title=Rules"`
	Tiers []Tier   `json:"tiers,omitempty" jsonschema:"title=Tiers"`
}

// Definition is the declarative content of a matrix.
type Definition struct {
	// Core rules are selected unconditionally.
	Core       []string   `json:"core" jsonschema:"title=Core Rules"`
	Categories []Category `json:"categories" jsonschema:"title=Categories"`
}

// WarningKind classifies evaluation warnings.
type WarningKind string

const (
	// CategoryTriggerAmbiguity is recorded when include and exclude triggers
	// of one category fire together.
	CategoryTriggerAmbiguity WarningKind = "CategoryTriggerAmbiguity"
	// TriggerEvaluationFailed is recorded when a trigger fails at runtime.
	TriggerEvaluationFailed WarningKind = "TriggerEvaluationFailed"
)

// Warning is a non-fatal finding of an evaluation.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Category string      `json:"category"`
	Message  string      `json:"message"`
}

// Evaluation is the result of evaluating a matrix.
type Evaluation struct {
	// Categories that fired, sorted by name.
	Categories []string  `json:"categories"`
	Warnings   []Warning `json:"warnings,omitempty"`
}

type row struct {
	program  cel.Program
	category string
	match    string
	exclude  bool
}

// Matrix is a compiled [Definition].
type Matrix struct {
	env        *expr.Environment
	registry   *attr.Registry
	categories map[string]Category
	def        Definition
	rows       []row
}

// New validates and compiles def against reg.
func New(reg *attr.Registry, def Definition) (*Matrix, error) {
	env, err := expr.NewEnvironment(reg)
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		env:        env,
		registry:   reg,
		def:        def,
		categories: make(map[string]Category, len(def.Categories)),
	}

	err = checkRules("core", def.Core)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMatrix, err)
	}

	for _, c := range def.Categories {
		err := m.add(c)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %w", ErrInvalidMatrix, c.Name, err)
		}
	}

	return m, nil
}

func (m *Matrix) add(c Category) error {
	if c.Name == "" || c.Name == CoreCategory {
		return fmt.Errorf("name must be non-empty and not %q", CoreCategory)
	}

	if _, ok := m.categories[c.Name]; ok {
		return errors.New("duplicate category")
	}

	err := checkRules("rules", c.Rules)
	if err != nil {
		return err
	}

	hasInclude := slices.ContainsFunc(c.Triggers, func(t Trigger) bool { return !t.Exclude })

	triggers := c.Triggers

	switch {
	case c.Tier != "":
		lowest, err := m.checkTiers(c)
		if err != nil {
			return err
		}

		if !hasInclude {
			triggers = append(slices.Clone(triggers), Trigger{
				Match: fmt.Sprintf("atLeast(%s, %s, %s)", strconv.Quote(c.Tier), c.Tier, strconv.Quote(lowest)),
			})
		}

	case len(c.Tiers) > 0:
		return errors.New("tiers require a tier attribute")

	case !hasInclude:
		return errors.New("at least one include trigger is required")
	}

	for _, t := range triggers {
		prg, err := m.env.Compile(t.Match)
		if err != nil {
			return fmt.Errorf("trigger %q: %w", t.Match, err)
		}

		m.rows = append(m.rows, row{
			program:  prg,
			category: c.Name,
			match:    t.Match,
			exclude:  t.Exclude,
		})
	}

	m.categories[c.Name] = c

	return nil
}

// checkTiers validates the tiers of c and returns the lowest-ranked value.
func (m *Matrix) checkTiers(c Category) (string, error) {
	a, err := m.registry.Lookup(c.Tier)
	if err != nil {
		return "", err
	}

	if a.Domain != attr.DomainTier {
		return "", fmt.Errorf("tier attribute %q must have a tier domain", c.Tier)
	}

	if len(c.Tiers) == 0 {
		return "", errors.New("tiered category has no tiers")
	}

	lowest := ""
	seen := map[string]bool{}

	for _, t := range c.Tiers {
		if !a.Allows(t.Value) {
			return "", fmt.Errorf("tier %q is not a value of %q", t.Value, c.Tier)
		}

		if seen[t.Value] {
			return "", fmt.Errorf("duplicate tier %q", t.Value)
		}

		seen[t.Value] = true

		err := checkRules("tier "+t.Value, t.Rules)
		if err != nil {
			return "", err
		}

		if lowest == "" || a.Rank(t.Value) < a.Rank(lowest) {
			lowest = t.Value
		}
	}

	return lowest, nil
}

func checkRules(where string, rules []string) error {
	for _, r := range rules {
		if !ruleIDRe.MatchString(r) {
			return fmt.Errorf("%s: rule id %q must match %s", where, r, ruleIDRe)
		}
	}

	return nil
}

// MustNew is like [New] but panics on error.
func MustNew(reg *attr.Registry, def Definition) *Matrix {
	m, err := New(reg, def)
	if err != nil {
		panic(err)
	}

	return m
}

// Core returns the core rule set.
func (m *Matrix) Core() []string {
	return slices.Clone(m.def.Core)
}

// Category returns the category called name.
func (m *Matrix) Category(name string) (Category, bool) {
	c, ok := m.categories[name]

	return c, ok
}

// Definition returns the definition the matrix was compiled from.
func (m *Matrix) Definition() Definition {
	return m.def
}

// Evaluate evaluates every trigger against set in a single pass. Categories
// fire when any include trigger matches. Runtime failures count as
// non-matches and are reported as warnings.
func (m *Matrix) Evaluate(ctx context.Context, set attr.Set) Evaluation {
	logger := log.WithContext(ctx)
	vars := m.env.Activation(set)

	included := map[string][]string{}
	excluded := map[string][]string{}

	var warnings []Warning

	for _, r := range m.rows {
		ok, err := expr.Eval(r.program, vars)
		if err != nil {
			logger.Debug("trigger evaluation failed",
				slog.String("category", r.category),
				slog.String("match", r.match),
				slog.Any("err", err),
			)

			warnings = append(warnings, Warning{
				Kind:     TriggerEvaluationFailed,
				Category: r.category,
				Message:  fmt.Sprintf("trigger %q: %v", r.match, err),
			})

			continue
		}

		if !ok {
			continue
		}

		if r.exclude {
			excluded[r.category] = append(excluded[r.category], r.match)
		} else {
			included[r.category] = append(included[r.category], r.match)
		}
	}

	eval := Evaluation{Categories: []string{}}

	for name := range included {
		eval.Categories = append(eval.Categories, name)

		if ex := excluded[name]; len(ex) > 0 {
			logger.Warn("include and exclude triggers both matched",
				slog.String("category", name),
			)

			warnings = append(warnings, Warning{
				Kind:     CategoryTriggerAmbiguity,
				Category: name,
				Message:  fmt.Sprintf("included by %q but excluded by %q", included[name], ex),
			})
		}
	}

	sort.Strings(eval.Categories)
	slices.SortStableFunc(warnings, func(a, b Warning) int {
		return cmp.Or(
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(a.Kind, b.Kind),
		)
	})

	eval.Warnings = warnings

	return eval
}
