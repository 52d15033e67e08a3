package questionnaire

import (
	"fmt"
	"slices"
	"strings"

	"github.com/macropower/ruler/pkg/attr"
)

// Plan assigns attributes to the asked tiers. Attributes not in a plan are
// never asked.
type Plan struct {
	Fundamentals []string
	Strategy     []string
	FollowUps    []FollowUp
}

// FollowUp asks about an attribute once a condition over the values of
// earlier tiers holds.
type FollowUp struct {
	// When reports whether the follow-up applies and why.
	When      func(v Values) (string, bool)
	Attribute string
}

// Values reads the effective value of attributes: the answer, else the
// detected value, else the default.
type Values func(attribute string) attr.Value

// DefaultPlan returns the built-in plan.
func DefaultPlan() Plan {
	return Plan{
		Fundamentals: []string{
			attr.Language, attr.Framework, attr.Database, attr.Infra,
			attr.Scale, attr.Team, attr.Testing, attr.Maturity,
		},
		Strategy: []string{
			attr.DataSensitivity, attr.Compliance, attr.SLA, attr.Observability,
			attr.Realtime, attr.BreakingChanges, attr.Priority,
		},
		FollowUps: []FollowUp{
			{Attribute: attr.ORM, When: valueNot(attr.Database, attr.None)},
			{Attribute: attr.APIStyle, When: valueIn(attr.Framework, attr.BackendFrameworks...)},
			{Attribute: attr.MutationTool, When: valueIn(attr.Testing, "full")},
			{Attribute: attr.RealtimeTransport, When: valueNot(attr.Realtime, attr.None)},
			{Attribute: attr.AuditLogging, When: anyOf(
				valueIn(attr.Compliance, "hipaa", "pci-dss", "soc2"),
				valueIn(attr.DataSensitivity, "regulated"),
			)},
		},
	}
}

func (p Plan) validate(reg *attr.Registry) error {
	seen := map[string]bool{}
	names := slices.Concat(p.Fundamentals, p.Strategy)

	for _, f := range p.FollowUps {
		if f.When == nil {
			return fmt.Errorf("follow-up %q: no condition", f.Attribute)
		}

		names = append(names, f.Attribute)
	}

	for _, name := range names {
		a, err := reg.Lookup(name)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}

		if a.Kind == attr.KindSystem {
			return fmt.Errorf("%s: system attributes are facts", name)
		}

		if seen[name] {
			return fmt.Errorf("%s: planned twice", name)
		}

		seen[name] = true
	}

	return nil
}

func valueIn(attribute string, values ...string) func(Values) (string, bool) {
	return func(v Values) (string, bool) {
		for _, got := range v(attribute) {
			if slices.Contains(values, got) {
				return fmt.Sprintf("%s is %s", attribute, got), true
			}
		}

		return "", false
	}
}

func valueNot(attribute, value string) func(Values) (string, bool) {
	return func(v Values) (string, bool) {
		got := v(attribute)
		if len(got) == 0 || got.Has(value) {
			return "", false
		}

		return fmt.Sprintf("%s is %s", attribute, strings.Join(got, ", ")), true
	}
}

func anyOf(conds ...func(Values) (string, bool)) func(Values) (string, bool) {
	return func(v Values) (string, bool) {
		for _, c := range conds {
			if reason, ok := c(v); ok {
				return reason, true
			}
		}

		return "", false
	}
}
