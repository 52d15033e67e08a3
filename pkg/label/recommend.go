package label

import (
	"fmt"
	"slices"

	"github.com/macropower/ruler/pkg/attr"
)

// Condition holds when an attribute has any of the listed values.
type Condition struct {
	Attribute string   `json:"attribute" jsonschema:"title=Attribute"`
	Values    []string `json:"values" jsonschema:"title=Values,minItems=1"`
}

// Recommendation proposes a value for an attribute when all conditions hold.
type Recommendation struct {
	Attribute string      `json:"attribute" jsonschema:"title=Attribute"`
	Value     string      `json:"value" jsonschema:"title=Value"`
	When      []Condition `json:"when" jsonschema:"title=Conditions,minItems=1"`
}

// DefaultRecommendations returns the built-in recommendation table. Later
// entries override earlier ones.
func DefaultRecommendations() []Recommendation {
	when := func(a string, vs ...string) []Condition {
		return []Condition{{Attribute: a, Values: vs}}
	}

	return []Recommendation{
		{Attribute: attr.Testing, Value: "basic", When: when(attr.Maturity, "mvp")},
		{Attribute: attr.Testing, Value: "standard", When: when(attr.Maturity, "production", "legacy")},
		{Attribute: attr.Testing, Value: "standard", When: when(attr.Scale, "medium", "large")},
		{Attribute: attr.Testing, Value: "full", When: when(attr.Scale, "large")},
		{Attribute: attr.Observability, Value: "basic", When: when(attr.Maturity, "production", "legacy")},
		{Attribute: attr.Observability, Value: "standard", When: when(attr.Scale, "medium", "large")},
		{Attribute: attr.Observability, Value: "standard", When: when(attr.SLA, "99.9", "99.99")},
		{Attribute: attr.Observability, Value: "full", When: when(attr.SLA, "99.99")},
		{Attribute: attr.BreakingChanges, Value: "allowed", When: when(attr.Maturity, "poc")},
		{Attribute: attr.BreakingChanges, Value: "forbidden", When: when(attr.Maturity, "legacy")},
		{Attribute: attr.Priority, Value: "speed", When: when(attr.Maturity, "poc")},
		{Attribute: attr.Priority, Value: "quality", When: when(attr.Compliance, "hipaa", "pci-dss")},
		{Attribute: attr.AuditLogging, Value: attr.Yes, When: when(attr.DataSensitivity, "regulated")},
		{Attribute: attr.AuditLogging, Value: attr.Yes, When: when(attr.Compliance, "hipaa", "pci-dss", "soc2")},
		{Attribute: attr.DataSensitivity, Value: "regulated", When: when(attr.Compliance, "hipaa", "pci-dss")},
	}
}

// Recommender computes recommended values.
type Recommender struct {
	registry *attr.Registry
	table    []Recommendation
}

// NewRecommender creates a [Recommender]. Without recommendations the
// built-in table is used.
func NewRecommender(reg *attr.Registry, table ...Recommendation) (*Recommender, error) {
	if len(table) == 0 {
		table = DefaultRecommendations()
	}

	for i, rec := range table {
		if err := checkValue(reg, rec.Attribute, rec.Value); err != nil {
			return nil, fmt.Errorf("recommendation %d: %w", i, err)
		}

		if len(rec.When) == 0 {
			return nil, fmt.Errorf("recommendation %d: no conditions", i)
		}

		for _, c := range rec.When {
			for _, v := range c.Values {
				if err := checkValue(reg, c.Attribute, v); err != nil {
					return nil, fmt.Errorf("recommendation %d: condition: %w", i, err)
				}
			}
		}
	}

	return &Recommender{registry: reg, table: slices.Clone(table)}, nil
}

func checkValue(reg *attr.Registry, attribute, value string) error {
	a, err := reg.Lookup(attribute)
	if err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}

	return a.Check([]string{value}) //nolint:wrapcheck // Already descriptive.
}

// Recommend returns the recommended value of attribute given the values of
// the other attributes: the last matching recommendation, else the default.
func (r *Recommender) Recommend(attribute string, values func(string) attr.Value) string {
	a, ok := r.registry.Get(attribute)
	if !ok {
		return ""
	}

	out := a.Default

	for _, rec := range r.table {
		if rec.Attribute == attribute && matches(rec.When, values) {
			out = rec.Value
		}
	}

	return out
}

func matches(conds []Condition, values func(string) attr.Value) bool {
	for _, c := range conds {
		if !slices.ContainsFunc(values(c.Attribute), func(v string) bool {
			return slices.Contains(c.Values, v)
		}) {
			return false
		}
	}

	return true
}
