// Package selector turns the categories fired by a matrix into a
// deduplicated rule set, applying cumulative tier inheritance.
package selector

import (
	"context"
	"maps"
	"slices"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/matrix"
)

// Selection is the rule set chosen for an attribute set.
type Selection struct {
	// Provenance maps each rule to the sorted categories that contributed it.
	Provenance map[string][]string `json:"provenance"`
	// Rules are the selected rule identifiers, sorted and unique.
	Rules []string `json:"rules"`
	// Categories that fired, sorted.
	Categories []string         `json:"categories"`
	Warnings   []matrix.Warning `json:"warnings,omitempty"`
}

// Selector selects rules through a [matrix.Matrix].
type Selector struct {
	matrix   *matrix.Matrix
	registry *attr.Registry
}

// New creates a [Selector].
func New(reg *attr.Registry, m *matrix.Matrix) *Selector {
	return &Selector{matrix: m, registry: reg}
}

// Select evaluates the matrix against set and resolves the fired
// categories into rules. The core rule set is always included.
//
// For tiered categories, the attribute's rank selects its own tier and every
// lower tier.
func (s *Selector) Select(ctx context.Context, set attr.Set) Selection {
	eval := s.matrix.Evaluate(ctx, set)
	provenance := map[string]map[string]bool{}

	add := func(category string, rules []string) {
		for _, r := range rules {
			if provenance[r] == nil {
				provenance[r] = map[string]bool{}
			}

			provenance[r][category] = true
		}
	}

	add(matrix.CoreCategory, s.matrix.Core())

	for _, name := range eval.Categories {
		c, ok := s.matrix.Category(name)
		if !ok {
			continue
		}

		add(name, c.Rules)

		if c.Tier != "" {
			add(name, s.tierRules(c, set.First(c.Tier)))
		}
	}

	sel := Selection{
		Rules:      slices.Sorted(maps.Keys(provenance)),
		Categories: eval.Categories,
		Provenance: make(map[string][]string, len(provenance)),
		Warnings:   eval.Warnings,
	}

	for r, cats := range provenance {
		sel.Provenance[r] = slices.Sorted(maps.Keys(cats))
	}

	return sel
}

func (s *Selector) tierRules(c matrix.Category, value string) []string {
	rank := s.registry.Rank(c.Tier, value)
	if rank < 0 {
		return nil
	}

	var rules []string

	for _, t := range c.Tiers {
		if s.registry.Rank(c.Tier, t.Value) <= rank {
			rules = append(rules, t.Rules...)
		}
	}

	return rules
}
