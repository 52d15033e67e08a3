// Package label decides the single display label of each attribute when a
// previous value, a detected value and a recommendation disagree.
package label

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Kind is the origin of a candidate value.
type Kind string

const (
	// Current is the value from an existing configuration.
	Current Kind = "current"
	// Detected is the value from detection or an answer.
	Detected Kind = "detected"
	// Recommended is the computed recommendation.
	Recommended Kind = "recommended"
)

// ErrLabelConflict is returned when precedence cannot produce exactly one
// label. It indicates a defect and is never recovered.
var ErrLabelConflict = errors.New("label conflict")

// DefaultPrecedence orders kinds from strongest to weakest.
var DefaultPrecedence = []Kind{Current, Detected, Recommended}

// Label is the surfaced value of an attribute.
type Label struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Candidates are the values in play for one attribute. Empty means absent.
type Candidates struct {
	Current     string `json:"current,omitempty"`
	Detected    string `json:"detected,omitempty"`
	Recommended string `json:"recommended,omitempty"`
}

func (c Candidates) get(k Kind) string {
	switch k {
	case Current:
		return c.Current
	case Detected:
		return c.Detected
	case Recommended:
		return c.Recommended
	}

	return ""
}

// Resolver applies a precedence list.
type Resolver struct {
	precedence []Kind
}

// NewResolver creates a [Resolver]. Without arguments [DefaultPrecedence] is
// used. The list must name every kind exactly once.
func NewResolver(precedence ...Kind) (*Resolver, error) {
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}

	seen := map[Kind]bool{}
	for _, k := range precedence {
		if !slices.Contains(DefaultPrecedence, k) {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrLabelConflict, k)
		}

		if seen[k] {
			return nil, fmt.Errorf("%w: kind %q listed twice", ErrLabelConflict, k)
		}

		seen[k] = true
	}

	if len(seen) != len(DefaultPrecedence) {
		return nil, fmt.Errorf("%w: precedence %v must list %v", ErrLabelConflict, precedence, DefaultPrecedence)
	}

	return &Resolver{precedence: slices.Clone(precedence)}, nil
}

// Precedence returns the kinds, strongest first.
func (r *Resolver) Precedence() []Kind {
	return slices.Clone(r.precedence)
}

// Resolve returns the label of the strongest present candidate.
func (r *Resolver) Resolve(attribute string, c Candidates) (Label, error) {
	for _, k := range r.precedence {
		if v := c.get(k); v != "" {
			return Label{Kind: k, Value: v}, nil
		}
	}

	return Label{}, fmt.Errorf("%w: %s has no candidate value", ErrLabelConflict, attribute)
}

// ResolveAll labels every attribute.
func (r *Resolver) ResolveAll(candidates map[string]Candidates) (map[string]Label, error) {
	labels := make(map[string]Label, len(candidates))

	for _, name := range slices.Sorted(maps.Keys(candidates)) {
		l, err := r.Resolve(name, candidates[name])
		if err != nil {
			return nil, err
		}

		labels[name] = l
	}

	return labels, nil
}

// OptionLabels maps each candidate value to the strongest kind proposing
// it. A current value that matches the detected one is labeled current
// only.
func (r *Resolver) OptionLabels(c Candidates) map[string]Kind {
	out := map[string]Kind{}

	for _, k := range r.precedence {
		v := c.get(k)
		if _, ok := out[v]; v != "" && !ok {
			out[v] = k
		}
	}

	return out
}
