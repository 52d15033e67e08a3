// Package result assembles the final, auditable output of a selection run.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/matrix"
	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/selector"
	"github.com/macropower/ruler/pkg/signal"
)

// Kind is the kind of a serialized [Selection].
const Kind = "SelectionResult"

var ErrInvalidResult = errors.New("invalid result")

// Entry explains how one attribute was resolved.
type Entry struct {
	Attribute string        `json:"attribute"`
	Source    signal.Source `json:"source"`
	Value     attr.Value    `json:"value"`
	Evidence  []string      `json:"evidence,omitempty"`
	// Alternatives are the rejected candidates, best first.
	Alternatives      []score.Candidate `json:"alternatives,omitempty"`
	Confidence        float64           `json:"confidence"`
	NeedsConfirmation bool              `json:"needsConfirmation,omitempty"`
}

// Defaulted reports whether the attribute fell back to its default.
func (e Entry) Defaulted() bool {
	return e.Source == signal.Default
}

// Selection is the final selection result. It holds no timestamps, so
// identical inputs serialize identically.
type Selection struct {
	v1beta1.TypeMeta `json:",inline"`
	// Profile maps every attribute to its resolved value.
	Profile map[string]attr.Value `json:"profile"`
	// Provenance maps each selected rule to the categories contributing it.
	Provenance map[string][]string `json:"provenance"`
	// Labels holds exactly one label per profile attribute.
	Labels        map[string]label.Label `json:"labels"`
	Root          string                 `json:"root,omitempty"`
	Fingerprint   string                 `json:"fingerprint"`
	SelectedRules []string               `json:"selectedRules"`
	Categories    []string               `json:"categories"`
	AuditTrail    []Entry                `json:"auditTrail"`
	Warnings      []matrix.Warning       `json:"warnings,omitempty"`
}

// Input is everything [Assemble] merges.
type Input struct {
	Labels    map[string]label.Label
	Root      string
	Entries   []Entry
	Selection selector.Selection
}

// Assemble merges the resolved attributes, the rule selection and the
// labels into a [Selection].
//
// Every attribute must carry exactly one label; anything else is reported
// as [label.ErrLabelConflict].
func Assemble(in Input) (*Selection, error) {
	s := &Selection{
		TypeMeta:      v1beta1.NewTypeMeta(Kind),
		Root:          in.Root,
		Profile:       make(map[string]attr.Value, len(in.Entries)),
		Labels:        make(map[string]label.Label, len(in.Entries)),
		SelectedRules: slices.Clone(in.Selection.Rules),
		Categories:    slices.Clone(in.Selection.Categories),
		Provenance:    make(map[string][]string, len(in.Selection.Provenance)),
		Warnings:      slices.Clone(in.Selection.Warnings),
		AuditTrail:    make([]Entry, 0, len(in.Entries)),
	}

	for _, e := range in.Entries {
		if _, dup := s.Profile[e.Attribute]; dup {
			return nil, fmt.Errorf("%w: %s resolved twice", ErrInvalidResult, e.Attribute)
		}

		l, ok := in.Labels[e.Attribute]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no label", label.ErrLabelConflict, e.Attribute)
		}

		s.Profile[e.Attribute] = slices.Clone(e.Value)
		s.Labels[e.Attribute] = l
		s.AuditTrail = append(s.AuditTrail, e)
	}

	for _, name := range slices.Sorted(maps.Keys(in.Labels)) {
		if _, ok := s.Profile[name]; !ok {
			return nil, fmt.Errorf("%w: label for unresolved attribute %s", label.ErrLabelConflict, name)
		}
	}

	for r, cats := range in.Selection.Provenance {
		s.Provenance[r] = slices.Clone(cats)
	}

	slices.SortFunc(s.AuditTrail, func(a, b Entry) int {
		return strings.Compare(a.Attribute, b.Attribute)
	})

	if s.SelectedRules == nil {
		s.SelectedRules = []string{}
	}

	if s.Categories == nil {
		s.Categories = []string{}
	}

	fp, err := Fingerprint(s.Profile, s.SelectedRules)
	if err != nil {
		return nil, err
	}

	s.Fingerprint = fp

	return s, nil
}

// Fingerprint hashes a profile and rule set. It does not depend on map
// iteration order.
func Fingerprint(profile map[string]attr.Value, rules []string) (string, error) {
	h, err := hashstructure.Hash(struct {
		Profile map[string]attr.Value
		Rules   []string
	}{profile, rules}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hash selection: %w", err)
	}

	return fmt.Sprintf("%016x", h), nil
}

// Set returns the profile as an [attr.Set].
func (s *Selection) Set() attr.Set {
	m := make(map[string][]string, len(s.Profile))
	for k, v := range s.Profile {
		m[k] = v
	}

	return attr.NewSet(m)
}

// Entry returns the audit entry of attribute.
func (s *Selection) Entry(attribute string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(s.AuditTrail, attribute, func(e Entry, name string) int {
		return strings.Compare(e.Attribute, name)
	})
	if !ok {
		return Entry{}, false
	}

	return s.AuditTrail[i], true
}

// Decode reads a serialized [Selection], as written by a previous run.
func Decode(data []byte) (*Selection, error) {
	s := &Selection{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	if err := s.Check(Kind); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	return s, nil
}
