package attr

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// Kind classifies how an attribute is resolved and used.
type Kind string

const (
	KindDetectable Kind = "detectable"
	KindInput      Kind = "input"
	KindGuideline  Kind = "guideline"
	KindSystem     Kind = "system"
)

// Domain describes the shape of an attribute's values.
type Domain string

const (
	// DomainEnum is an unordered set of allowed values. Option order is still
	// meaningful for presentation.
	DomainEnum Domain = "enum"
	// DomainBool is a yes/no attribute.
	DomainBool Domain = "bool"
	// DomainTier is an ordinal domain; the order of values is their rank.
	DomainTier Domain = "tier"
	// DomainText accepts any non-empty value.
	DomainText Domain = "text"
)

// Values of [DomainBool] attributes.
const (
	Yes = "yes"
	No  = "no"
)

var (
	ErrInvalidAttribute = errors.New("invalid attribute")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrInvalidValue     = errors.New("invalid value")

	identifierRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Attribute is a named project characteristic with a declared domain.
type Attribute struct {
	// Text maps values to display text. Values without an entry display as
	// themselves.
	Text        map[string]string `json:"text,omitempty"`
	Name        string            `json:"name"`
	Kind        Kind              `json:"kind"`
	Domain      Domain            `json:"domain"`
	Default     string            `json:"default"`
	Prompt      string            `json:"prompt,omitempty"`
	Values      []string          `json:"values,omitempty"`
	MultiSelect bool              `json:"multiSelect,omitempty"`
}

// Validate checks that the attribute is well formed.
func (a Attribute) Validate() error {
	if !identifierRe.MatchString(a.Name) {
		return fmt.Errorf("%w: name %q must match %s", ErrInvalidAttribute, a.Name, identifierRe)
	}

	switch a.Kind {
	case KindDetectable, KindInput, KindGuideline, KindSystem:
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidAttribute, a.Name, a.Kind)
	}

	switch a.Domain {
	case DomainText:
		if a.MultiSelect {
			return fmt.Errorf("%w: %s: text attributes cannot be multi-select", ErrInvalidAttribute, a.Name)
		}

		return nil

	case DomainBool:
		if !slices.Equal(a.Values, []string{No, Yes}) {
			return fmt.Errorf("%w: %s: bool values must be [%s %s]", ErrInvalidAttribute, a.Name, No, Yes)
		}

	case DomainEnum, DomainTier:
		if len(a.Values) == 0 {
			return fmt.Errorf("%w: %s: no values", ErrInvalidAttribute, a.Name)
		}

	default:
		return fmt.Errorf("%w: %s: unknown domain %q", ErrInvalidAttribute, a.Name, a.Domain)
	}

	seen := make(map[string]bool, len(a.Values))
	for _, v := range a.Values {
		if v == "" || seen[v] {
			return fmt.Errorf("%w: %s: empty or duplicate value %q", ErrInvalidAttribute, a.Name, v)
		}

		seen[v] = true
	}

	if !seen[a.Default] {
		return fmt.Errorf("%w: %s: default %q is not an allowed value", ErrInvalidAttribute, a.Name, a.Default)
	}

	return nil
}

// Allows reports whether value is in the attribute's domain.
func (a Attribute) Allows(value string) bool {
	if a.Domain == DomainText {
		return value != ""
	}

	return slices.Contains(a.Values, value)
}

// Check validates a list of values for the attribute.
func (a Attribute) Check(values []string) error {
	if len(values) > 1 && !a.MultiSelect {
		return fmt.Errorf("%w: %s accepts a single value, got %d", ErrInvalidValue, a.Name, len(values))
	}

	for _, v := range values {
		if !a.Allows(v) {
			return fmt.Errorf("%w: %q is not allowed for %s", ErrInvalidValue, v, a.Name)
		}
	}

	return nil
}

// Rank returns the ordinal position of value, or -1 if value is not in the
// domain. Only [DomainTier] ranks are meaningful for tier inheritance.
func (a Attribute) Rank(value string) int {
	return slices.Index(a.Values, value)
}

// Display returns the display text for value.
func (a Attribute) Display(value string) string {
	if t, ok := a.Text[value]; ok {
		return t
	}

	return value
}

// Triggerable reports whether the attribute may be referenced by trigger
// predicates.
func (a Attribute) Triggerable() bool {
	return a.Kind == KindDetectable || a.Kind == KindInput
}
