package attr

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Registry is an immutable collection of attribute definitions.
type Registry struct {
	attrs map[string]Attribute
	names []string
}

// NewRegistry validates attrs and creates a [Registry].
func NewRegistry(attrs ...Attribute) (*Registry, error) {
	r := &Registry{
		attrs: make(map[string]Attribute, len(attrs)),
		names: make([]string, 0, len(attrs)),
	}

	for _, a := range attrs {
		err := a.Validate()
		if err != nil {
			return nil, err
		}

		if _, ok := r.attrs[a.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrInvalidAttribute, a.Name)
		}

		a.Values = slices.Clone(a.Values)
		r.attrs[a.Name] = a
		r.names = append(r.names, a.Name)
	}

	sort.Strings(r.names)

	return r, nil
}

// MustNewRegistry is like [NewRegistry] but panics on error.
func MustNewRegistry(attrs ...Attribute) *Registry {
	r, err := NewRegistry(attrs...)
	if err != nil {
		panic(err)
	}

	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry of built-in attributes.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = MustNewRegistry(Builtins()...)
	})

	return defaultRegistry
}

// Get returns the attribute called name.
func (r *Registry) Get(name string) (Attribute, bool) {
	a, ok := r.attrs[name]

	return a, ok
}

// Lookup is like [Registry.Get] but returns [ErrUnknownAttribute] when the
// attribute does not exist.
func (r *Registry) Lookup(name string) (Attribute, error) {
	a, ok := r.attrs[name]
	if !ok {
		return Attribute{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}

	return a, nil
}

// Names returns all attribute names, sorted.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// All returns all attributes, sorted by name.
func (r *Registry) All() []Attribute {
	out := make([]Attribute, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.attrs[n])
	}

	return out
}

// OfKind returns the attributes of the given kinds, sorted by name.
func (r *Registry) OfKind(kinds ...Kind) []Attribute {
	var out []Attribute

	for _, n := range r.names {
		if slices.Contains(kinds, r.attrs[n].Kind) {
			out = append(out, r.attrs[n])
		}
	}

	return out
}

// Rank returns the rank of value within the named attribute, or -1.
func (r *Registry) Rank(name, value string) int {
	a, ok := r.attrs[name]
	if !ok {
		return -1
	}

	return a.Rank(value)
}

// Defaults returns a [Set] with every attribute at its default value.
func (r *Registry) Defaults() Set {
	m := make(map[string][]string, len(r.names))
	for _, n := range r.names {
		m[n] = []string{r.attrs[n].Default}
	}

	return NewSet(m)
}
