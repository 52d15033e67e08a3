package attr

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Set is an immutable snapshot of resolved attribute values. Methods that
// change a Set return a modified copy.
type Set struct {
	m map[string]Value
}

// NewSet creates a [Set] from m. Empty values are dropped.
func NewSet(m map[string][]string) Set {
	s := Set{m: make(map[string]Value, len(m))}
	for k, v := range m {
		if len(v) > 0 {
			s.m[k] = slices.Clone(Value(v))
		}
	}

	return s
}

// Get returns the value of name.
func (s Set) Get(name string) (Value, bool) {
	v, ok := s.m[name]
	if !ok {
		return nil, false
	}

	return slices.Clone(v), true
}

// First returns the first value of name, or an empty string.
func (s Set) First(name string) string {
	return s.m[name].First()
}

// With returns a copy of s with name set to values. Setting no values
// removes name.
func (s Set) With(name string, values ...string) Set {
	out := Set{m: maps.Clone(s.m)}
	if out.m == nil {
		out.m = map[string]Value{}
	}

	if len(values) == 0 {
		delete(out.m, name)
	} else {
		out.m[name] = slices.Clone(Value(values))
	}

	return out
}

// Names returns the names present in s, sorted.
func (s Set) Names() []string {
	names := slices.Collect(maps.Keys(s.m))
	sort.Strings(names)

	return names
}

// Len returns the number of attributes in s.
func (s Set) Len() int {
	return len(s.m)
}

// Map returns a copy of the underlying values.
func (s Set) Map() map[string]Value {
	out := make(map[string]Value, len(s.m))
	for k, v := range s.m {
		out[k] = slices.Clone(v)
	}

	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(s.Map())
	if err != nil {
		return nil, fmt.Errorf("marshal attribute set: %w", err)
	}

	return b, nil
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var m map[string]Value

	err := json.Unmarshal(data, &m)
	if err != nil {
		return fmt.Errorf("unmarshal attribute set: %w", err)
	}

	*s = Set{m: m}

	return nil
}
