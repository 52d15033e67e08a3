package attr

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
)

// Value is a resolved attribute value. Single-select attributes hold one
// element; multi-select attributes hold their selections in domain order.
//
// A single element encodes as a scalar, anything else as a list.
//
//nolint:recvcheck // Unmarshal methods need pointer receivers.
type Value []string

// ParseValue splits a comma-separated list into a [Value].
func ParseValue(s string) Value {
	var v Value

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			v = append(v, part)
		}
	}

	return v
}

// String returns the values joined with commas.
func (v Value) String() string {
	return strings.Join(v, ",")
}

// First returns the first value, or an empty string.
func (v Value) First() string {
	if len(v) == 0 {
		return ""
	}

	return v[0]
}

// Has reports whether v contains s.
func (v Value) Has(s string) bool {
	return slices.Contains(v, s)
}

// Equal reports whether two values hold the same elements, ignoring order.
func (v Value) Equal(o Value) bool {
	if len(v) != len(o) {
		return false
	}

	a, b := slices.Clone(v), slices.Clone(o)
	slices.Sort(a)
	slices.Sort(b)

	return slices.Equal(a, b)
}

func (v Value) scalar() any {
	if len(v) == 1 {
		return v[0]
	}

	return []string(v)
}

func (v Value) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(v.scalar())
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	return b, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}

	return v.set(raw)
}

// MarshalYAML implements the goccy/go-yaml InterfaceMarshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.scalar(), nil
}

// UnmarshalYAML implements the goccy/go-yaml InterfaceUnmarshaler.
func (v *Value) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any

	err := unmarshal(&raw)
	if err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}

	return v.set(raw)
}

func (v *Value) set(raw any) error {
	switch r := raw.(type) {
	case nil:
		*v = nil

	case string:
		*v = ParseValue(r)

	case int, int64, uint64, float64:
		*v = Value{fmt.Sprint(r)}

	case []any:
		out := make(Value, 0, len(r))
		for _, item := range r {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: list items must be strings, got %T", ErrInvalidValue, item)
			}

			out = append(out, s)
		}

		*v = out

	default:
		return fmt.Errorf("%w: must be a string or a list of strings, got %T", ErrInvalidValue, raw)
	}

	return nil
}

func (Value) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}
