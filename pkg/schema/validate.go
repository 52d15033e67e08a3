// Package schema reflects JSON schemas from ruler's configuration types and
// validates decoded YAML documents against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"

	goyaml "github.com/goccy/go-yaml"

	"github.com/macropower/ruler/pkg/yaml"
)

// Validator validates data against a JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under url.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	var schema any

	err := json.Unmarshal(schemaData, &schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	err = compiler.AddResource(url, schema)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// NewValidatorFor reflects a schema from v with a [Generator] and compiles it.
func NewValidatorFor(url string, v any) (*Validator, error) {
	data, err := NewGenerator(v).Generate()
	if err != nil {
		return nil, err
	}

	return NewValidator(url, data)
}

// MustNewValidatorFor is like [NewValidatorFor] but panics on error.
func MustNewValidatorFor(url string, v any) *Validator {
	val, err := NewValidatorFor(url, v)
	if err != nil {
		panic(err)
	}

	return val
}

// Validate validates data. Failures are returned as a [*yaml.Error] carrying
// the path of the most specific failing location, so callers can annotate
// the source document with [yaml.WithSource].
func (s *Validator) Validate(data any) error {
	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &yaml.Error{
		Err:  validationErr,
		Path: pathFromLocation(mostSpecificLocation(validationErr)),
	}
}

// mostSpecificLocation returns the longest instance location among err and
// its causes.
func mostSpecificLocation(err *jsonschema.ValidationError) []string {
	longest := err.InstanceLocation

	for _, cause := range err.Causes {
		loc := mostSpecificLocation(cause)
		if len(loc) > len(longest) {
			longest = loc
		}
	}

	return longest
}

func pathFromLocation(location []string) *goyaml.Path {
	current := yaml.NewPathBuilder().Root()

	for _, part := range location {
		idx, err := strconv.ParseUint(part, 10, 32)
		if err == nil {
			current = current.Index(uint(idx))
			continue
		}

		current = current.Child(part)
	}

	return current.Build()
}
