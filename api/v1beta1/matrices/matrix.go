// Package matrices provides the Matrix configuration kind: the context
// matrix mapping attribute sets to rule categories.
package matrices

import (
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/ruler/api"
	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/config"
	"github.com/macropower/ruler/pkg/matrix"
	"github.com/macropower/ruler/pkg/schema"
)

// Kind is the kind of matrix documents.
const Kind = "Matrix"

var (
	//go:embed matrix.yaml
	defaultMatrixYAML []byte

	// ValidKinds contains the valid kind values for matrices.
	ValidKinds = []string{Kind}

	// DefaultValidator validates matrices against the JSON schema.
	DefaultValidator = schema.MustNewValidatorFor("/matrices.v1beta1.json", &Matrix{})

	// Compile-time interface checks.
	_ v1beta1.Object = (*Matrix)(nil)
)

// Matrix is a declarative context matrix.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Matrix struct {
	v1beta1.TypeMeta  `json:",inline"`
	matrix.Definition `json:",inline"`
}

// New creates an empty [Matrix].
func New() *Matrix {
	m := &Matrix{TypeMeta: v1beta1.NewTypeMeta(Kind)}
	m.EnsureDefaults()

	return m
}

// EnsureDefaults initializes nil fields to their default values.
func (m *Matrix) EnsureDefaults() {
	if m.Core == nil {
		m.Core = []string{}
	}

	if m.Categories == nil {
		m.Categories = []matrix.Category{}
	}
}

// Validate checks the type metadata.
func (m *Matrix) Validate() error {
	err := m.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("validate matrix: %w", err)
	}

	return nil
}

func (m Matrix) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// Compile compiles the matrix against reg.
func (m *Matrix) Compile(reg *attr.Registry) (*matrix.Matrix, error) {
	mx, err := matrix.New(reg, m.Definition)
	if err != nil {
		return nil, fmt.Errorf("compile matrix: %w", err)
	}

	return mx, nil
}

// Default returns the built-in matrix.
func Default() (*Matrix, error) {
	return Parse(defaultMatrixYAML)
}

// DefaultYAML returns the built-in matrix document.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultMatrixYAML...)
}

// Parse validates and decodes a matrix document.
func Parse(data []byte) (*Matrix, error) {
	l := config.NewLoaderFromBytes(data, New, DefaultValidator)

	err := l.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate matrix: %w", err)
	}

	return l.Load() //nolint:wrapcheck // Already annotated.
}

// Load reads a matrix file.
func Load(path string) (*Matrix, error) {
	l, err := config.NewLoaderFromFile(path, New, DefaultValidator)
	if err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	err = l.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate matrix: %w", err)
	}

	return l.Load() //nolint:wrapcheck // Already annotated.
}

// MarshalYAML serializes the matrix to YAML.
func (m Matrix) MarshalYAML() ([]byte, error) {
	type alias Matrix

	b, err := api.MarshalYAML(alias(m))
	if err != nil {
		return nil, fmt.Errorf("marshal matrix: %w", err)
	}

	return b, nil
}

// WriteDefault writes the built-in matrix to path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultMatrixYAML, force, "matrix")
	if err != nil {
		return fmt.Errorf("write default matrix: %w", err)
	}

	return nil
}
