package config

import (
	"bytes"
	"fmt"

	"github.com/macropower/ruler/api"
	"github.com/macropower/ruler/api/v1beta1"
	"github.com/macropower/ruler/pkg/yaml"
)

// Validator validates configuration data against a schema.
type Validator interface {
	Validate(data any) error
}

// Checker is implemented by kinds with semantic checks beyond the schema.
type Checker interface {
	Validate() error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*loaderOptions)

type loaderOptions struct {
	validator Validator
}

// WithValidator sets a custom validator.
func WithValidator(v Validator) LoaderOpt {
	return func(o *loaderOptions) {
		o.validator = v
	}
}

// Loader is a generic configuration loader that handles validation,
// YAML parsing, and error formatting for any config type T.
type Loader[T v1beta1.Object] struct {
	validator Validator
	newFunc   func() T
	yamlError *yaml.ErrorWrapper
	path      string
	data      []byte
}

// NewLoaderFromBytes creates a [Loader] from byte data.
// The newFunc parameter is the constructor for type T (e.g., configs.New).
func NewLoaderFromBytes[T v1beta1.Object](
	data []byte,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) *Loader[T] {
	options := &loaderOptions{
		validator: defaultValidator,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Loader[T]{
		data:      data,
		newFunc:   newFunc,
		validator: options.validator,
		yamlError: yaml.NewErrorWrapper(yaml.WithSource(data)),
	}
}

// NewLoaderFromFile creates a [Loader] from a file path.
func NewLoaderFromFile[T v1beta1.Object](
	path string,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	l := NewLoaderFromBytes(data, newFunc, defaultValidator, opts...)
	l.path = path

	return l, nil
}

// Path returns the file the loader reads, if any.
func (l *Loader[T]) Path() string {
	return l.path
}

// Validate validates the configuration data against the schema.
func (l *Loader[T]) Validate() error {
	var anyConfig any

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(&anyConfig)
	if err != nil {
		return l.wrap(err)
	}

	if l.validator != nil {
		err = l.validator.Validate(anyConfig)
		if err != nil {
			return l.wrap(err)
		}
	}

	return nil
}

// Load parses and returns the configuration. Kinds implementing [Checker]
// are checked after defaults are applied.
//
//nolint:ireturn // Generic type parameter return is intentional.
func (l *Loader[T]) Load() (T, error) {
	var zero T

	cfg := l.newFunc()

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(cfg)
	if err != nil {
		return zero, l.wrap(err)
	}

	cfg.EnsureDefaults()

	if c, ok := any(cfg).(Checker); ok {
		err = c.Validate()
		if err != nil {
			return zero, l.wrap(err)
		}
	}

	return cfg, nil
}

func (l *Loader[T]) wrap(err error) error {
	err = l.yamlError.Wrap(err)
	if l.path != "" {
		return fmt.Errorf("%s: %w", l.path, err)
	}

	return err
}
