package expr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/macropower/ruler/pkg/attr"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// ErrNotBool is returned when a predicate does not evaluate to a boolean.
var ErrNotBool = errors.New("expression did not return a bool")

// Environment provides a thread-safe wrapper around a [*cel.Env] declaring
// the triggerable attributes of a registry.
type Environment struct {
	env      *cel.Env
	registry *attr.Registry
}

// NewEnvironment creates a new [Environment] for reg.
func NewEnvironment(reg *attr.Registry, opts ...cel.EnvOption) (*Environment, error) {
	env, err := createEnvironment(reg, opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env, registry: reg}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(reg *attr.Registry, opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(reg, opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// createEnvironment creates the [*cel.Env] using the global mutex.
func createEnvironment(reg *attr.Registry, opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	for _, a := range reg.OfKind(attr.KindDetectable, attr.KindInput) {
		typ := cel.StringType
		if a.MultiSelect {
			typ = cel.ListType(cel.StringType)
		}

		opts = append(opts, cel.Variable(a.Name, typ))
	}

	opts = append(opts, cel.Lib(&lib{registry: reg}))

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Compile compiles a CEL expression and returns a program. The expression
// must have a boolean result type.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile expression: %w, got %s", ErrNotBool, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return program, nil
}

// Activation binds every declared variable to its value in set. Missing
// attributes bind to the empty string, or an empty list for multi-select
// attributes.
func (e *Environment) Activation(set attr.Set) map[string]any {
	vars := map[string]any{}

	for _, a := range e.registry.OfKind(attr.KindDetectable, attr.KindInput) {
		v, _ := set.Get(a.Name)
		if a.MultiSelect {
			if v == nil {
				v = attr.Value{}
			}

			vars[a.Name] = []string(v)

			continue
		}

		vars[a.Name] = v.First()
	}

	return vars
}

// Eval evaluates program against vars, which must come from
// [Environment.Activation].
func Eval(program cel.Program, vars map[string]any) (bool, error) {
	result, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}

	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T", ErrNotBool, result.Value())
	}

	return b, nil
}
