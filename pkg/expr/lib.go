package expr

import (
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/macropower/ruler/pkg/attr"
)

type lib struct {
	registry *attr.Registry
}

func (l *lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Strings(),
		ext.Lists(),
		ext.Sets(),

		// `present` reports whether an attribute holds a meaningful value.
		// Example: present(database) && present(orm).
		// Example: present(compliance).
		cel.Function("present",
			cel.Overload("present_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(value ref.Val) ref.Val {
					s, ok := value.Value().(string)
					if !ok {
						return types.NewErr("present: invalid string value")
					}

					return types.Bool(isPresent(s))
				}),
			),
			cel.Overload("present_list_string", []*cel.Type{cel.ListType(cel.StringType)}, cel.BoolType,
				cel.UnaryBinding(func(value ref.Val) ref.Val {
					list, err := value.ConvertToNative(reflect.TypeFor[[]string]())
					if err != nil {
						return types.NewErr("present: invalid list value: %v", err)
					}

					for _, s := range list.([]string) { //nolint:forcetypeassert // Checked by ConvertToNative.
						if isPresent(s) {
							return types.True
						}
					}

					return types.False
				}),
			),
		),

		// `rank` returns the ordinal rank of a value within an attribute.
		// Example: rank("scale", scale) >= rank("scale", "medium").
		cel.Function("rank",
			cel.Overload("rank_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.IntType,
				cel.BinaryBinding(func(name, value ref.Val) ref.Val {
					n, nok := name.Value().(string)
					v, vok := value.Value().(string)
					if !nok || !vok {
						return types.NewErr("rank: invalid arguments")
					}

					return types.Int(l.registry.Rank(n, v))
				}),
			),
		),

		// `atLeast` compares the rank of a value with a threshold value.
		// Example: atLeast("testing", testing, "standard").
		cel.Function("atLeast",
			cel.Overload("at_least_string_string_string",
				[]*cel.Type{cel.StringType, cel.StringType, cel.StringType}, cel.BoolType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					if len(args) != 3 {
						return types.NewErr("atLeast: expected 3 arguments")
					}

					n, nok := args[0].Value().(string)
					v, vok := args[1].Value().(string)
					th, tok := args[2].Value().(string)
					if !nok || !vok || !tok {
						return types.NewErr("atLeast: invalid arguments")
					}

					threshold := l.registry.Rank(n, th)
					if threshold < 0 {
						return types.NewErr("atLeast: %q is not a value of %q", th, n)
					}

					return types.Bool(l.registry.Rank(n, v) >= threshold)
				}),
			),
		),
	}
}

func (*lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func isPresent(s string) bool {
	return s != "" && s != attr.None
}
