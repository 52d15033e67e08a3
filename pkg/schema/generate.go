package schema

import (
	"encoding/json"
	"fmt"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

var durationType = reflect.TypeFor[time.Duration]()

// Generator reflects JSON schemas from Go types using
// [github.com/invopop/jsonschema]. Nested types are emitted under $defs,
// keyed by package and type name so that same-named types from different
// packages stay distinct. [time.Duration] fields are described as duration
// strings.
type Generator struct {
	root      any
	reflector *jsonschema.Reflector
	durations bool
}

// NewGenerator creates a [Generator] for root.
func NewGenerator(root any) *Generator {
	g := &Generator{root: root}
	g.reflector = &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
		Namer:          typeName,
		Mapper:         g.mapType,
	}

	return g
}

// Schema returns the reflected schema.
func (g *Generator) Schema() *jsonschema.Schema {
	g.durations = false

	s := g.reflector.Reflect(g.root)
	if g.durations {
		if s.Definitions == nil {
			s.Definitions = jsonschema.Definitions{}
		}

		s.Definitions[typeName(durationType)] = &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
			Description: "A duration such as 5s or 1h30m.",
		}
	}

	return s
}

// Generate returns the reflected schema as indented JSON.
func (g *Generator) Generate() ([]byte, error) {
	data, err := json.MarshalIndent(g.Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return data, nil
}

// mapType references the duration definition. Field tags overwrite the
// description of whatever schema a field maps to, so the description lives
// on the definition instead.
func (g *Generator) mapType(t reflect.Type) *jsonschema.Schema {
	if t == durationType {
		g.durations = true

		return &jsonschema.Schema{Ref: "#/$defs/" + typeName(durationType)}
	}

	return nil
}

// typeName qualifies t with its package name, e.g. ScoreConfig for
// score.Config.
func typeName(t reflect.Type) string {
	if t.Name() == "" || t.PkgPath() == "" {
		return ""
	}

	pkg := path.Base(t.PkgPath())

	return strings.ToUpper(pkg[:1]) + pkg[1:] + t.Name()
}
