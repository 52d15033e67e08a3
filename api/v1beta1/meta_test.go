package v1beta1_test

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/api/v1beta1"
)

func TestTypeMeta(t *testing.T) {
	t.Parallel()

	tm := v1beta1.NewTypeMeta("Matrix")
	assert.Equal(t, v1beta1.APIVersion, tm.GetAPIVersion())
	assert.Equal(t, "Matrix", tm.GetKind())

	require.NoError(t, tm.Check("Matrix"))
	require.ErrorIs(t, tm.Check("Configuration"), v1beta1.ErrInvalidTypeMeta)

	old := v1beta1.TypeMeta{APIVersion: "ruler.macropower.dev/v1alpha1", Kind: "Matrix"}
	require.ErrorIs(t, old.Check("Matrix"), v1beta1.ErrInvalidTypeMeta)
}

func TestExtendSchemaWithEnums(t *testing.T) {
	t.Parallel()

	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	jss := r.Reflect(&v1beta1.TypeMeta{})

	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, []string{"Matrix", "Configuration"})

	apiVersion, ok := jss.Properties.Get("apiVersion")
	require.True(t, ok)
	require.Len(t, apiVersion.OneOf, 1)
	assert.Equal(t, v1beta1.APIVersion, apiVersion.OneOf[0].Const)

	kind, ok := jss.Properties.Get("kind")
	require.True(t, ok)
	assert.Len(t, kind.OneOf, 2)

	assert.Panics(t, func() {
		v1beta1.ExtendSchemaWithEnums(&jsonschema.Schema{Properties: jsonschema.NewProperties()}, nil, nil)
	})
}
