package mdl_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/specialistvlad/mdlscene/pkg/mdl"
	"github.com/stretchr/testify/require"
)

const breaking = `
module_name = "::example"

material "M" {
  exported = true
  parameter "c" { type = color }
}
`

func TestScene_LoadInstantiateReload(t *testing.T) {
	ctx := testutil.Context(t)
	path := testutil.WriteModule(t, "example.mdlc.hcl", testutil.ExampleModule)
	scene := mdl.NewScene(mdl.Options{})

	modName, err := scene.Load(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "mdl::example", modName)
	require.Equal(t, []string{"mdl::example"}, scene.Modules())

	defs, err := scene.Definitions(ctx, modName)
	require.NoError(t, err)
	require.Equal(t, []string{"mdl::example::M", "mdl::example::Hidden"}, defs)

	def, err := scene.Definition(ctx, "mdl::example::M")
	require.NoError(t, err)
	require.Equal(t, "::example::M", def.Name())
	require.Equal(t, 2, def.ParameterCount())
	require.Equal(t, "color", def.ParameterType(0))
	require.True(t, def.HasDefault(0))
	require.False(t, def.HasDefault(1))
	users, err := def.EnableIfUsers(0)
	require.NoError(t, err)
	require.Equal(t, []int{1}, users)
	_, err = def.EnableIfUsers(2)
	require.ErrorIs(t, err, mdl.ErrOutOfRange)
	require.True(t, def.IsCompatible(def))

	inst, err := def.Instantiate(ctx, "mi::red", map[string]string{"c": "[1, 0, 0]", "f": "0.5"})
	require.NoError(t, err)
	require.Equal(t, "mi::red", inst.Name())
	require.Equal(t, "mdl::example::M", inst.Definition())
	dump := inst.Dump()
	require.Len(t, dump.Arguments, 2)
	require.Equal(t, "[1, 0, 0]", dump.Arguments[0].Value)
	require.True(t, inst.IsValid(ctx))

	got, err := scene.Instance(ctx, "mi::red")
	require.NoError(t, err)
	require.Equal(t, dump, got.Dump())

	_, err = def.Instantiate(ctx, "", map[string]string{"f": "0.5", "g": "1"})
	require.ErrorIs(t, err, mdl.ErrNotFound)
	_, err = def.Instantiate(ctx, "", nil)
	require.ErrorIs(t, err, mdl.ErrMissingArgument)
	_, err = def.Instantiate(ctx, "mdl::example::Hidden", map[string]string{"f": "0.5"})
	require.ErrorContains(t, err, "is used by a")

	hidden, err := scene.Definition(ctx, "mdl::example::Hidden")
	require.NoError(t, err)
	_, err = hidden.Instantiate(ctx, "", nil)
	require.ErrorIs(t, err, mdl.ErrNotExported)

	testutil.Rewrite(t, path, breaking)
	res, err := scene.Reload(ctx, modName)
	require.NoError(t, err)
	require.Equal(t, []string{"::example::M"}, res.Changed)
	require.Equal(t, []string{"::example::Hidden"}, res.Removed)

	require.False(t, def.IsValid(ctx))
	require.False(t, inst.IsValid(ctx))
	_, err = def.Instantiate(ctx, "", map[string]string{"f": "1"})
	require.ErrorIs(t, err, mdl.ErrStaleDefinition)

	current, err := scene.Definition(ctx, "mdl::example::M")
	require.NoError(t, err)
	require.True(t, current.IsValid(ctx))
	require.False(t, current.IsCompatible(def))
	require.NotEqual(t, def.Ident(), current.Ident())

	// Hidden is unreachable now.
	require.Equal(t, 1, scene.Collect(ctx))
	_, err = scene.Definition(ctx, "mdl::example::Hidden")
	require.ErrorIs(t, err, mdl.ErrNotFound)
}

func TestScene_SaveRestore(t *testing.T) {
	ctx := testutil.Context(t)
	path := testutil.WriteModule(t, "example.mdlc.hcl", testutil.ExampleModule)
	scene := mdl.NewScene(mdl.Options{})
	_, err := scene.Load(ctx, path)
	require.NoError(t, err)
	def, err := scene.Definition(ctx, "mdl::example::M")
	require.NoError(t, err)
	_, err = def.Instantiate(ctx, "mi::one", map[string]string{"f": "1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, scene.Save(ctx, &buf))

	restored, err := mdl.Restore(ctx, &buf, mdl.Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"mdl::example"}, restored.Modules())
	require.Equal(t, []string{"mi::one"}, restored.Instances())
	inst, err := restored.Instance(ctx, "mi::one")
	require.NoError(t, err)
	require.True(t, inst.IsValid(ctx))
	require.Zero(t, restored.Collect(ctx))
}

func TestDefinition_InstantiateArgumentErrors(t *testing.T) {
	ctx := testutil.Context(t)
	path := testutil.WriteModule(t, "example.mdlc.hcl", testutil.ExampleModule)
	scene := mdl.NewScene(mdl.Options{})
	_, err := scene.Load(ctx, path)
	require.NoError(t, err)
	def, err := scene.Definition(ctx, "mdl::example::M")
	require.NoError(t, err)

	testCases := []struct {
		name      string
		args      map[string]string
		wantCode  mdl.ErrorCode
		wantErr   error
		wantParam string
	}{
		{
			name:      "unknown name with unparsable value",
			args:      map[string]string{"f": "0.5", "nope": "{{"},
			wantCode:  mdl.CodeUnknownParameter,
			wantErr:   mdl.ErrNotFound,
			wantParam: "nope",
		},
		{
			name:      "unknown name with valid value",
			args:      map[string]string{"f": "0.5", "g": "1"},
			wantCode:  mdl.CodeUnknownParameter,
			wantErr:   mdl.ErrNotFound,
			wantParam: "g",
		},
		{
			name:      "value of the wrong type",
			args:      map[string]string{"f": `"text"`},
			wantCode:  mdl.CodeTypeMismatch,
			wantErr:   mdl.ErrTypeMismatch,
			wantParam: "f",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := def.Instantiate(ctx, "", tc.args)
			require.ErrorIs(t, err, tc.wantErr)
			var ierr *mdl.InstantiationError
			require.True(t, errors.As(err, &ierr))
			require.Equal(t, tc.wantCode, ierr.Code)
			require.Equal(t, tc.wantParam, ierr.Param)
		})
	}
}
