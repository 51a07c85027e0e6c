package module_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/material"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/specialistvlad/mdlscene/internal/module"
	"github.com/specialistvlad/mdlscene/internal/resource"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// Same parameters as testutil.ExampleModule with a different default for c.
const exampleCosmetic = `
module_name = "::example"

material "M" {
  exported = true
  parameter "c" {
    type    = color
    default = [0.5, 0.5, 0.5]
  }
  parameter "f" {
    type      = float
    enable_if = c != [0, 0, 0]
  }
  body = material(df::diffuse_reflection_bsdf(c, f))
}

material "Hidden" {
  parameter "roughness" {
    type    = float
    default = 0.5
  }
  body = material(df::specular_bsdf(roughness))
}
`

// M gains a parameter, Hidden is dropped and N is added.
const exampleBreaking = `
module_name = "::example"

material "M" {
  exported = true
  parameter "c" {
    type    = color
    default = [1, 1, 1]
  }
  parameter "f" { type = float }
  parameter "g" {
    type    = float
    default = 0
  }
  body = material(df::diffuse_reflection_bsdf(c, f))
}

material "N" {
  exported = true
  body     = material(df::diffuse_reflection_bsdf([1, 0, 0], 1))
}
`

func loadExample(t *testing.T) (*db.Database, string, db.Tag) {
	t.Helper()
	ctx := testutil.Context(t)
	path := testutil.WriteModule(t, "example.mdlc.hcl", testutil.ExampleModule)

	d := db.New()
	txn := d.Begin(ctx)
	m, tag, err := module.Load(ctx, txn, path, module.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))
	require.Equal(t, "::example", m.Name())
	return d, path, tag
}

func definition(t *testing.T, txn *db.Transaction, dbName string) *material.Definition {
	t.Helper()
	tag := txn.NameToTag(dbName)
	require.True(t, tag.IsValid(), "%s is not in the database", dbName)
	elem, err := txn.Access(tag)
	require.NoError(t, err)
	d, ok := elem.(*material.Definition)
	require.True(t, ok)
	return d
}

func TestLoad(t *testing.T) {
	ctx := testutil.Context(t)
	d, path, modTag := loadExample(t)
	txn := d.Begin(ctx)
	defer txn.Abort(ctx)

	m, tag, err := module.Access(txn, "mdl::example")
	require.NoError(t, err)
	require.Equal(t, modTag, tag)
	require.Equal(t, "mdl::example", m.DBName())
	require.Equal(t, path, m.Filename())
	require.Equal(t, []string{"::df"}, m.Imports())
	require.Equal(t, 2, m.DefinitionCount())

	e, ok := m.Definition(0)
	require.True(t, ok)
	require.Equal(t, "mdl::example::M", e.DBName)
	_, ok = m.Definition(2)
	require.False(t, ok)

	def := definition(t, txn, "mdl::example::M")
	require.Equal(t, e.Tag, def.Tag())
	require.Equal(t, m.DefinitionTag("mdl::example::M"), def.Tag())
	require.Equal(t, modTag, def.Module(txn))
	require.True(t, def.IsValid(ctx, txn))

	ident, ok := m.DefinitionIdent("mdl::example::M")
	require.True(t, ok)
	require.Equal(t, def.Ident(), ident)
	_, ok = m.DefinitionIdent("mdl::example::Nope")
	require.False(t, ok)
	require.False(t, m.DefinitionTag("mdl::example::Nope").IsValid())
}

func TestLoad_Twice(t *testing.T) {
	ctx := testutil.Context(t)
	d, path, modTag := loadExample(t)
	txn := d.Begin(ctx)
	defer txn.Abort(ctx)

	_, tag, err := module.Load(ctx, txn, path, module.Options{})
	require.NoError(t, err)
	require.Equal(t, modTag, tag)
}

func TestLoad_Errors(t *testing.T) {
	ctx := testutil.Context(t)
	txn := db.New().Begin(ctx)
	defer txn.Abort(ctx)

	_, _, err := module.Load(ctx, txn, "/nonexistent.mdlc.hcl", module.Options{})
	require.Error(t, err)

	path := testutil.WriteModule(t, "bad.mdlc.hcl", `
module_name = "::bad"
material "A" {
  prototype = "mdl::bad::Missing"
}
`)
	_, _, err = module.Load(ctx, txn, path, module.Options{})
	require.ErrorIs(t, err, material.ErrConstructionFailure)

	_, err = module.Reload(ctx, txn, "mdl::nope", module.Options{})
	require.ErrorIs(t, err, module.ErrNotLoaded)
}

func TestLoad_Resources(t *testing.T) {
	ctx := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{
		"tex.mdlc.hcl": `
module_name = "::tex"
material "T" {
  exported = true
  parameter "map" {
    type    = texture_2d
    default = "albedo.png"
  }
}
`,
		"albedo.png": "pixels",
	})
	d := db.New()
	txn := d.Begin(ctx)
	_, modTag, err := module.Load(ctx, txn, root+"/tex.mdlc.hcl", module.Options{LoadResources: true})
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))

	txn = d.Begin(ctx)
	defer txn.Abort(ctx)
	def := definition(t, txn, "mdl::tex::T")
	require.Len(t, def.Resources(), 1)
	elem, err := txn.Access(def.Resources()[0])
	require.NoError(t, err)
	require.IsType(t, &resource.Element{}, elem)

	// Resources stay reachable from the module.
	require.Empty(t, d.Collect(ctx, modTag))
}

func TestReload_CompatibleKeepsIdentity(t *testing.T) {
	ctx := testutil.Context(t)
	d, path, _ := loadExample(t)

	txn := d.Begin(ctx)
	before := definition(t, txn, "mdl::example::M")
	inst, err := before.CreateInstance(ctx, txn, expr.NewList().MustAdd("f", expr.MustConstant(mdltype.Float, cty.NumberFloatVal(1))))
	require.NoError(t, err)
	instTag := txn.ReserveTag()
	require.NoError(t, txn.Store(instTag, "mi::example", inst))
	require.NoError(t, txn.Commit(ctx))

	testutil.Rewrite(t, path, exampleCosmetic)
	txn = d.Begin(ctx)
	res, err := module.Reload(ctx, txn, "mdl::example", module.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))

	want := &module.ReloadResult{Kept: []string{"::example::M", "::example::Hidden"}}
	require.Empty(t, cmp.Diff(want, res))

	txn = d.Begin(ctx)
	defer txn.Abort(ctx)
	after := definition(t, txn, "mdl::example::M")
	require.Equal(t, before.Tag(), after.Tag())
	require.Equal(t, before.Ident(), after.Ident())
	require.True(t, before.IsValid(ctx, txn))
	require.True(t, inst.IsValid(ctx, txn))
	require.Zero(t, after.TemporaryCount())
}

func TestReload_IncompatibleInvalidates(t *testing.T) {
	ctx := testutil.Context(t)
	d, path, modTag := loadExample(t)

	txn := d.Begin(ctx)
	before := definition(t, txn, "mdl::example::M")
	hidden := definition(t, txn, "mdl::example::Hidden")
	inst, err := before.CreateInstance(ctx, txn, expr.NewList().MustAdd("f", expr.MustConstant(mdltype.Float, cty.NumberFloatVal(1))))
	require.NoError(t, err)
	txn.Abort(ctx)

	testutil.Rewrite(t, path, exampleBreaking)
	txn = d.Begin(ctx)
	res, err := module.Reload(ctx, txn, "mdl::example", module.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))

	want := &module.ReloadResult{
		Changed: []string{"::example::M"},
		Added:   []string{"::example::N"},
		Removed: []string{"::example::Hidden"},
	}
	require.Empty(t, cmp.Diff(want, res))

	txn = d.Begin(ctx)
	after := definition(t, txn, "mdl::example::M")
	require.Equal(t, before.Tag(), after.Tag())
	require.NotEqual(t, before.Ident(), after.Ident())
	require.False(t, before.IsCompatible(after))
	require.False(t, before.IsValid(ctx, txn))
	require.True(t, after.IsValid(ctx, txn))
	require.False(t, inst.IsValid(ctx, txn))
	require.False(t, hidden.IsValid(ctx, txn))
	txn.Abort(ctx)

	// The removed definition is garbage once the module drops it.
	removed := d.Collect(ctx, modTag)
	require.Equal(t, []db.Tag{hidden.Tag()}, removed)

	// Reloading the original source brings Hidden back under a new tag.
	testutil.Rewrite(t, path, testutil.ExampleModule)
	txn = d.Begin(ctx)
	res, err = module.Reload(ctx, txn, "mdl::example", module.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))
	require.Equal(t, []string{"::example::Hidden"}, res.Added)
	require.Equal(t, []string{"::example::N"}, res.Removed)
}

func TestReload_ModuleRenamed(t *testing.T) {
	ctx := testutil.Context(t)
	d, path, _ := loadExample(t)

	testutil.Rewrite(t, path, `module_name = "::other"`)
	txn := d.Begin(ctx)
	defer txn.Abort(ctx)
	_, err := module.Reload(ctx, txn, "mdl::example", module.Options{})
	require.ErrorContains(t, err, "now declares module ::other")
}

func TestSaveRestore(t *testing.T) {
	ctx := testutil.Context(t)
	d, _, modTag := loadExample(t)

	var buf bytes.Buffer
	require.NoError(t, d.Save(ctx, &buf))

	reg := serial.NewRegistry(module.Classes{}, material.Classes{}, resource.Classes{})
	restored, err := db.Restore(ctx, &buf, reg)
	require.NoError(t, err)
	require.Equal(t, d.Len(), restored.Len())

	txn := restored.Begin(ctx)
	defer txn.Abort(ctx)
	m, tag, err := module.Access(txn, "mdl::example")
	require.NoError(t, err)
	require.Equal(t, modTag, tag)
	require.Equal(t, 2, m.DefinitionCount())

	def := definition(t, txn, "mdl::example::M")
	require.True(t, def.IsValid(ctx, txn))
	_, err = def.CreateInstance(ctx, txn, expr.NewList().MustAdd("f", expr.MustConstant(mdltype.Float, cty.NumberFloatVal(1))))
	require.NoError(t, err)
}
