package material_test

import (
	"path/filepath"
	"testing"

	"github.com/specialistvlad/mdlscene/internal/compiled"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/material"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/specialistvlad/mdlscene/internal/resource"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestDefinition_Provenance(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	txn := f.begin(t)
	d := f.defs["::example::M"]

	require.Equal(t, "::example::M", d.Name())
	require.Equal(t, "mdl::example::M", d.DBName())
	require.Equal(t, "::example", d.ModuleName())
	require.Equal(t, "mdl::example", d.ModuleDBName())
	require.Equal(t, f.moduleTag, d.Module(txn))
	require.True(t, d.IsExported())
	require.False(t, f.defs["::example::Hidden"].IsExported())
	require.Empty(t, d.OriginalName())
	require.False(t, d.Prototype().IsValid())
	require.Contains(t, d.Thumbnail(), "M.png")
	require.Equal(t, db.JournalStructure, d.JournalFlags())
	require.Positive(t, d.Size())

	require.Equal(t, 1, d.TemporaryCount())
	require.Equal(t, "t0", d.TemporaryName(0))
	require.NotNil(t, d.Temporary(0))
	require.Nil(t, d.Temporary(1))
	require.Empty(t, d.TemporaryName(1))
	require.Equal(t, expr.KindCall, d.Body().Kind())

	anno, ok := d.Annotations().Find("::anno::description")
	require.True(t, ok)
	require.Equal(t, 1, anno.Arguments().Len())
}

func TestDefinition_IsValidAfterSecondIncarnation(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	first := f.defs["::example::M"]
	require.True(t, first.IsValid(f.ctx, f.begin(t)))

	second := f.supersede(t, first)
	require.NotEqual(t, first.Ident(), second.Ident())

	txn := f.begin(t)
	require.False(t, first.IsValid(f.ctx, txn))
	require.True(t, second.IsValid(f.ctx, txn))

	// The other definition of the module is untouched.
	require.True(t, f.defs["::example::Hidden"].IsValid(f.ctx, txn))
}

func TestDefinition_IsValidWithoutModule(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	d := f.defs["::example::M"]

	txn := f.begin(t)
	require.NoError(t, txn.Store(f.moduleTag, "", &fakeModule{}))
	require.False(t, d.IsValid(f.ctx, txn))

	empty := db.New().Begin(f.ctx)
	defer empty.Abort(f.ctx)
	require.False(t, d.IsValid(f.ctx, empty))
}

func TestDefinition_IsCompatible(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	m := f.defs["::example::M"]
	hidden := f.defs["::example::Hidden"]

	require.True(t, m.IsCompatible(m))
	require.False(t, m.IsCompatible(hidden))
	require.False(t, m.IsCompatible(nil))

	// A rebuilt definition with a fresh ident is still compatible.
	txn := f.begin(t)
	again := f.build(t, txn, 0, m.Tag(), material.NextIdent())
	require.True(t, m.IsCompatible(again))
	require.True(t, again.IsCompatible(m))
}

func TestDefinition_IncompatibleChanges(t *testing.T) {
	base := newFixture(t, `
module_name = "::m"
material "A" {
  parameter "x" {
    type    = float
    default = 1.0
  }
}
`).defs["::m::A"]

	testCases := []struct {
		name string
		src  string
	}{
		{
			name: "extra parameter",
			src: `
module_name = "::m"
material "A" {
  parameter "x" {
    type    = float
    default = 1.0
  }
  parameter "y" { type = float }
}
`,
		},
		{
			name: "changed type",
			src: `
module_name = "::m"
material "A" {
  parameter "x" {
    type    = double
    default = 1.0
  }
}
`,
		},
		{
			name: "removed default",
			src: `
module_name = "::m"
material "A" {
  parameter "x" { type = float }
}
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			changed := newFixture(t, tc.src).defs["::m::A"]
			require.False(t, base.IsCompatible(changed))
			require.False(t, changed.IsCompatible(base))
		})
	}

	t.Run("changed default value", func(t *testing.T) {
		changed := newFixture(t, `
module_name = "::m"
material "A" {
  parameter "x" {
    type    = float
    default = 2.0
  }
}
`).defs["::m::A"]
		require.True(t, base.IsCompatible(changed))
	})
}

func TestDefinition_SerializationRoundTrip(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	reg := serial.NewRegistry(material.Classes{})

	for _, d := range f.defs {
		w := serial.NewWriter()
		d.Serialize(w)
		data, err := w.Bytes()
		require.NoError(t, err)

		v, err := reg.Decode(d.ClassID(), data)
		require.NoError(t, err)
		got, ok := v.(*material.Definition)
		require.True(t, ok)

		require.True(t, d.IsCompatible(got))
		require.True(t, got.IsCompatible(d))
		require.True(t, got.IsCompatible(got))
		require.Equal(t, d.Ident(), got.Ident())
		require.Equal(t, d.Tag(), got.Tag())
		require.Equal(t, d.Dump(nil), got.Dump(nil))
		require.True(t, expr.Equal(d.Body(), got.Body()))
		for i := 0; i < d.ParameterCount(); i++ {
			require.Equal(t, d.EnableIfUserCount(i), got.EnableIfUserCount(i))
			require.True(t, expr.Equal(d.Default(i), got.Default(i)))
		}
		require.True(t, got.IsValid(f.ctx, f.begin(t)))
	}
}

func TestDefinition_DeserializeRejectsTruncatedData(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	w := serial.NewWriter()
	f.defs["::example::M"].Serialize(w)
	data, err := w.Bytes()
	require.NoError(t, err)

	reg := serial.NewRegistry(material.Classes{})
	_, err = reg.Decode(material.DefinitionClassID, data[:len(data)/2])
	require.ErrorIs(t, err, serial.ErrFormat)

	_, err = reg.Decode(material.InstanceClassID, data)
	require.ErrorIs(t, err, serial.ErrFormat)
}

func TestDefinition_References(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	txn := f.begin(t)
	d := f.defs["::example::M"]

	refs := d.References(txn)
	require.Contains(t, refs, f.moduleTag)
	require.NotContains(t, refs, d.Tag())
}

func TestDefinition_Resources(t *testing.T) {
	ctx := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{
		"m.mdlc.hcl": `
module_name = "::m"
material "A" {
  exported = true
  parameter "tex" {
    type    = texture_2d
    default = "textures/wood.png"
  }
  parameter "again" {
    type    = texture_2d
    default = "/textures/wood.png"
  }
}
`,
		"textures/wood.png": "not really a png",
	})
	filename := filepath.Join(root, "m.mdlc.hcl")
	dag, err := compiled.Load(ctx, filename)
	require.NoError(t, err)

	txn := db.New().Begin(ctx)
	defer txn.Abort(ctx)
	d, err := material.NewDefinition(ctx, txn, txn.ReserveTag(), material.NextIdent(), dag, 0, filename, "::m", true)
	require.NoError(t, err)

	// Both paths name the same file.
	require.Len(t, d.Resources(), 1)
	require.Contains(t, d.References(txn), d.Resources()[0])
	require.True(t, d.ParameterType(0).Equals(mdltype.Texture2D))

	elem, err := txn.Access(d.Resources()[0])
	require.NoError(t, err)
	res, ok := elem.(*resource.Element)
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "textures", "wood.png"), res.Filename())
}

func TestDefinition_ZeroValue(t *testing.T) {
	f := newFixture(t, testutil.ExampleModule)
	var d material.Definition

	require.Zero(t, d.ParameterCount())
	require.Equal(t, material.InvalidIndex, d.ParameterIndex("c"))
	require.Nil(t, d.Default(0))
	_, err := d.EnableIfUser(0, 0)
	require.ErrorIs(t, err, material.ErrOutOfRange)
	require.False(t, d.IsValid(f.ctx, f.begin(t)))
	require.False(t, d.IsCompatible(f.defs["::example::M"]))

	_, err = d.CreateInstanceInternal(f.ctx, f.begin(t), expr.NewList(), material.Options{})
	require.ErrorIs(t, err, material.ErrStaleDefinition)
}
