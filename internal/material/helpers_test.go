package material_test

import (
	"context"
	"testing"

	"github.com/specialistvlad/mdlscene/internal/compiled"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/material"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/stretchr/testify/require"
)

const fakeModuleClass serial.ClassID = 0x5f466d6f // '_Fmo'

// fakeModule publishes definition idents the way the module element does.
type fakeModule struct {
	idents map[string]material.Ident
}

func (m *fakeModule) ClassID() serial.ClassID         { return fakeModuleClass }
func (m *fakeModule) Serialize(w *serial.Writer)      { w.Struct(fakeModuleClass, 0) }
func (m *fakeModule) Size() int                       { return 0 }
func (m *fakeModule) JournalFlags() db.Journal        { return db.JournalStructure }
func (m *fakeModule) References(db.Resolver) []db.Tag { return nil }
func (m *fakeModule) DefinitionIdent(name string) (material.Ident, bool) {
	id, ok := m.idents[name]
	return id, ok
}

// fixture holds a database with one loaded module.
type fixture struct {
	ctx       context.Context
	db        *db.Database
	dag       *compiled.Module
	filename  string
	moduleTag db.Tag
	defs      map[string]*material.Definition
}

// newFixture compiles src, builds every definition of it and commits them
// together with a fake module element.
func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	ctx := testutil.Context(t)
	filename := testutil.WriteModule(t, "test.mdlc.hcl", src)
	dag, err := compiled.Load(ctx, filename)
	require.NoError(t, err)

	f := &fixture{ctx: ctx, db: db.New(), dag: dag, filename: filename, defs: make(map[string]*material.Definition)}
	txn := f.db.Begin(ctx)
	mod := &fakeModule{idents: make(map[string]material.Ident)}
	for i := 0; i < dag.MaterialCount(); i++ {
		d := f.build(t, txn, i, txn.ReserveTag(), material.NextIdent())
		require.NoError(t, txn.Store(d.Tag(), d.DBName(), d))
		mod.idents[d.DBName()] = d.Ident()
		f.defs[d.Name()] = d
	}
	f.moduleTag = txn.ReserveTag()
	require.NoError(t, txn.Store(f.moduleTag, material.DBName(dag.ModuleName()), mod))
	require.NoError(t, txn.Commit(ctx))
	return f
}

func (f *fixture) build(t *testing.T, txn *db.Transaction, index int, tag db.Tag, ident material.Ident) *material.Definition {
	t.Helper()
	d, err := material.NewDefinition(f.ctx, txn, tag, ident, f.dag, index, f.filename, f.dag.ModuleName(), false)
	require.NoError(t, err)
	return d
}

func (f *fixture) begin(t *testing.T) *db.Transaction {
	t.Helper()
	txn := f.db.Begin(f.ctx)
	t.Cleanup(func() { txn.Abort(f.ctx) })
	return txn
}

// supersede publishes a new incarnation of d under the same tag.
func (f *fixture) supersede(t *testing.T, d *material.Definition) *material.Definition {
	t.Helper()
	txn := f.db.Begin(f.ctx)
	next := f.build(t, txn, f.dag.MaterialIndex(d.Name()), d.Tag(), material.NextIdent())
	require.NoError(t, txn.Store(next.Tag(), "", next))

	elem, err := txn.Access(f.moduleTag)
	require.NoError(t, err)
	old := elem.(*fakeModule)
	mod := &fakeModule{idents: make(map[string]material.Ident, len(old.idents))}
	for k, v := range old.idents {
		mod.idents[k] = v
	}
	mod.idents[next.DBName()] = next.Ident()
	require.NoError(t, txn.Store(f.moduleTag, "", mod))
	require.NoError(t, txn.Commit(f.ctx))
	return next
}
