package db_test

import (
	"bytes"
	"testing"

	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/stretchr/testify/require"
)

const nodeClass serial.ClassID = 0x5f4e6f64 // '_Nod'

// node is a minimal element that refers to other elements by name.
type node struct {
	label string
	refs  []string
}

func (n *node) ClassID() serial.ClassID  { return nodeClass }
func (n *node) Size() int                { return len(n.label) }
func (n *node) JournalFlags() db.Journal { return db.JournalStructure }

func (n *node) Serialize(w *serial.Writer) {
	w.Struct(nodeClass, 2)
	w.String(n.label)
	w.Strings(n.refs)
}

func (n *node) References(r db.Resolver) []db.Tag {
	var out []db.Tag
	for _, name := range n.refs {
		if t := r.NameToTag(name); t.IsValid() {
			out = append(out, t)
		}
	}
	return out
}

type nodeModule struct{}

func (nodeModule) Register(r *serial.Registry) {
	r.Register(serial.Class{ID: nodeClass, Name: "node", Decode: func(r *serial.Reader) (any, error) {
		r.Struct(nodeClass, 2)
		n := &node{label: r.String(), refs: r.Strings()}
		return n, r.Err()
	}})
}

func TestTransaction_CommitPublishes(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	txn := d.Begin(ctx)
	tag := txn.ReserveTag()
	require.True(t, tag.IsValid())
	require.NoError(t, txn.Store(tag, "a", &node{label: "A"}))

	// Pending writes are visible to the writing transaction only.
	elem, err := txn.Access(tag)
	require.NoError(t, err)
	require.Equal(t, "A", elem.(*node).label)

	other := d.Begin(ctx)
	_, err = other.Access(tag)
	require.ErrorIs(t, err, db.ErrNotFound)
	require.Equal(t, db.InvalidTag, other.NameToTag("a"))

	require.NoError(t, txn.Commit(ctx))
	require.False(t, txn.IsOpen())
	require.Equal(t, tag, other.NameToTag("a"))
	require.Equal(t, "a", other.TagToName(tag))
	require.Equal(t, uint64(1), d.TagVersion(tag))
	require.Equal(t, 1, d.Len())

	_, err = txn.Access(tag)
	require.ErrorIs(t, err, db.ErrClosed)
	require.ErrorIs(t, txn.Commit(ctx), db.ErrClosed)
}

func TestTransaction_AbortPublishesNothing(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	txn := d.Begin(ctx)
	require.NoError(t, txn.Store(txn.ReserveTag(), "a", &node{label: "A"}))
	txn.Abort(ctx)
	txn.Abort(ctx)

	require.Zero(t, d.Len())
	require.Zero(t, d.Version())
	require.Empty(t, d.Journal(0))
}

func TestTransaction_SupersedeBumpsVersion(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	txn := d.Begin(ctx)
	tag := txn.ReserveTag()
	require.NoError(t, txn.Store(tag, "a", &node{label: "v1"}))
	require.NoError(t, txn.Commit(ctx))

	txn = d.Begin(ctx)
	require.NoError(t, txn.Store(tag, "", &node{label: "v2"}))
	require.NoError(t, txn.Commit(ctx))

	require.Equal(t, uint64(2), d.TagVersion(tag))
	elem, err := d.Begin(ctx).Access(tag)
	require.NoError(t, err)
	require.Equal(t, "v2", elem.(*node).label)

	journal := d.Journal(1)
	require.Len(t, journal, 1)
	require.Equal(t, db.JournalEntry{Tag: tag, Name: "a", Version: 2, Flags: db.JournalStructure}, journal[0])
}

func TestTransaction_NameConflict(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	txn := d.Begin(ctx)
	require.NoError(t, txn.Store(txn.ReserveTag(), "a", &node{}))
	require.ErrorIs(t, txn.Store(txn.ReserveTag(), "a", &node{}), db.ErrNameConflict)
	require.Error(t, txn.Store(db.InvalidTag, "b", &node{}))
	require.Error(t, txn.Store(txn.ReserveTag(), "b", nil))
}

func TestTransaction_ConcurrentNameConflictOnCommit(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	first := d.Begin(ctx)
	second := d.Begin(ctx)
	require.NoError(t, first.Store(first.ReserveTag(), "a", &node{}))
	require.NoError(t, second.Store(second.ReserveTag(), "a", &node{}))

	require.NoError(t, first.Commit(ctx))
	require.ErrorIs(t, second.Commit(ctx), db.ErrNameConflict)
}

func TestCollect(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	txn := d.Begin(ctx)
	root := txn.ReserveTag()
	child := txn.ReserveTag()
	orphan := txn.ReserveTag()
	require.NoError(t, txn.Store(root, "root", &node{refs: []string{"child", "missing"}}))
	require.NoError(t, txn.Store(child, "child", &node{refs: []string{"root"}}))
	require.NoError(t, txn.Store(orphan, "orphan", &node{}))
	require.NoError(t, txn.Commit(ctx))

	removed := d.Collect(ctx, root)
	require.Equal(t, []db.Tag{orphan}, removed)
	require.Equal(t, 2, d.Len())
	require.Equal(t, db.InvalidTag, d.Begin(ctx).NameToTag("orphan"))

	journal := d.Journal(1)
	require.Len(t, journal, 1)
	require.True(t, journal[0].Removed)

	require.Nil(t, d.Collect(ctx, root))
}

func TestSaveRestore(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()

	txn := d.Begin(ctx)
	a := txn.ReserveTag()
	b := txn.ReserveTag()
	require.NoError(t, txn.Store(a, "a", &node{label: "A", refs: []string{"b"}}))
	require.NoError(t, txn.Store(b, "b", &node{label: "B"}))
	require.NoError(t, txn.Commit(ctx))

	var buf bytes.Buffer
	require.NoError(t, d.Save(ctx, &buf))

	restored, err := db.Restore(ctx, &buf, serial.NewRegistry(nodeModule{}))
	require.NoError(t, err)
	require.Equal(t, d.ID(), restored.ID())
	require.Equal(t, d.Version(), restored.Version())
	require.Equal(t, 2, restored.Len())

	rtxn := restored.Begin(ctx)
	require.Equal(t, a, rtxn.NameToTag("a"))
	elem, err := rtxn.Access(a)
	require.NoError(t, err)
	require.Equal(t, &node{label: "A", refs: []string{"b"}}, elem)

	// Fresh tags never collide with restored ones.
	require.Greater(t, uint32(rtxn.ReserveTag()), uint32(b))
}

func TestRestore_UnknownClassFails(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()
	txn := d.Begin(ctx)
	require.NoError(t, txn.Store(txn.ReserveTag(), "a", &node{}))
	require.NoError(t, txn.Commit(ctx))

	var buf bytes.Buffer
	require.NoError(t, d.Save(ctx, &buf))

	_, err := db.Restore(ctx, &buf, serial.NewRegistry())
	require.ErrorIs(t, err, serial.ErrFormat)
}

func TestDatabase_Range(t *testing.T) {
	ctx := testutil.Context(t)
	d := db.New()
	txn := d.Begin(ctx)
	a, b := txn.ReserveTag(), txn.ReserveTag()
	require.NoError(t, txn.Store(b, "b", &node{label: "B"}))
	require.NoError(t, txn.Store(a, "a", &node{label: "A"}))
	require.NoError(t, txn.Commit(ctx))

	var names []string
	d.Range(func(tag db.Tag, name string, elem db.Element) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"a", "b"}, names)

	calls := 0
	d.Range(func(db.Tag, string, db.Element) bool {
		calls++
		return false
	})
	require.Equal(t, 1, calls)
}
