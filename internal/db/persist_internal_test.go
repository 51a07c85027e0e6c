package db

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/stretchr/testify/require"
)

const leafClass serial.ClassID = 0x5f4c6566 // '_Lef'

type leaf struct{}

func (leaf) ClassID() serial.ClassID    { return leafClass }
func (leaf) Size() int                  { return 0 }
func (leaf) JournalFlags() Journal      { return JournalStructure }
func (leaf) References(Resolver) []Tag  { return nil }
func (leaf) Serialize(w *serial.Writer) { w.Struct(leafClass, 0) }
func (leaf) Register(r *serial.Registry) {
	r.Register(serial.Class{ID: leafClass, Name: "leaf", Decode: func(r *serial.Reader) (any, error) {
		r.Struct(leafClass, 0)
		return leaf{}, r.Err()
	}})
}

type rawEntry struct {
	tag  uint32
	name string
}

// rawSnapshot writes a snapshot by hand so that it can disagree with
// itself in ways Save never produces.
func rawSnapshot(t *testing.T, lastTag uint32, entries ...rawEntry) []byte {
	t.Helper()
	pw := serial.NewWriter()
	leaf{}.Serialize(pw)
	payload, err := pw.Bytes()
	require.NoError(t, err)

	w := serial.NewWriter()
	w.Struct(snapshotClass, 4)
	w.String(uuid.NewString())
	w.Uint64(1)
	w.Uint32(lastTag)
	w.Len(len(entries))
	for _, e := range entries {
		w.Len(5)
		w.Uint32(e.tag)
		w.String(e.name)
		w.Uint64(1)
		w.Uint32(uint32(leafClass))
		w.Raw(payload)
	}
	b, err := w.Bytes()
	require.NoError(t, err)
	return b
}

func TestRestore_RejectsInconsistentTags(t *testing.T) {
	testCases := []struct {
		name    string
		lastTag uint32
		entries []rawEntry
		wantErr string
	}{
		{name: "tag above last reserved", lastTag: 1, entries: []rawEntry{{tag: 1, name: "a"}, {tag: 5, name: "b"}}, wantErr: "outside the reserved range"},
		{name: "invalid tag", lastTag: 3, entries: []rawEntry{{tag: 0, name: "a"}}, wantErr: "outside the reserved range"},
		{name: "duplicate tag", lastTag: 3, entries: []rawEntry{{tag: 2, name: "a"}, {tag: 2, name: "b"}}, wantErr: "stored twice"},
		{name: "duplicate name", lastTag: 3, entries: []rawEntry{{tag: 1, name: "a"}, {tag: 2, name: "a"}}, wantErr: `name "a"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := rawSnapshot(t, tc.lastTag, tc.entries...)
			_, err := Restore(testutil.Context(t), bytes.NewReader(data), serial.NewRegistry(leaf{}))
			require.ErrorIs(t, err, serial.ErrFormat)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRestore_ReservesAfterLastTag(t *testing.T) {
	ctx := testutil.Context(t)
	data := rawSnapshot(t, 7, rawEntry{tag: 2, name: "a"}, rawEntry{tag: 7})
	d, err := Restore(ctx, bytes.NewReader(data), serial.NewRegistry(leaf{}))
	require.NoError(t, err)
	txn := d.Begin(ctx)
	defer txn.Abort(ctx)
	require.Equal(t, Tag(8), txn.ReserveTag())
}
