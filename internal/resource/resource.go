// Package resource stores external files referenced by material defaults
// and annotations (textures, light profiles, measured BSDFs) in the scene
// database.
package resource

import (
	"context"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/fsutil"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

// ClassID identifies resource elements.
const ClassID serial.ClassID = 0x5f526573 // '_Res'

// DBNamePrefix prefixes the database name of every resource element.
const DBNamePrefix = "mdlr::"

// Element is a loaded resource.
type Element struct {
	kind     mdltype.Type
	mdlPath  string
	filename string
	size     int64
	hash     uint64
}

// Kind returns the resource type, e.g. texture_2d.
func (e *Element) Kind() mdltype.Type { return e.kind }

// MDLPath returns the path as written in the module.
func (e *Element) MDLPath() string { return e.mdlPath }

// Filename returns the resolved file name.
func (e *Element) Filename() string { return e.filename }

// Hash returns the xxhash64 digest of the file contents.
func (e *Element) Hash() uint64 { return e.hash }

func (e *Element) ClassID() serial.ClassID         { return ClassID }
func (e *Element) JournalFlags() db.Journal        { return db.JournalStructure }
func (e *Element) References(db.Resolver) []db.Tag { return nil }
func (e *Element) Size() int                       { return 64 + len(e.mdlPath) + len(e.filename) }

func (e *Element) Serialize(w *serial.Writer) {
	w.Struct(ClassID, 5)
	w.String(e.kind.Name())
	w.String(e.mdlPath)
	w.String(e.filename)
	w.Uint64(uint64(e.size))
	w.Uint64(e.hash)
}

func decode(r *serial.Reader) (any, error) {
	r.Struct(ClassID, 5)
	kindName := r.String()
	e := &Element{
		mdlPath:  r.String(),
		filename: r.String(),
		size:     int64(r.Uint64()),
		hash:     r.Uint64(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	kind, ok := mdltype.Lookup(kindName)
	if !ok || !kind.IsResource() {
		return nil, fmt.Errorf("%w: %q is not a resource type", serial.ErrFormat, kindName)
	}
	e.kind = kind
	return e, nil
}

// Classes registers the resource element class.
type Classes struct{}

func (Classes) Register(r *serial.Registry) {
	r.Register(serial.Class{ID: ClassID, Name: "resource", Decode: decode})
}

// Load resolves mdlPath relative to the module file, reads it and stores a
// resource element in txn. A resource already present under the same file
// name is reused. The returned tag is valid until the element is collected.
func Load(ctx context.Context, txn *db.Transaction, kind mdltype.Type, mdlPath, moduleFilename string) (db.Tag, error) {
	logger := ctxlog.FromContext(ctx).With("resource", mdlPath, "kind", kind.Name())

	if !kind.IsResource() {
		return db.InvalidTag, fmt.Errorf("type %s is not a resource type", kind)
	}
	filename, err := fsutil.ResolveResource(moduleFilename, mdlPath)
	if err != nil {
		return db.InvalidTag, err
	}

	name := DBNamePrefix + filename
	if tag := txn.NameToTag(name); tag.IsValid() {
		logger.Debug("Resource already loaded.", "tag", tag)
		return tag, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return db.InvalidTag, fmt.Errorf("load resource %q: %w", mdlPath, err)
	}

	elem := &Element{
		kind:     kind,
		mdlPath:  mdlPath,
		filename: filename,
		size:     int64(len(data)),
		hash:     xxhash.Sum64(data),
	}
	tag := txn.ReserveTag()
	if err := txn.Store(tag, name, elem); err != nil {
		return db.InvalidTag, err
	}
	logger.Debug("Resource loaded.", "tag", tag, "file", filename, "bytes", len(data))
	return tag, nil
}
