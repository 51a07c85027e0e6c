// Package module loads compiled modules into the scene database and
// reconciles their definitions when a module is reloaded.
package module

import (
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/material"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

// ClassID identifies module elements.
const ClassID serial.ClassID = 0x5f4d6d6f // '_Mmo'

// Entry is one published definition of a module.
type Entry struct {
	DBName string
	Tag    db.Tag
	Ident  material.Ident
}

// Module is the database element of a loaded module. It records which
// incarnation of each definition is current.
type Module struct {
	name        string
	filename    string
	imports     []string
	definitions []Entry
}

var (
	_ db.Element          = (*Module)(nil)
	_ material.IdentTable = (*Module)(nil)
)

// Name returns the qualified module name, e.g. "::example".
func (m *Module) Name() string { return m.name }

// DBName returns the database name of the module.
func (m *Module) DBName() string { return material.DBName(m.name) }

// Filename returns the compiled module file the module was loaded from.
func (m *Module) Filename() string { return m.filename }

// Imports returns the qualified names of the modules called into.
func (m *Module) Imports() []string { return append([]string(nil), m.imports...) }

// DefinitionCount returns the number of published definitions.
func (m *Module) DefinitionCount() int { return len(m.definitions) }

// Definition returns entry i of the definition table.
func (m *Module) Definition(i int) (Entry, bool) {
	if i < 0 || i >= len(m.definitions) {
		return Entry{}, false
	}
	return m.definitions[i], true
}

// DefinitionTag returns the tag of the definition published under dbName,
// or db.InvalidTag.
func (m *Module) DefinitionTag(dbName string) db.Tag {
	if e, ok := m.lookup(dbName); ok {
		return e.Tag
	}
	return db.InvalidTag
}

// DefinitionIdent returns the current identity of the definition published
// under dbName.
func (m *Module) DefinitionIdent(dbName string) (material.Ident, bool) {
	e, ok := m.lookup(dbName)
	return e.Ident, ok
}

func (m *Module) lookup(dbName string) (Entry, bool) {
	for _, e := range m.definitions {
		if e.DBName == dbName {
			return e, true
		}
	}
	return Entry{}, false
}

func (m *Module) ClassID() serial.ClassID { return ClassID }

func (m *Module) JournalFlags() db.Journal { return db.JournalStructure }

func (m *Module) Size() int {
	size := 64 + len(m.name) + len(m.filename)
	for _, s := range m.imports {
		size += len(s)
	}
	for _, e := range m.definitions {
		size += len(e.DBName) + 16
	}
	return size
}

// References returns every published definition and every imported module
// present in the database.
func (m *Module) References(r db.Resolver) []db.Tag {
	out := make([]db.Tag, 0, len(m.definitions)+len(m.imports))
	for _, e := range m.definitions {
		out = append(out, e.Tag)
	}
	for _, imp := range m.imports {
		if t := r.NameToTag(material.DBName(imp)); t.IsValid() {
			out = append(out, t)
		}
	}
	return out
}

func (m *Module) Serialize(w *serial.Writer) {
	w.Struct(ClassID, 4)
	w.String(m.name)
	w.String(m.filename)
	w.Strings(m.imports)
	w.Len(len(m.definitions))
	for _, e := range m.definitions {
		w.Len(3)
		w.String(e.DBName)
		w.Uint32(uint32(e.Tag))
		w.Uint64(uint64(e.Ident))
	}
}

func decode(r *serial.Reader) (any, error) {
	r.Struct(ClassID, 4)
	m := &Module{
		name:     r.String(),
		filename: r.String(),
		imports:  r.Strings(),
	}
	n := r.Len()
	for i := 0; i < n && r.Err() == nil; i++ {
		if r.Len() != 3 {
			r.Fail("definition entry %d is malformed", i)
			break
		}
		m.definitions = append(m.definitions, Entry{
			DBName: r.String(),
			Tag:    db.Tag(r.Uint32()),
			Ident:  material.Ident(r.Uint64()),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(m.name) < 3 {
		return nil, fmt.Errorf("%w: module name %q", serial.ErrFormat, m.name)
	}
	return m, nil
}

// Classes registers the module element class.
type Classes struct{}

func (Classes) Register(r *serial.Registry) {
	r.Register(serial.Class{ID: ClassID, Name: "module", Decode: decode})
}
