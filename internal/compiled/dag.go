package compiled

import (
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
)

// DAG is the read-only view of a compiled module.
type DAG interface {
	// ModuleName returns the fully qualified module name, e.g. "::example".
	ModuleName() string
	// Filename returns the file the module was compiled from.
	Filename() string
	// Imports returns the qualified names of modules the material bodies
	// and defaults call into, sorted.
	Imports() []string
	// MaterialCount returns the size of the material table.
	MaterialCount() int
	// Material returns the entry at index, or nil if index is out of range.
	Material(index int) *Material
}

// Material is one entry of the material table.
type Material struct {
	// Name is the fully qualified material name, e.g. "::example::M".
	Name         string
	Exported     bool
	OriginalName string
	// Prototype is the database name of the material this one is a variant
	// of, or "".
	Prototype   string
	Thumbnail   string
	Annotations expr.Block
	Parameters  []Parameter
	Temporaries []Temporary
	// Body is the root call of the material body. It may be nil.
	Body expr.Expression
}

// Parameter describes one material parameter.
type Parameter struct {
	Name string
	Type mdltype.Type
	// Default is nil when the caller must supply an argument.
	Default expr.Expression
	// EnableIf is nil when the parameter is always enabled.
	EnableIf    expr.Expression
	Annotations expr.Block
}

// Temporary is a named sub-expression shared within a material body.
type Temporary struct {
	Name  string
	Value expr.Expression
}

// Module is an in-memory compiled module.
type Module struct {
	name      string
	filename  string
	imports   []string
	materials []*Material
}

// NewModule assembles a module from already translated materials. It is
// used by the loader and by tests that build modules directly.
func NewModule(name, filename string, imports []string, materials ...*Material) *Module {
	return &Module{name: name, filename: filename, imports: imports, materials: materials}
}

func (m *Module) ModuleName() string { return m.name }
func (m *Module) Filename() string   { return m.filename }
func (m *Module) Imports() []string  { return append([]string(nil), m.imports...) }
func (m *Module) MaterialCount() int { return len(m.materials) }

func (m *Module) Material(index int) *Material {
	if index < 0 || index >= len(m.materials) {
		return nil
	}
	return m.materials[index]
}

// MaterialIndex returns the index of the material with the given qualified
// name, or -1.
func (m *Module) MaterialIndex(name string) int {
	for i, mat := range m.materials {
		if mat.Name == name {
			return i
		}
	}
	return -1
}
