package material

import (
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

const (
	// DefinitionClassID identifies material definition elements.
	DefinitionClassID serial.ClassID = 0x5f4d6d64 // '_Mmd'
	// InstanceClassID identifies material instance elements.
	InstanceClassID serial.ClassID = 0x5f4d6d69 // '_Mmi'
)

const (
	definitionFields = 19
	instanceFields   = 6
)

// Classes registers the element classes of this package.
type Classes struct{}

func (Classes) Register(r *serial.Registry) {
	r.Register(serial.Class{ID: DefinitionClassID, Name: "material definition", Decode: decodeDefinition})
	r.Register(serial.Class{ID: InstanceClassID, Name: "material instance", Decode: decodeInstance})
}

func (d *Definition) Serialize(w *serial.Writer) {
	w.Struct(DefinitionClassID, definitionFields)
	w.Uint32(uint32(d.tag))
	w.Uint64(uint64(d.ident))
	w.String(d.name)
	w.String(d.moduleName)
	w.String(d.moduleDBName)
	w.String(d.originalName)
	w.String(d.thumbnail)
	w.Uint32(uint32(d.prototype))
	w.Bool(d.exported)

	w.Strings(d.names)
	w.Len(len(d.types))
	for _, t := range d.types {
		expr.EncodeType(w, t)
	}
	encodeExprs(w, d.defaults)
	encodeExprs(w, d.enableIf)
	expr.EncodeBlock(w, d.annotations)
	w.Len(len(d.paramAnnotations))
	for _, b := range d.paramAnnotations {
		expr.EncodeBlock(w, b)
	}

	expr.Encode(w, d.body)
	w.Strings(d.temporaryNames)
	encodeExprs(w, d.temporaries)

	tags := make([]int, len(d.resources))
	for i, t := range d.resources {
		tags[i] = int(t)
	}
	w.Ints(tags)
}

// decodeDefinition rebuilds a definition written by Serialize. The
// reverse enable_if map is recomputed rather than stored.
func decodeDefinition(r *serial.Reader) (any, error) {
	r.Struct(DefinitionClassID, definitionFields)
	d := &Definition{
		tag:          db.Tag(r.Uint32()),
		ident:        Ident(r.Uint64()),
		name:         r.String(),
		moduleName:   r.String(),
		moduleDBName: r.String(),
		originalName: r.String(),
		thumbnail:    r.String(),
		prototype:    db.Tag(r.Uint32()),
		exported:     r.Bool(),
	}

	c := &Catalog{names: r.Strings()}
	n := r.Len()
	for i := 0; i < n && r.Err() == nil; i++ {
		c.types = append(c.types, expr.DecodeType(r))
	}
	c.defaults = decodeExprs(r)
	c.enableIf = decodeExprs(r)
	c.annotations = expr.DecodeBlock(r)
	n = r.Len()
	for i := 0; i < n && r.Err() == nil; i++ {
		c.paramAnnotations = append(c.paramAnnotations, expr.DecodeBlock(r))
	}

	d.body = expr.Decode(r)
	d.temporaryNames = r.Strings()
	d.temporaries = decodeExprs(r)
	for _, t := range r.Ints() {
		d.resources = append(d.resources, db.Tag(t))
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	count := len(c.names)
	if len(c.types) != count || len(c.defaults) != count || len(c.enableIf) != count || len(c.paramAnnotations) != count {
		return nil, fmt.Errorf("%w: definition %s: catalog arrays disagree with %d parameters", serial.ErrFormat, d.name, count)
	}
	if len(d.temporaryNames) != len(d.temporaries) {
		return nil, fmt.Errorf("%w: definition %s: %d temporary names for %d temporaries", serial.ErrFormat, d.name, len(d.temporaryNames), len(d.temporaries))
	}
	if err := c.build(); err != nil {
		return nil, fmt.Errorf("%w: definition %s: %v", serial.ErrFormat, d.name, err)
	}
	d.Catalog = *c
	observeIdent(d.ident)
	return d, nil
}

func (inst *Instance) Serialize(w *serial.Writer) {
	w.Struct(InstanceClassID, instanceFields)
	w.Uint32(uint32(inst.definitionTag))
	w.String(inst.definitionName)
	w.String(inst.moduleDBName)
	w.Uint64(uint64(inst.ident))
	expr.EncodeList(w, inst.arguments)
	w.Bool(inst.immutable)
}

func decodeInstance(r *serial.Reader) (any, error) {
	r.Struct(InstanceClassID, instanceFields)
	inst := &Instance{
		definitionTag:  db.Tag(r.Uint32()),
		definitionName: r.String(),
		moduleDBName:   r.String(),
		ident:          Ident(r.Uint64()),
		arguments:      expr.DecodeList(r),
		immutable:      r.Bool(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return inst, nil
}

// encodeExprs writes a sequence of expressions, any of which may be nil.
func encodeExprs(w *serial.Writer, exprs []expr.Expression) {
	w.Len(len(exprs))
	for _, e := range exprs {
		expr.Encode(w, e)
	}
}

func decodeExprs(r *serial.Reader) []expr.Expression {
	n := r.Len()
	out := make([]expr.Expression, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		out = append(out, expr.Decode(r))
	}
	return out
}
