package material

import (
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
)

// DefinitionDump is a printable snapshot of a definition.
type DefinitionDump struct {
	Name         string           `json:"name" yaml:"name"`
	DBName       string           `json:"db_name" yaml:"db_name"`
	Module       string           `json:"module" yaml:"module"`
	Tag          uint32           `json:"tag" yaml:"tag"`
	Ident        uint64           `json:"ident" yaml:"ident"`
	Exported     bool             `json:"exported" yaml:"exported"`
	OriginalName string           `json:"original_name,omitempty" yaml:"original_name,omitempty"`
	Prototype    string           `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	Thumbnail    string           `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Annotations  []AnnotationDump `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Parameters   []ParameterDump  `json:"parameters" yaml:"parameters"`
	Temporaries  []NamedDump      `json:"temporaries,omitempty" yaml:"temporaries,omitempty"`
	Body         string           `json:"body,omitempty" yaml:"body,omitempty"`
}

// ParameterDump describes one parameter.
type ParameterDump struct {
	Index         int              `json:"index" yaml:"index"`
	Name          string           `json:"name" yaml:"name"`
	Type          string           `json:"type" yaml:"type"`
	Default       string           `json:"default,omitempty" yaml:"default,omitempty"`
	EnableIf      string           `json:"enable_if,omitempty" yaml:"enable_if,omitempty"`
	EnableIfUsers []string         `json:"enable_if_users,omitempty" yaml:"enable_if_users,omitempty"`
	Annotations   []AnnotationDump `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// AnnotationDump describes one annotation.
type AnnotationDump struct {
	Name      string      `json:"name" yaml:"name"`
	Arguments []NamedDump `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// NamedDump is a named, formatted expression.
type NamedDump struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Dump returns a printable snapshot of d. txn resolves the prototype name;
// it may be nil.
func (d *Definition) Dump(txn *db.Transaction) DefinitionDump {
	out := DefinitionDump{
		Name:         d.name,
		DBName:       d.DBName(),
		Module:       d.moduleName,
		Tag:          uint32(d.tag),
		Ident:        uint64(d.ident),
		Exported:     d.exported,
		OriginalName: d.originalName,
		Thumbnail:    d.thumbnail,
		Annotations:  dumpBlock(d.annotations),
		Parameters:   make([]ParameterDump, 0, d.ParameterCount()),
	}
	if d.prototype.IsValid() {
		out.Prototype = d.prototype.String()
		if txn != nil {
			if name := txn.TagToName(d.prototype); name != "" {
				out.Prototype = name
			}
		}
	}
	for i, name := range d.names {
		p := ParameterDump{
			Index:       i,
			Name:        name,
			Type:        d.types[i].Name(),
			Annotations: dumpBlock(d.paramAnnotations[i]),
		}
		if def := d.defaults[i]; def != nil {
			p.Default = expr.Format(def, d.names, nil)
		}
		if cond := d.enableIf[i]; cond != nil {
			p.EnableIf = expr.Format(cond, d.names, nil)
		}
		for _, u := range d.enableIfUsers[i] {
			p.EnableIfUsers = append(p.EnableIfUsers, d.names[u])
		}
		out.Parameters = append(out.Parameters, p)
	}
	for i, t := range d.temporaries {
		out.Temporaries = append(out.Temporaries, NamedDump{
			Name:  d.temporaryNames[i],
			Type:  typeName(t),
			Value: expr.Format(t, d.names, d.temporaryNames),
		})
	}
	if d.body != nil {
		out.Body = expr.Format(d.body, d.names, d.temporaryNames)
	}
	return out
}

// InstanceDump is a printable snapshot of an instance.
type InstanceDump struct {
	Definition string      `json:"definition" yaml:"definition"`
	Ident      uint64      `json:"ident" yaml:"ident"`
	Immutable  bool        `json:"immutable" yaml:"immutable"`
	Arguments  []NamedDump `json:"arguments" yaml:"arguments"`
}

// Dump returns a printable snapshot of inst.
func (inst *Instance) Dump() InstanceDump {
	out := InstanceDump{
		Definition: inst.definitionName,
		Ident:      uint64(inst.ident),
		Immutable:  inst.immutable,
		Arguments:  dumpList(inst.arguments),
	}
	if out.Arguments == nil {
		out.Arguments = []NamedDump{}
	}
	return out
}

func dumpBlock(b expr.Block) []AnnotationDump {
	var out []AnnotationDump
	for _, a := range b {
		out = append(out, AnnotationDump{Name: a.Name(), Arguments: dumpList(a.Arguments())})
	}
	return out
}

func dumpList(l *expr.List) []NamedDump {
	var out []NamedDump
	for i := 0; i < l.Len(); i++ {
		e := l.Get(i)
		out = append(out, NamedDump{Name: l.Name(i), Type: typeName(e), Value: expr.Format(e, nil, nil)})
	}
	return out
}

func typeName(e expr.Expression) string {
	if e == nil {
		return ""
	}
	return e.Type().Name()
}
