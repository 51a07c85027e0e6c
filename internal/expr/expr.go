package expr

import (
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/zclconf/go-cty/cty"
)

// Kind identifies the concrete type of an Expression.
type Kind uint8

const (
	KindConstant Kind = iota + 1
	KindCall
	KindParameter
	KindTemporary
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindCall:
		return "call"
	case KindParameter:
		return "parameter"
	case KindTemporary:
		return "temporary"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Expression is a node of the expression graph.
type Expression interface {
	Kind() Kind
	Type() mdltype.Type
	isExpression()
}

// Constant is a literal value of a known type.
type Constant struct {
	typ mdltype.Type
	val cty.Value
}

// NewConstant converts v into the representation of t and wraps it.
func NewConstant(t mdltype.Type, v cty.Value) (*Constant, error) {
	converted, err := t.Convert(v)
	if err != nil {
		return nil, err
	}
	return &Constant{typ: t, val: converted}, nil
}

// MustConstant is like NewConstant but panics on error. It is meant for
// literals whose validity is known statically.
func MustConstant(t mdltype.Type, v cty.Value) *Constant {
	c, err := NewConstant(t, v)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Constant) Kind() Kind         { return KindConstant }
func (c *Constant) Type() mdltype.Type { return c.typ }
func (c *Constant) Value() cty.Value   { return c.val }
func (c *Constant) isExpression()      {}

// Call is a direct call of the definition with the given database name.
type Call struct {
	typ        mdltype.Type
	definition string
	args       *List
}

// NewCall creates a call expression. A nil argument list is treated as an
// empty one.
func NewCall(t mdltype.Type, definition string, args *List) *Call {
	if args == nil {
		args = NewList()
	}
	return &Call{typ: t, definition: definition, args: args}
}

func (c *Call) Kind() Kind         { return KindCall }
func (c *Call) Type() mdltype.Type { return c.typ }
func (c *Call) isExpression()      {}

// Definition returns the database name of the called definition.
func (c *Call) Definition() string { return c.definition }

// Arguments returns the argument list of the call.
func (c *Call) Arguments() *List { return c.args }

// Parameter references the parameter at Index of the enclosing definition.
type Parameter struct {
	typ   mdltype.Type
	index int
}

func NewParameter(t mdltype.Type, index int) *Parameter {
	return &Parameter{typ: t, index: index}
}

func (p *Parameter) Kind() Kind         { return KindParameter }
func (p *Parameter) Type() mdltype.Type { return p.typ }
func (p *Parameter) Index() int         { return p.index }
func (p *Parameter) isExpression()      {}

// Temporary references the temporary at Index of the enclosing body.
type Temporary struct {
	typ   mdltype.Type
	index int
}

func NewTemporary(t mdltype.Type, index int) *Temporary {
	return &Temporary{typ: t, index: index}
}

func (t *Temporary) Kind() Kind         { return KindTemporary }
func (t *Temporary) Type() mdltype.Type { return t.typ }
func (t *Temporary) Index() int         { return t.index }
func (t *Temporary) isExpression()      {}
