package material

import (
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/compiled"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
)

// InvalidIndex is returned by ParameterIndex for unknown names.
const InvalidIndex = -1

// Catalog is the immutable parameter table of a definition. All per
// parameter slices have the length of the parameter count.
type Catalog struct {
	names            []string
	index            map[string]int
	types            []mdltype.Type
	defaults         []expr.Expression
	enableIf         []expr.Expression
	paramAnnotations []expr.Block
	annotations      expr.Block
	enableIfUsers    [][]int
}

func newCatalog(params []compiled.Parameter, annotations expr.Block) (*Catalog, error) {
	n := len(params)
	c := &Catalog{
		names:            make([]string, n),
		types:            make([]mdltype.Type, n),
		defaults:         make([]expr.Expression, n),
		enableIf:         make([]expr.Expression, n),
		paramAnnotations: make([]expr.Block, n),
		annotations:      annotations,
	}
	for i, p := range params {
		if !p.Type.IsValid() {
			return nil, fmt.Errorf("parameter %q has no type", p.Name)
		}
		c.names[i] = p.Name
		c.types[i] = p.Type
		c.defaults[i] = p.Default
		c.enableIf[i] = p.EnableIf
		c.paramAnnotations[i] = p.Annotations
	}
	if err := c.build(); err != nil {
		return nil, err
	}
	return c, nil
}

// build checks the parameter table and derives the name index and the
// enable_if users. Defaults may reference only earlier parameters and
// enable_if conditions any parameter, without cycles.
func (c *Catalog) build() error {
	n := len(c.names)
	c.index = make(map[string]int, n)
	for i, name := range c.names {
		if _, dup := c.index[name]; dup {
			return fmt.Errorf("duplicate parameter %q", name)
		}
		c.index[name] = i
	}
	for i, def := range c.defaults {
		for _, ref := range expr.ParameterRefs(def) {
			if ref < 0 || ref >= i {
				return fmt.Errorf("default of %q references parameter #%d, not an earlier parameter", c.names[i], ref)
			}
		}
	}
	for i, cond := range c.enableIf {
		for _, ref := range expr.ParameterRefs(cond) {
			if ref < 0 || ref >= n {
				return fmt.Errorf("enable_if of %q references parameter #%d of %d", c.names[i], ref, n)
			}
		}
	}
	if err := checkEnableIfCycles(c.enableIf); err != nil {
		return err
	}
	c.enableIfUsers = ComputeEnableIfUsers(c.enableIf)
	return nil
}

// ComputeEnableIfUsers returns, for every parameter, the ascending indices
// of the parameters whose enable_if condition references it. enableIf is
// indexed by parameter; nil entries are unconditional parameters.
func ComputeEnableIfUsers(enableIf []expr.Expression) [][]int {
	users := make([][]int, len(enableIf))
	for i, cond := range enableIf {
		for _, ref := range expr.ParameterRefs(cond) {
			if ref >= 0 && ref < len(users) {
				users[ref] = append(users[ref], i)
			}
		}
	}
	return users
}

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// checkEnableIfCycles reports a parameter whose enable_if condition depends,
// directly or through other conditions, on the parameter itself.
func checkEnableIfCycles(enableIf []expr.Expression) error {
	states := make([]visitState, len(enableIf))
	var visit func(i int) error
	visit = func(i int) error {
		switch states[i] {
		case stateVisiting:
			return fmt.Errorf("enable_if conditions form a cycle through parameter #%d", i)
		case stateDone:
			return nil
		}
		states[i] = stateVisiting
		for _, next := range expr.ParameterRefs(enableIf[i]) {
			if err := visit(next); err != nil {
				return err
			}
		}
		states[i] = stateDone
		return nil
	}
	for i := range enableIf {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// ParameterCount returns the number of parameters.
func (c *Catalog) ParameterCount() int { return len(c.names) }

// ParameterName returns the name of parameter i.
func (c *Catalog) ParameterName(i int) (string, error) {
	if i < 0 || i >= len(c.names) {
		return "", fmt.Errorf("%w: parameter #%d", ErrNotFound, i)
	}
	return c.names[i], nil
}

// ParameterIndex returns the index of the named parameter, or InvalidIndex.
func (c *Catalog) ParameterIndex(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return InvalidIndex
}

// ParameterType returns the type of parameter i, or the zero Type.
func (c *Catalog) ParameterType(i int) mdltype.Type {
	if i < 0 || i >= len(c.types) {
		return mdltype.Type{}
	}
	return c.types[i]
}

// ParameterTypes returns the parameter types in parameter order.
func (c *Catalog) ParameterTypes() []mdltype.Type {
	return append([]mdltype.Type(nil), c.types...)
}

// Default returns the default of parameter i, or nil.
func (c *Catalog) Default(i int) expr.Expression {
	if i < 0 || i >= len(c.defaults) {
		return nil
	}
	return c.defaults[i]
}

// Defaults returns the defaults of all parameters that have one, named
// after their parameter and in parameter order.
func (c *Catalog) Defaults() *expr.List {
	return c.namedList(c.defaults)
}

// EnableIf returns the enable_if condition of parameter i, or nil.
func (c *Catalog) EnableIf(i int) expr.Expression {
	if i < 0 || i >= len(c.enableIf) {
		return nil
	}
	return c.enableIf[i]
}

// EnableIfConditions returns the conditions of all conditional parameters.
func (c *Catalog) EnableIfConditions() *expr.List {
	return c.namedList(c.enableIf)
}

// EnableIfUserCount returns how many enable_if conditions reference
// parameter i. It is zero for an out of range index.
func (c *Catalog) EnableIfUserCount(i int) int {
	if i < 0 || i >= len(c.enableIfUsers) {
		return 0
	}
	return len(c.enableIfUsers[i])
}

// EnableIfUser returns the index of the u-th parameter whose enable_if
// condition references parameter i.
func (c *Catalog) EnableIfUser(i, u int) (int, error) {
	if i < 0 || i >= len(c.enableIfUsers) {
		return InvalidIndex, fmt.Errorf("%w: parameter #%d", ErrOutOfRange, i)
	}
	users := c.enableIfUsers[i]
	if u < 0 || u >= len(users) {
		return InvalidIndex, fmt.Errorf("%w: enable_if user #%d of parameter %q", ErrOutOfRange, u, c.names[i])
	}
	return users[u], nil
}

// Annotations returns the annotation block of the definition.
func (c *Catalog) Annotations() expr.Block { return c.annotations }

// ParameterAnnotations returns the annotation block of parameter i.
func (c *Catalog) ParameterAnnotations(i int) expr.Block {
	if i < 0 || i >= len(c.paramAnnotations) {
		return nil
	}
	return c.paramAnnotations[i]
}

func (c *Catalog) namedList(exprs []expr.Expression) *expr.List {
	l := expr.NewList()
	for i, e := range exprs {
		if e != nil {
			l.MustAdd(c.names[i], e)
		}
	}
	return l
}

// expressions returns every expression owned by the catalog.
func (c *Catalog) expressions() []expr.Expression {
	var out []expr.Expression
	for i := range c.names {
		if c.defaults[i] != nil {
			out = append(out, c.defaults[i])
		}
		if c.enableIf[i] != nil {
			out = append(out, c.enableIf[i])
		}
		out = append(out, c.paramAnnotations[i].Expressions()...)
	}
	return append(out, c.annotations.Expressions()...)
}
