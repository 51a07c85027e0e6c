package expr

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Walk visits e and its sub-expressions depth first. Returning false from fn
// skips the children of the current node.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	if c, ok := e.(*Call); ok {
		for i := 0; i < c.args.Len(); i++ {
			Walk(c.args.Get(i), fn)
		}
	}
}

// ParameterRefs returns the sorted, unique indices of all parameters
// referenced anywhere in the given expressions.
func ParameterRefs(exprs ...Expression) []int {
	seen := make(map[int]struct{})
	for _, e := range exprs {
		Walk(e, func(n Expression) bool {
			if p, ok := n.(*Parameter); ok {
				seen[p.index] = struct{}{}
			}
			return true
		})
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// CalledDefinitions returns the sorted, unique database names of every
// definition called in the given expressions.
func CalledDefinitions(exprs ...Expression) []string {
	seen := make(map[string]struct{})
	for _, e := range exprs {
		Walk(e, func(n Expression) bool {
			if c, ok := n.(*Call); ok {
				seen[c.definition] = struct{}{}
			}
			return true
		})
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Constants returns every constant reachable from the given expressions in
// visiting order.
func Constants(exprs ...Expression) []*Constant {
	var out []*Constant
	for _, e := range exprs {
		Walk(e, func(n Expression) bool {
			if c, ok := n.(*Constant); ok {
				out = append(out, c)
			}
			return true
		})
	}
	return out
}

// Clone returns a deep copy of e.
func Clone(e Expression) Expression {
	return Substitute(e, nil)
}

// Substitute returns a deep copy of e in which every parameter reference for
// which fn returns a non-nil expression is replaced by that expression. A
// nil fn copies e unchanged.
func Substitute(e Expression, fn func(*Parameter) Expression) Expression {
	switch v := e.(type) {
	case nil:
		return nil
	case *Constant:
		return &Constant{typ: v.typ, val: v.val}
	case *Parameter:
		if fn != nil {
			if repl := fn(v); repl != nil {
				return repl
			}
		}
		return &Parameter{typ: v.typ, index: v.index}
	case *Temporary:
		return &Temporary{typ: v.typ, index: v.index}
	case *Call:
		args := NewList()
		for i := 0; i < v.args.Len(); i++ {
			args.names = append(args.names, v.args.names[i])
			args.exprs = append(args.exprs, Substitute(v.args.exprs[i], fn))
			args.index[v.args.names[i]] = i
		}
		return &Call{typ: v.typ, definition: v.definition, args: args}
	default:
		return e
	}
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !a.Type().Equals(b.Type()) {
		return false
	}
	switch av := a.(type) {
	case *Constant:
		return av.val.RawEquals(b.(*Constant).val)
	case *Parameter:
		return av.index == b.(*Parameter).index
	case *Temporary:
		return av.index == b.(*Temporary).index
	case *Call:
		bv := b.(*Call)
		return av.definition == bv.definition && EqualLists(av.args, bv.args)
	}
	return false
}

// EqualLists reports whether two lists have the same names and structurally
// identical expressions in the same order.
func EqualLists(a, b *List) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Name(i) != b.Name(i) || !Equal(a.Get(i), b.Get(i)) {
			return false
		}
	}
	return true
}

// Size returns an estimate of the memory held by e in bytes.
func Size(e Expression) int {
	size := 0
	Walk(e, func(n Expression) bool {
		size += 48
		switch v := n.(type) {
		case *Constant:
			size += valueSize(v.val)
		case *Call:
			size += len(v.definition)
			for _, name := range v.args.names {
				size += len(name) + 16
			}
		}
		return true
	})
	return size
}

func valueSize(v cty.Value) int {
	if !v.IsKnown() || v.IsNull() {
		return 0
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return len(v.AsString())
	case ty.IsPrimitiveType():
		return 16
	case ty.IsTupleType() || ty.IsListType():
		return 16 * v.LengthInt()
	}
	return 32
}
