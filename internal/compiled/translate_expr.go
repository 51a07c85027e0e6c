// This file translates HCL syntax trees into the expression graph of
// package expr.

package compiled

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
)

// CallPrefix is prepended to called function names to form the database
// name of the called definition.
const CallPrefix = "mdl::"

// temporaryRoot is the traversal root used to reference temporaries.
const temporaryRoot = "temporary"

var operatorNames = map[*hclsyntax.Operation]string{
	hclsyntax.OpLogicalOr:          "||",
	hclsyntax.OpLogicalAnd:         "&&",
	hclsyntax.OpLogicalNot:         "!",
	hclsyntax.OpEqual:              "==",
	hclsyntax.OpNotEqual:           "!=",
	hclsyntax.OpGreaterThan:        ">",
	hclsyntax.OpGreaterThanOrEqual: ">=",
	hclsyntax.OpLessThan:           "<",
	hclsyntax.OpLessThanOrEqual:    "<=",
	hclsyntax.OpAdd:                "+",
	hclsyntax.OpSubtract:           "-",
	hclsyntax.OpMultiply:           "*",
	hclsyntax.OpDivide:             "/",
	hclsyntax.OpModulo:             "%",
	hclsyntax.OpNegate:             "-",
}

// scope holds the names visible to expressions of one material.
type scope struct {
	params     map[string]int
	paramTypes []mdltype.Type
	temps      map[string]int
	tempTypes  []mdltype.Type
	// constOnly forbids any reference, as required for annotation arguments.
	constOnly bool
}

func newScope() *scope {
	return &scope{params: make(map[string]int), temps: make(map[string]int)}
}

func (s *scope) addParam(name string, t mdltype.Type) {
	s.params[name] = len(s.paramTypes)
	s.paramTypes = append(s.paramTypes, t)
}

func (s *scope) addTemp(name string, t mdltype.Type) {
	s.temps[name] = len(s.tempTypes)
	s.tempTypes = append(s.tempTypes, t)
}

func diag(rng hcl.Range, summary, detail string) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  rng.Ptr(),
	}}
}

// checkReferences reports every traversal in e that does not name a
// parameter or temporary visible in s.
func (s *scope) checkReferences(e hcl.Expression) hcl.Diagnostics {
	var diags hcl.Diagnostics
	refs, _ := extractReferencesAndFunctions(e)
	for _, t := range refs {
		root := t.RootName()
		switch {
		case s.constOnly:
			diags = append(diags, diag(t.SourceRange(), "Reference not allowed",
				fmt.Sprintf("Annotation arguments must be constant, found reference %q.", traversalKey(t)))...)
		case root == temporaryRoot:
			if len(t) != 2 {
				diags = append(diags, diag(t.SourceRange(), "Invalid temporary reference",
					"Temporaries are referenced as temporary.<name>.")...)
				continue
			}
			attr, ok := t[1].(hcl.TraverseAttr)
			if !ok {
				diags = append(diags, diag(t.SourceRange(), "Invalid temporary reference",
					"Temporaries are referenced as temporary.<name>.")...)
				continue
			}
			if _, ok := s.temps[attr.Name]; !ok {
				diags = append(diags, diag(t.SourceRange(), "Unknown temporary",
					fmt.Sprintf("No temporary named %q is declared before this point.", attr.Name))...)
			}
		default:
			if _, ok := s.params[root]; !ok {
				diags = append(diags, diag(t.SourceRange(), "Unknown parameter",
					fmt.Sprintf("No parameter named %q is declared.", root))...)
			} else if len(t) != 1 {
				diags = append(diags, diag(t.SourceRange(), "Invalid parameter reference",
					fmt.Sprintf("Parameter %q must be referenced by name only.", root))...)
			}
		}
	}
	return diags
}

// translate converts e into an expression. want is the expected type, used
// to type literal constants; it may be the zero Type when unknown.
func (s *scope) translate(e hcl.Expression, want mdltype.Type) (expr.Expression, hcl.Diagnostics) {
	if diags := s.checkReferences(e); diags.HasErrors() {
		return nil, diags
	}
	syn, ok := e.(hclsyntax.Expression)
	if !ok {
		return nil, diag(e.Range(), "Unsupported expression", fmt.Sprintf("Expression of type %T cannot be translated.", e))
	}
	return s.translateSyntax(syn, want)
}

func (s *scope) translateSyntax(e hclsyntax.Expression, want mdltype.Type) (expr.Expression, hcl.Diagnostics) {
	if len(e.Variables()) == 0 && !hasFunctionCalls(e) {
		return s.constant(e, want)
	}

	switch v := e.(type) {
	case *hclsyntax.ParenthesesExpr:
		return s.translateSyntax(v.Expression, want)

	case *hclsyntax.ScopeTraversalExpr:
		root := v.Traversal.RootName()
		if root == temporaryRoot {
			name := v.Traversal[1].(hcl.TraverseAttr).Name
			idx := s.temps[name]
			return expr.NewTemporary(s.tempTypes[idx], idx), nil
		}
		idx := s.params[root]
		return expr.NewParameter(s.paramTypes[idx], idx), nil

	case *hclsyntax.FunctionCallExpr:
		args := make([]hclsyntax.Expression, len(v.Args))
		copy(args, v.Args)
		resultType := mdltype.Auto
		if t, ok := mdltype.Lookup(v.Name); ok {
			resultType = t
		}
		return s.call(v.Range(), resultType, CallPrefix+v.Name, args, nil)

	case *hclsyntax.BinaryOpExpr:
		op := operatorNames[v.Op]
		lhs, diags := s.translateSyntax(v.LHS, mdltype.Type{})
		if diags.HasErrors() {
			return nil, diags
		}
		rhs, rdiags := s.translateSyntax(v.RHS, lhs.Type())
		diags = append(diags, rdiags...)
		if diags.HasErrors() {
			return nil, diags
		}
		resultType := lhs.Type()
		if v.Op.Type.Equals(mdltype.Bool.Cty()) {
			resultType = mdltype.Bool
		}
		return expr.NewCall(resultType, "operator"+op, expr.NewList().MustAdd("0", lhs).MustAdd("1", rhs)), diags

	case *hclsyntax.UnaryOpExpr:
		val, diags := s.translateSyntax(v.Val, want)
		if diags.HasErrors() {
			return nil, diags
		}
		return expr.NewCall(val.Type(), "operator"+operatorNames[v.Op], expr.NewList().MustAdd("0", val)), diags

	case *hclsyntax.ConditionalExpr:
		cond, diags := s.translateSyntax(v.Condition, mdltype.Bool)
		if diags.HasErrors() {
			return nil, diags
		}
		t, tdiags := s.translateSyntax(v.TrueResult, want)
		diags = append(diags, tdiags...)
		if diags.HasErrors() {
			return nil, diags
		}
		f, fdiags := s.translateSyntax(v.FalseResult, t.Type())
		diags = append(diags, fdiags...)
		if diags.HasErrors() {
			return nil, diags
		}
		args := expr.NewList().MustAdd("0", cond).MustAdd("1", t).MustAdd("2", f)
		return expr.NewCall(t.Type(), "operator?", args), diags

	case *hclsyntax.TupleConsExpr:
		resultType := want
		if !resultType.IsValid() || resultType.Equals(mdltype.Auto) {
			resultType = vectorType(len(v.Exprs))
		}
		if resultType.Equals(mdltype.Auto) {
			return nil, diag(v.SrcRange, "Cannot infer vector type",
				fmt.Sprintf("A vector of %d elements has no matching type.", len(v.Exprs)))
		}
		elemType := mdltype.Float
		if et, ok := resultType.Elem(); ok {
			elemType = et
		}
		return s.call(v.SrcRange, resultType, CallPrefix+resultType.Name(), v.Exprs, &elemType)

	default:
		return nil, diag(e.Range(), "Unsupported expression",
			fmt.Sprintf("Expressions of type %T are not part of the compiled module format.", e))
	}
}

// call translates a call with positional arguments named "0", "1", ...
// When argType is set every argument is typed with it.
func (s *scope) call(rng hcl.Range, t mdltype.Type, definition string, argExprs []hclsyntax.Expression, argType *mdltype.Type) (expr.Expression, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	args := expr.NewList()
	for i, a := range argExprs {
		want := mdltype.Type{}
		if argType != nil {
			want = *argType
		}
		arg, adiags := s.translateSyntax(a, want)
		diags = append(diags, adiags...)
		if adiags.HasErrors() {
			continue
		}
		args.MustAdd(fmt.Sprint(i), arg)
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return expr.NewCall(t, definition, args), diags
}

// constant evaluates a reference-free expression.
func (s *scope) constant(e hclsyntax.Expression, want mdltype.Type) (expr.Expression, hcl.Diagnostics) {
	val, diags := e.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.IsWhollyKnown() || val.IsNull() {
		return nil, diag(e.Range(), "Invalid constant", "Constants must be known and not null.")
	}
	t := want
	if !t.IsValid() || t.Equals(mdltype.Auto) {
		t = mdltype.FromValue(val)
	}
	c, err := expr.NewConstant(t, val)
	if err != nil {
		return nil, diag(e.Range(), "Invalid constant", err.Error())
	}
	return c, diags
}

func vectorType(n int) mdltype.Type {
	switch n {
	case 2:
		return mdltype.Float2
	case 3:
		return mdltype.Float3
	case 4:
		return mdltype.Float4
	}
	return mdltype.Auto
}
