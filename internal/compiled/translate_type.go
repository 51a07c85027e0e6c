// This file contains the logic for parsing HCL type expressions (e.g., `float`,
// `list(color)`) into their corresponding mdltype.Type values.

package compiled

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
)

// typeExprToType converts an HCL type expression into its mdltype equivalent.
func typeExprToType(ctx context.Context, expr hcl.Expression) (mdltype.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return mdltype.Type{}, fmt.Errorf("missing type expression")
	}

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a type constructor.", "call", v.Name)

		if v.Name != "list" && v.Name != "array" {
			return mdltype.Type{}, fmt.Errorf("unknown type constructor function %q", v.Name)
		}
		if len(v.Args) != 1 {
			return mdltype.Type{}, fmt.Errorf("the %s() type constructor requires exactly one argument, got %d", v.Name, len(v.Args))
		}

		elementType, err := typeExprToType(ctx, v.Args[0])
		if err != nil {
			return mdltype.Type{}, err
		}
		if elementType.IsArray() {
			return mdltype.Type{}, fmt.Errorf("arrays of arrays are not supported")
		}
		if elementType.Equals(mdltype.Auto) {
			return mdltype.Type{}, fmt.Errorf("array types cannot contain type 'auto'")
		}
		logger.Debug("Parsed array element type.", "type", elementType.Name())
		return mdltype.ArrayOf(elementType), nil

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return mdltype.Type{}, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		logger.Debug("Parsing type expression as a keyword.", "keyword", rootName)
		t, ok := mdltype.Lookup(rootName)
		if !ok || t.Equals(mdltype.Auto) {
			return mdltype.Type{}, fmt.Errorf("unknown type %q", rootName)
		}
		return t, nil

	default:
		return mdltype.Type{}, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}
