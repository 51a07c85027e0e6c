package compiled

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
)

// ParseConstant parses src as a reference-free expression, such as an
// argument given on the command line, and types it as want. want may be
// the zero Type to infer the type from the value.
func ParseConstant(src string, want mdltype.Type) (expr.Expression, error) {
	e, diags := hclsyntax.ParseExpression([]byte(src), "<argument>", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %q: %w", src, diags)
	}
	sc := &scope{constOnly: true}
	out, diags := sc.translate(e, want)
	if diags.HasErrors() {
		return nil, fmt.Errorf("translate %q: %w", src, diags)
	}
	return out, nil
}
