package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Format renders e in a compact, human-readable form. params and temps
// name parameter and temporary references by index; references outside
// them are rendered as p<i> and t<i>.
func Format(e Expression, params, temps []string) string {
	var b strings.Builder
	format(&b, e, params, temps)
	return b.String()
}

func format(b *strings.Builder, e Expression, params, temps []string) {
	switch v := e.(type) {
	case nil:
		b.WriteString("<none>")
	case *Constant:
		b.WriteString(formatValue(v.val))
	case *Parameter:
		b.WriteString(refName(params, "p", v.index))
	case *Temporary:
		b.WriteString("temporary." + refName(temps, "t", v.index))
	case *Call:
		op, isOp := strings.CutPrefix(v.definition, "operator")
		switch {
		case isOp && op == "?" && v.args.Len() == 3:
			b.WriteString("(")
			format(b, v.args.Get(0), params, temps)
			b.WriteString(" ? ")
			format(b, v.args.Get(1), params, temps)
			b.WriteString(" : ")
			format(b, v.args.Get(2), params, temps)
			b.WriteString(")")
		case isOp && v.args.Len() == 2:
			b.WriteString("(")
			format(b, v.args.Get(0), params, temps)
			b.WriteString(" " + op + " ")
			format(b, v.args.Get(1), params, temps)
			b.WriteString(")")
		case isOp && v.args.Len() == 1:
			b.WriteString(op)
			format(b, v.args.Get(0), params, temps)
		default:
			b.WriteString(v.definition)
			b.WriteString("(")
			for i := 0; i < v.args.Len(); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				if name := v.args.Name(i); name != strconv.Itoa(i) {
					b.WriteString(name + ": ")
				}
				format(b, v.args.Get(i), params, temps)
			}
			b.WriteString(")")
		}
	default:
		fmt.Fprintf(b, "<%T>", e)
	}
}

func refName(names []string, prefix string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return prefix + strconv.Itoa(i)
}

func formatValue(v cty.Value) string {
	switch {
	case !v.IsKnown():
		return "<unknown>"
	case v.IsNull():
		return "null"
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return strconv.Quote(v.AsString())
	case ty.Equals(cty.Bool):
		return strconv.FormatBool(v.True())
	case ty.Equals(cty.Number):
		return v.AsBigFloat().Text('g', -1)
	case ty.IsTupleType() || ty.IsListType():
		parts := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			parts = append(parts, formatValue(ev))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.GoString()
	}
}
