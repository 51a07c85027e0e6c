// Package compiled provides the compiled module representation that
// material definitions are constructed from.
//
// The DAG interface is the contract between the compiler and the scene
// database: an indexed table of material entries, each with its parameters,
// defaults, enable-if conditions, annotations and body, already translated
// into the expression graph of package expr.
//
// Module is the implementation used by this repository. It is produced by
// Load and Parse from an HCL encoding of the compiler output (`*.mdlc.hcl`):
//
//	module_name = "::example"
//
//	material "M" {
//	  exported = true
//	  parameter "c" {
//	    type    = color
//	    default = [1, 1, 1]
//	  }
//	  parameter "f" {
//	    type      = float
//	    enable_if = c != [0, 0, 0]
//	  }
//	  temporary "t0" { value = df::diffuse_reflection_bsdf(c, f) }
//	  body = material(temporary.t0)
//	}
//
// Inside expressions, a bare parameter name is a parameter reference,
// `temporary.<name>` references an earlier temporary, function calls
// (namespaced names allowed) become direct calls of `mdl::<name>`, operators
// become calls of `operator<symbol>`, and sub-expressions without any
// references evaluate to typed constants.
package compiled
