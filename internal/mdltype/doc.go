// Package mdltype is the type factory shared by definitions, instances and
// the compiled module loader.
//
// A Type pairs a canonical shading-language type name (for example `float`,
// `color` or `float3[]`) with the cty.Type used to hold values of that type.
// Two types are the same type exactly when their names match; the cty.Type
// is only the storage representation, so `color` and `float3` stay distinct
// even though both are stored as a tuple of three numbers.
//
// Types are small values and are freely copied. The package-level variables
// are never mutated, so they may be shared by every definition and instance
// without any ownership bookkeeping.
package mdltype
