// Package expr provides the expression graph used for defaults, enable-if
// conditions, material bodies and instance arguments.
//
// Expressions are immutable once built. A definition and every instance it
// spawns may therefore hold the same expression values; an instance still
// receives its own copy of each default (see Clone) so that its argument list
// can later be edited without touching the definition.
//
// There are four kinds of expression:
//
//   - Constant: a typed literal value.
//   - Call: a direct call of another definition (a function, operator or
//     material constructor) with named arguments.
//   - Parameter: a reference to a parameter of the enclosing definition.
//   - Temporary: a reference to a named temporary of a material body.
package expr
