// Package material models material definitions stored in the scene
// database and the instances created from them.
//
// A Definition is built once from one entry of a compiled module and is
// immutable afterwards, with the single exception of AdoptIdent, which the
// module loader uses while reconciling a reload before the definition is
// stored. Every Definition carries an Ident. The owning module element
// records the Ident of each definition it currently publishes, so a
// definition (and every instance made from it) can detect that it was
// superseded by comparing its own Ident with the module's.
//
// Instantiation binds caller arguments to parameter slots, fills the rest
// from defaults and produces an Instance element. Failures are reported as
// *InstantiationError values that match the package sentinels with
// errors.Is.
package material
