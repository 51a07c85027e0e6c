// Package db provides the transactional, tag-addressed scene database that
// holds modules, material definitions, material instances and resources.
//
// # Model
//
// Every element lives under a Tag and, optionally, a unique name. Elements
// are immutable once stored: changing an element means storing a new element
// under the same tag, which bumps the tag's version and appends a journal
// entry. Readers therefore never need to synchronize with writers beyond
// resolving a tag through a Transaction.
//
// # Transactions
//
// Writes are buffered in a Transaction and become visible to other
// transactions only on Commit, atomically and under the database lock. A
// transaction sees its own pending writes. Abort discards everything, which
// is how a failed multi-element operation (such as loading a module whose
// resources cannot be found) avoids publishing partial state.
//
// # Garbage collection
//
// Collect traces Element.References from a set of root tags and removes
// every committed element that is not reachable.
package db
