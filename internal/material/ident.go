package material

import (
	"strconv"
	"sync/atomic"
)

// Ident distinguishes successive incarnations of definitions with the same
// name. Idents are never reused within a process.
type Ident uint64

// InvalidIdent is never returned by NextIdent.
const InvalidIdent Ident = 0

var lastIdent atomic.Uint64

// NextIdent returns a fresh Ident.
func NextIdent() Ident {
	return Ident(lastIdent.Add(1))
}

// observeIdent makes sure NextIdent never returns id or anything below it.
// Definitions restored from a snapshot carry idents issued by another
// process.
func observeIdent(id Ident) {
	for {
		cur := lastIdent.Load()
		if cur >= uint64(id) || lastIdent.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

func (i Ident) String() string {
	return "ident:" + strconv.FormatUint(uint64(i), 10)
}
