package db

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
)

var (
	// ErrNotFound is returned when a tag or name does not resolve.
	ErrNotFound = errors.New("db: element not found")
	// ErrNameConflict is returned when a name is already bound to another tag.
	ErrNameConflict = errors.New("db: name already in use")
	// ErrClosed is returned when a finished transaction is used.
	ErrClosed = errors.New("db: transaction is closed")
)

type entry struct {
	name    string
	elem    Element
	version uint64
}

// Database is an in-memory scene database.
type Database struct {
	id      uuid.UUID
	lastTag atomic.Uint32

	mu      sync.RWMutex
	entries map[Tag]*entry
	names   map[string]Tag
	version uint64
	journal []JournalEntry
}

// New creates an empty database.
func New() *Database {
	return &Database{
		id:      uuid.New(),
		entries: make(map[Tag]*entry),
		names:   make(map[string]Tag),
	}
}

// ID returns the unique identifier of this database.
func (d *Database) ID() uuid.UUID { return d.id }

// Version returns the number of commits applied so far.
func (d *Database) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Len returns the number of committed elements.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Journal returns every journal entry recorded after the given version.
func (d *Database) Journal(since uint64) []JournalEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []JournalEntry
	for _, je := range d.journal {
		if je.Version > since {
			out = append(out, je)
		}
	}
	return out
}

// TagVersion returns the number of times the element under t has been
// stored, or 0 if t is not committed.
func (d *Database) TagVersion(t Tag) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.entries[t]; ok {
		return e.version
	}
	return 0
}

// Begin starts a new transaction.
func (d *Database) Begin(ctx context.Context) *Transaction {
	txn := &Transaction{
		db:      d,
		id:      uuid.New(),
		pending: make(map[Tag]*entry),
		names:   make(map[string]Tag),
	}
	ctxlog.FromContext(ctx).Debug("Transaction started.", "txn", txn.id)
	return txn
}

// Range calls fn for every committed element in ascending tag order until
// fn returns false. fn must not use the database.
func (d *Database) Range(fn func(tag Tag, name string, elem Element) bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make([]Tag, 0, len(d.entries))
	for t := range d.entries {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, t := range tags {
		e := d.entries[t]
		if !fn(t, e.name, e.elem) {
			return
		}
	}
}

func (d *Database) reserveTag() Tag {
	return Tag(d.lastTag.Add(1))
}

// committedResolver resolves names against committed state. The caller
// must hold d.mu.
type committedResolver struct{ d *Database }

func (r committedResolver) NameToTag(name string) Tag {
	return r.d.names[name]
}

// Collect removes every committed element not reachable from roots and
// returns the removed tags in ascending order.
func (d *Database) Collect(ctx context.Context, roots ...Tag) []Tag {
	logger := ctxlog.FromContext(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	reachable := make(map[Tag]struct{}, len(d.entries))
	queue := append([]Tag(nil), roots...)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if _, seen := reachable[t]; seen {
			continue
		}
		e, ok := d.entries[t]
		if !ok {
			continue
		}
		reachable[t] = struct{}{}
		queue = append(queue, e.elem.References(committedResolver{d})...)
	}

	var removed []Tag
	for t := range d.entries {
		if _, ok := reachable[t]; !ok {
			removed = append(removed, t)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	if len(removed) == 0 {
		return nil
	}

	d.version++
	for _, t := range removed {
		e := d.entries[t]
		if e.name != "" {
			delete(d.names, e.name)
		}
		delete(d.entries, t)
		d.journal = append(d.journal, JournalEntry{Tag: t, Name: e.name, Version: d.version, Flags: JournalStructure, Removed: true})
	}
	logger.Debug("Garbage collection finished.", "roots", len(roots), "removed", len(removed), "remaining", len(d.entries))
	return removed
}
