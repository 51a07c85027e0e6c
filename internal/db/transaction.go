package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
)

type txnState uint8

const (
	txnOpen txnState = iota
	txnCommitted
	txnAborted
)

// Transaction buffers writes against a Database. A Transaction is not safe
// for concurrent use; independent goroutines use independent transactions.
type Transaction struct {
	db      *Database
	id      uuid.UUID
	state   txnState
	pending map[Tag]*entry
	order   []Tag
	names   map[string]Tag
}

// ID returns the unique identifier of the transaction.
func (t *Transaction) ID() uuid.UUID { return t.id }

// Database returns the database the transaction operates on.
func (t *Transaction) Database() *Database { return t.db }

// IsOpen reports whether the transaction can still be used.
func (t *Transaction) IsOpen() bool { return t.state == txnOpen }

// ReserveTag returns a fresh tag. Nothing is stored under it until Store.
func (t *Transaction) ReserveTag() Tag {
	return t.db.reserveTag()
}

// Store buffers elem under tag. A non-empty name binds the name to tag; the
// name must not already be bound to a different tag. Storing under a tag
// that already holds an element supersedes that element on commit.
func (t *Transaction) Store(tag Tag, name string, elem Element) error {
	if t.state != txnOpen {
		return ErrClosed
	}
	if !tag.IsValid() {
		return fmt.Errorf("db: store under invalid tag")
	}
	if elem == nil {
		return fmt.Errorf("db: store nil element under %s", tag)
	}
	if name != "" {
		if other := t.NameToTag(name); other.IsValid() && other != tag {
			return fmt.Errorf("%w: %q is bound to %s", ErrNameConflict, name, other)
		}
	}
	if name == "" {
		name = t.TagToName(tag)
	}
	if prev, exists := t.pending[tag]; !exists {
		t.order = append(t.order, tag)
	} else if prev.name != name {
		delete(t.names, prev.name)
	}
	t.pending[tag] = &entry{name: name, elem: elem}
	if name != "" {
		t.names[name] = tag
	}
	return nil
}

// Access returns the element stored under tag, including pending writes.
func (t *Transaction) Access(tag Tag) (Element, error) {
	if t.state != txnOpen {
		return nil, ErrClosed
	}
	if e, ok := t.pending[tag]; ok {
		return e.elem, nil
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	if e, ok := t.db.entries[tag]; ok {
		return e.elem, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, tag)
}

// NameToTag resolves name, or returns InvalidTag.
func (t *Transaction) NameToTag(name string) Tag {
	if tag, ok := t.names[name]; ok {
		return tag
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	return t.db.names[name]
}

// TagToName returns the name bound to tag, or "".
func (t *Transaction) TagToName(tag Tag) string {
	if e, ok := t.pending[tag]; ok {
		return e.name
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	if e, ok := t.db.entries[tag]; ok {
		return e.name
	}
	return ""
}

// TagVersion returns the committed version of tag.
func (t *Transaction) TagVersion(tag Tag) uint64 {
	return t.db.TagVersion(tag)
}

// Commit publishes all pending writes atomically.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.state != txnOpen {
		return ErrClosed
	}
	logger := ctxlog.FromContext(ctx).With("txn", t.id)

	d := t.db
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, tag := range t.order {
		e := t.pending[tag]
		if e.name == "" {
			continue
		}
		if other, ok := d.names[e.name]; ok && other != tag {
			return fmt.Errorf("%w: %q was bound to %s by a concurrent commit", ErrNameConflict, e.name, other)
		}
	}

	if len(t.order) > 0 {
		d.version++
	}
	for _, tag := range t.order {
		e := t.pending[tag]
		if prev, ok := d.entries[tag]; ok {
			e.version = prev.version + 1
			if prev.name != "" && prev.name != e.name {
				delete(d.names, prev.name)
			}
		} else {
			e.version = 1
		}
		d.entries[tag] = e
		if e.name != "" {
			d.names[e.name] = tag
		}
		d.journal = append(d.journal, JournalEntry{Tag: tag, Name: e.name, Version: d.version, Flags: e.elem.JournalFlags()})
	}
	t.state = txnCommitted
	logger.Debug("Transaction committed.", "elements", len(t.order), "db_version", d.version)
	return nil
}

// Abort discards all pending writes. Aborting a finished transaction is a
// no-op.
func (t *Transaction) Abort(ctx context.Context) {
	if t.state != txnOpen {
		return
	}
	t.state = txnAborted
	ctxlog.FromContext(ctx).Debug("Transaction aborted.", "txn", t.id, "discarded", len(t.order))
	t.pending = nil
	t.order = nil
	t.names = nil
}
