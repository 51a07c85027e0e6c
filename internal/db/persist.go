package db

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

// snapshotClass identifies a whole-database snapshot.
const snapshotClass serial.ClassID = 0x5f446273 // '_Dbs'

// Save writes every committed element to w. Elements are encoded through
// their own Serialize method and framed with their class ID.
func (d *Database) Save(ctx context.Context, w io.Writer) error {
	d.mu.RLock()
	tags := make([]Tag, 0, len(d.entries))
	for t := range d.entries {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	sw := serial.NewWriter()
	sw.Struct(snapshotClass, 4)
	sw.String(d.id.String())
	sw.Uint64(d.version)
	sw.Uint32(d.lastTag.Load())
	sw.Len(len(tags))
	for _, t := range tags {
		e := d.entries[t]
		ew := serial.NewWriter()
		e.elem.Serialize(ew)
		payload, err := ew.Bytes()
		if err != nil {
			d.mu.RUnlock()
			return fmt.Errorf("serialize %s (%s): %w", t, e.name, err)
		}
		sw.Len(5)
		sw.Uint32(uint32(t))
		sw.String(e.name)
		sw.Uint64(e.version)
		sw.Uint32(uint32(e.elem.ClassID()))
		sw.Raw(payload)
	}
	d.mu.RUnlock()

	b, err := sw.Bytes()
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Database saved.", "db", d.id, "elements", len(tags), "bytes", len(b))
	return nil
}

// Restore reads a snapshot written by Save. Every element class must be
// known to reg.
func Restore(ctx context.Context, r io.Reader, reg *serial.Registry) (*Database, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sr := serial.NewReader(b)
	sr.Struct(snapshotClass, 4)
	idStr := sr.String()
	version := sr.Uint64()
	lastTag := sr.Uint32()
	n := sr.Len()
	if err := sr.Err(); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: database id: %v", serial.ErrFormat, err)
	}

	d := &Database{
		id:      id,
		version: version,
		entries: make(map[Tag]*entry, n),
		names:   make(map[string]Tag, n),
	}
	d.lastTag.Store(lastTag)

	for i := 0; i < n; i++ {
		if sr.Len() != 5 {
			sr.Fail("snapshot entry %d is malformed", i)
		}
		tag := Tag(sr.Uint32())
		name := sr.String()
		tagVersion := sr.Uint64()
		class := serial.ClassID(sr.Uint32())
		payload := sr.Raw()
		if err := sr.Err(); err != nil {
			return nil, err
		}
		switch {
		case !tag.IsValid() || uint32(tag) > lastTag:
			return nil, fmt.Errorf("%w: %s outside the reserved range (last %d)", serial.ErrFormat, tag, lastTag)
		case d.entries[tag] != nil:
			return nil, fmt.Errorf("%w: %s stored twice", serial.ErrFormat, tag)
		case name != "" && d.names[name].IsValid():
			return nil, fmt.Errorf("%w: name %q stored under %s and %s", serial.ErrFormat, name, d.names[name], tag)
		}
		v, err := reg.Decode(class, payload)
		if err != nil {
			return nil, fmt.Errorf("restore %s (%s): %w", tag, name, err)
		}
		elem, ok := v.(Element)
		if !ok {
			return nil, fmt.Errorf("restore %s (%s): class %s is not a database element", tag, name, class)
		}
		d.entries[tag] = &entry{name: name, elem: elem, version: tagVersion}
		if name != "" {
			d.names[name] = tag
		}
	}
	if err := sr.Finish(); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Database restored.", "db", d.id, "elements", n)
	return d, nil
}
