package db

import (
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/serial"
)

// Tag addresses an element in the database. The zero Tag is invalid.
type Tag uint32

// InvalidTag is the zero Tag, used for absent references.
const InvalidTag Tag = 0

// IsValid reports whether t can address an element.
func (t Tag) IsValid() bool { return t != InvalidTag }

func (t Tag) String() string { return fmt.Sprintf("tag:%d", uint32(t)) }

// Journal describes which kinds of change an element type can undergo.
type Journal uint32

const (
	JournalNone Journal = 0
	// JournalStructure covers creation, replacement and removal.
	JournalStructure Journal = 1 << 0
	// JournalAttributes covers edits of individual fields.
	JournalAttributes Journal = 1 << 1
	JournalAll                = JournalStructure | JournalAttributes
)

func (j Journal) String() string {
	switch j {
	case JournalNone:
		return "none"
	case JournalStructure:
		return "structure"
	case JournalAttributes:
		return "attributes"
	case JournalAll:
		return "all"
	default:
		return fmt.Sprintf("Journal(%d)", uint32(j))
	}
}

// Resolver resolves element names to tags.
type Resolver interface {
	NameToTag(name string) Tag
}

// Element is implemented by everything stored in the database.
type Element interface {
	// ClassID identifies the element type for the serial registry.
	ClassID() serial.ClassID
	// Serialize writes every field of the element.
	Serialize(w *serial.Writer)
	// Size estimates the memory held by the element in bytes.
	Size() int
	// JournalFlags reports which kinds of change the element can undergo.
	JournalFlags() Journal
	// References returns the tags of every element this element refers to.
	// Names that do not resolve are skipped.
	References(r Resolver) []Tag
}

// JournalEntry records one committed change.
type JournalEntry struct {
	Tag     Tag
	Name    string
	Version uint64
	Flags   Journal
	Removed bool
}
