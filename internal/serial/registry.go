package serial

import (
	"fmt"
	"sort"
)

// DecodeFunc reconstructs an element from its encoded form. It is the only
// way to obtain an element without going through its regular constructor.
type DecodeFunc func(r *Reader) (any, error)

// Class describes one serializable element type.
type Class struct {
	ID     ClassID
	Name   string
	Decode DecodeFunc
}

// Module is implemented by packages that contribute element classes.
type Module interface {
	Register(r *Registry)
}

// Registry maps class IDs to decoders.
type Registry struct {
	classes map[ClassID]Class
}

// NewRegistry creates a registry and registers the classes of every given
// module.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{classes: make(map[ClassID]Class)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds a class. Registering the same ID twice is a programming
// error and panics.
func (r *Registry) Register(c Class) {
	if c.Decode == nil {
		panic(fmt.Sprintf("serial: class %s (%s) has no decoder", c.ID, c.Name))
	}
	if prev, exists := r.classes[c.ID]; exists {
		panic(fmt.Sprintf("serial: class %s registered twice (%s, %s)", c.ID, prev.Name, c.Name))
	}
	r.classes[c.ID] = c
}

// Lookup returns the class registered under id.
func (r *Registry) Lookup(id ClassID) (Class, bool) {
	c, ok := r.classes[id]
	return c, ok
}

// Classes returns all registered classes ordered by ID.
func (r *Registry) Classes() []Class {
	out := make([]Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Decode decodes data as an element of class id. The whole input must be
// consumed.
func (r *Registry) Decode(id ClassID, data []byte) (any, error) {
	c, ok := r.classes[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown class %s", ErrFormat, id)
	}
	rd := NewReader(data)
	v, err := c.Decode(rd)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name, err)
	}
	if err := rd.Finish(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name, err)
	}
	return v, nil
}
