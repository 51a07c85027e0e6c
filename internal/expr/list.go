package expr

import "fmt"

// List is an ordered list of named expressions. Names are unique within a
// list; the position of an entry is its index.
type List struct {
	names []string
	exprs []Expression
	index map[string]int
}

// NewList returns an empty list.
func NewList() *List {
	return &List{index: make(map[string]int)}
}

// Add appends a named expression. It fails if the name is already present
// or the expression is nil.
func (l *List) Add(name string, e Expression) error {
	if e == nil {
		return fmt.Errorf("expression for %q is nil", name)
	}
	if _, exists := l.index[name]; exists {
		return fmt.Errorf("duplicate entry %q", name)
	}
	l.index[name] = len(l.names)
	l.names = append(l.names, name)
	l.exprs = append(l.exprs, e)
	return nil
}

// MustAdd is like Add but panics on error.
func (l *List) MustAdd(name string, e Expression) *List {
	if err := l.Add(name, e); err != nil {
		panic(err)
	}
	return l
}

// Len returns the number of entries. A nil list is empty.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Name returns the name at index i, or "" if i is out of range.
func (l *List) Name(i int) string {
	if i < 0 || i >= l.Len() {
		return ""
	}
	return l.names[i]
}

// Index returns the index of name, or -1 if it is not present.
func (l *List) Index(name string) int {
	if l == nil {
		return -1
	}
	if i, ok := l.index[name]; ok {
		return i
	}
	return -1
}

// Get returns the expression at index i, or nil if i is out of range.
func (l *List) Get(i int) Expression {
	if i < 0 || i >= l.Len() {
		return nil
	}
	return l.exprs[i]
}

// Lookup returns the expression registered under name.
func (l *List) Lookup(name string) (Expression, bool) {
	i := l.Index(name)
	if i < 0 {
		return nil, false
	}
	return l.exprs[i], true
}

// Names returns a copy of the entry names in order.
func (l *List) Names() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.names...)
}

// Clone returns a deep copy of the list.
func (l *List) Clone() *List {
	out := NewList()
	for i := 0; i < l.Len(); i++ {
		out.names = append(out.names, l.names[i])
		out.exprs = append(out.exprs, Clone(l.exprs[i]))
		out.index[l.names[i]] = i
	}
	return out
}
