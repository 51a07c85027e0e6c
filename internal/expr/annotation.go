package expr

// Annotation is a single annotation application such as
// `::anno::display_name("Tint")`. Its arguments are constant expressions.
type Annotation struct {
	name string
	args *List
}

func NewAnnotation(name string, args *List) *Annotation {
	if args == nil {
		args = NewList()
	}
	return &Annotation{name: name, args: args}
}

// Name returns the qualified name of the annotation.
func (a *Annotation) Name() string { return a.name }

// Arguments returns the annotation arguments.
func (a *Annotation) Arguments() *List { return a.args }

// Block is an ordered set of annotations attached to one entity.
type Block []*Annotation

// Find returns the first annotation with the given name.
func (b Block) Find(name string) (*Annotation, bool) {
	for _, a := range b {
		if a.name == name {
			return a, true
		}
	}
	return nil, false
}

// Expressions returns every argument expression of every annotation in b.
func (b Block) Expressions() []Expression {
	var out []Expression
	for _, a := range b {
		for i := 0; i < a.args.Len(); i++ {
			out = append(out, a.args.Get(i))
		}
	}
	return out
}
