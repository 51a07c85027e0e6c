package expr

import (
	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

// EncodeType writes a type by its canonical name.
func EncodeType(w *serial.Writer, t mdltype.Type) {
	w.String(t.Name())
}

// DecodeType reads a type written by EncodeType.
func DecodeType(r *serial.Reader) mdltype.Type {
	name := r.String()
	if r.Err() != nil {
		return mdltype.Type{}
	}
	t, ok := mdltype.Lookup(name)
	if !ok {
		r.Fail("unknown type %q", name)
	}
	return t
}

// Encode writes e. A nil expression is allowed and written as an empty
// record.
func Encode(w *serial.Writer, e Expression) {
	switch v := e.(type) {
	case nil:
		w.Len(0)
	case *Constant:
		w.Len(3)
		w.Int(int(KindConstant))
		EncodeType(w, v.typ)
		w.Value(v.val)
	case *Call:
		w.Len(4)
		w.Int(int(KindCall))
		EncodeType(w, v.typ)
		w.String(v.definition)
		EncodeList(w, v.args)
	case *Parameter:
		w.Len(3)
		w.Int(int(KindParameter))
		EncodeType(w, v.typ)
		w.Int(v.index)
	case *Temporary:
		w.Len(3)
		w.Int(int(KindTemporary))
		EncodeType(w, v.typ)
		w.Int(v.index)
	}
}

// Decode reads an expression written by Encode.
func Decode(r *serial.Reader) Expression {
	n := r.Len()
	if n == 0 || r.Err() != nil {
		return nil
	}
	kind := Kind(r.Int())
	want := 3
	if kind == KindCall {
		want = 4
	}
	if n != want {
		r.Fail("%s expression has %d fields, want %d", kind, n, want)
		return nil
	}
	typ := DecodeType(r)
	switch kind {
	case KindConstant:
		val := r.Value()
		if r.Err() != nil {
			return nil
		}
		return &Constant{typ: typ, val: val}
	case KindCall:
		def := r.String()
		args := DecodeList(r)
		if r.Err() != nil {
			return nil
		}
		return &Call{typ: typ, definition: def, args: args}
	case KindParameter:
		return &Parameter{typ: typ, index: r.Int()}
	case KindTemporary:
		return &Temporary{typ: typ, index: r.Int()}
	default:
		r.Fail("unknown expression kind %d", int(kind))
		return nil
	}
}

// EncodeList writes a list of named expressions.
func EncodeList(w *serial.Writer, l *List) {
	w.Len(l.Len())
	for i := 0; i < l.Len(); i++ {
		w.Len(2)
		w.String(l.names[i])
		Encode(w, l.exprs[i])
	}
}

// DecodeList reads a list written by EncodeList.
func DecodeList(r *serial.Reader) *List {
	n := r.Len()
	l := NewList()
	for i := 0; i < n && r.Err() == nil; i++ {
		if r.Len() != 2 {
			r.Fail("list entry %d is not a name/expression pair", i)
			break
		}
		name := r.String()
		e := Decode(r)
		if r.Err() != nil {
			break
		}
		if err := l.Add(name, e); err != nil {
			r.Fail("list entry %d: %v", i, err)
		}
	}
	return l
}

// EncodeBlock writes an annotation block.
func EncodeBlock(w *serial.Writer, b Block) {
	w.Len(len(b))
	for _, a := range b {
		w.Len(2)
		w.String(a.name)
		EncodeList(w, a.args)
	}
}

// DecodeBlock reads an annotation block written by EncodeBlock.
func DecodeBlock(r *serial.Reader) Block {
	n := r.Len()
	var b Block
	for i := 0; i < n && r.Err() == nil; i++ {
		if r.Len() != 2 {
			r.Fail("annotation %d is not a name/arguments pair", i)
			break
		}
		name := r.String()
		args := DecodeList(r)
		b = append(b, &Annotation{name: name, args: args})
	}
	return b
}
