package serial

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"
)

// ClassID identifies the concrete type of a serialized element.
type ClassID uint32

// String renders the class ID as its four-character code, e.g. '_Mmd'.
func (id ClassID) String() string {
	b := []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	return fmt.Sprintf("'%s'", b)
}

// ErrFormat is wrapped by every decoding error caused by malformed or
// mismatched input.
var ErrFormat = errors.New("serial: malformed input")

// Writer encodes fields into an in-memory buffer.
type Writer struct {
	buf bytes.Buffer
	enc *msgpack.Encoder
	err error
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.enc = msgpack.NewEncoder(&w.buf)
	return w
}

// Err returns the first error encountered by w.
func (w *Writer) Err() error { return w.err }

// Bytes returns the encoded data, or the first error encountered.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

func (w *Writer) set(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}

// Struct starts a record of the given class holding exactly fields values.
func (w *Writer) Struct(id ClassID, fields int) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeArrayLen(fields + 1))
	w.Uint32(uint32(id))
}

// Len writes the length of a following sequence.
func (w *Writer) Len(n int) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeArrayLen(n))
}

func (w *Writer) String(s string) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeString(s))
}

func (w *Writer) Bool(b bool) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeBool(b))
}

func (w *Writer) Int(i int) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeInt(int64(i)))
}

func (w *Writer) Uint32(u uint32) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeUint32(u))
}

func (w *Writer) Uint64(u uint64) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeUint64(u))
}

func (w *Writer) Strings(ss []string) {
	w.Len(len(ss))
	for _, s := range ss {
		w.String(s)
	}
}

func (w *Writer) Ints(is []int) {
	w.Len(len(is))
	for _, i := range is {
		w.Int(i)
	}
}

// Raw writes an opaque byte string.
func (w *Writer) Raw(b []byte) {
	if w.err != nil {
		return
	}
	w.set(w.enc.EncodeBytes(b))
}

// Value writes a cty value together with its type.
func (w *Writer) Value(v cty.Value) {
	if w.err != nil {
		return
	}
	b, err := ctymsgpack.Marshal(v, cty.DynamicPseudoType)
	if err != nil {
		w.set(fmt.Errorf("serial: encode value: %w", err))
		return
	}
	w.set(w.enc.EncodeBytes(b))
}

// Reader decodes fields written by a Writer.
type Reader struct {
	src *bytes.Reader
	dec *msgpack.Decoder
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	r := &Reader{src: bytes.NewReader(b)}
	r.dec = msgpack.NewDecoder(r.src)
	return r
}

// Err returns the first error encountered by r.
func (r *Reader) Err() error { return r.err }

// Fail records a format error unless one is already recorded.
func (r *Reader) Fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
	}
}

// Finish reports the first decoding error, or an error if unread data is
// left after the last field.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.src.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrFormat, r.src.Len())
	}
	return nil
}

func (r *Reader) set(err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%w: %v", ErrFormat, err)
	}
}

// Struct reads a record header and checks its class and field count.
func (r *Reader) Struct(id ClassID, fields int) {
	if r.err != nil {
		return
	}
	n, err := r.dec.DecodeArrayLen()
	if err != nil {
		r.set(err)
		return
	}
	got := ClassID(r.Uint32())
	if r.err != nil {
		return
	}
	if got != id {
		r.Fail("class %s, want %s", got, id)
		return
	}
	if n != fields+1 {
		r.Fail("class %s has %d fields, want %d", id, n-1, fields)
	}
}

// Len reads the length of a following sequence.
func (r *Reader) Len() int {
	if r.err != nil {
		return 0
	}
	n, err := r.dec.DecodeArrayLen()
	if err != nil {
		r.set(err)
		return 0
	}
	if n < 0 {
		r.Fail("unexpected nil sequence")
		return 0
	}
	return n
}

func (r *Reader) String() string {
	if r.err != nil {
		return ""
	}
	s, err := r.dec.DecodeString()
	r.set(err)
	return s
}

func (r *Reader) Bool() bool {
	if r.err != nil {
		return false
	}
	b, err := r.dec.DecodeBool()
	r.set(err)
	return b
}

func (r *Reader) Int() int {
	if r.err != nil {
		return 0
	}
	i, err := r.dec.DecodeInt64()
	r.set(err)
	return int(i)
}

func (r *Reader) Uint32() uint32 {
	if r.err != nil {
		return 0
	}
	u, err := r.dec.DecodeUint32()
	r.set(err)
	return u
}

func (r *Reader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	u, err := r.dec.DecodeUint64()
	r.set(err)
	return u
}

func (r *Reader) Strings() []string {
	n := r.Len()
	out := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.String())
	}
	return out
}

func (r *Reader) Ints() []int {
	n := r.Len()
	out := make([]int, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.Int())
	}
	return out
}

// Raw reads a byte string written by Writer.Raw.
func (r *Reader) Raw() []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.dec.DecodeBytes()
	r.set(err)
	return b
}

// Value reads a cty value written by Writer.Value.
func (r *Reader) Value() cty.Value {
	if r.err != nil {
		return cty.NilVal
	}
	b, err := r.dec.DecodeBytes()
	if err != nil {
		r.set(err)
		return cty.NilVal
	}
	v, err := ctymsgpack.Unmarshal(b, cty.DynamicPseudoType)
	if err != nil {
		r.set(err)
		return cty.NilVal
	}
	return v
}
