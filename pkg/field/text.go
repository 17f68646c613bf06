package field

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/twinfer/bitwire/pkg/bits"
)

// sized is the byte-run storage shared by String and Bytes. A constant count
// gives a fixed width; any other count source is resolved at parse time.
type sized struct {
	leaf
	count  Count
	pad    byte
	single bool
}

func newSized(name string, count Count, single bool, format string, o options) sized {
	width := -1
	if c, ok := count.Fixed(); ok {
		width = c * 8
	}
	s := sized{leaf: newLeaf(name, width, format), count: count, pad: o.pad, single: single}
	s.apply(o)
	return s
}

// Count returns the count source.
func (s *sized) Count() Count { return s.count }

// Len returns the number of stored bytes.
func (s *sized) Len() int { return len(s.bits) / 8 }

func (s *sized) parse(self Field, in bits.Buffer) (bits.Buffer, error) {
	if s.width >= 0 {
		return s.take(self, in)
	}
	n, err := s.count.Resolve(self)
	if err != nil {
		return in, err
	}
	head, rest, err := in.Slice(n * 8)
	if err != nil {
		return in, newError(self, "parse", ErrInsufficientData, "need %d bytes, have %d bits", n, len(in))
	}
	s.bits = head
	return rest, nil
}

func (s *sized) setBits(b bits.Buffer) {
	if s.width < 0 {
		// variable runs keep whole bytes
		s.bits = b.Resize((len(b) + 7) / 8 * 8)
		return
	}
	s.leaf.setBits(b)
}

// store installs data, padding or truncating fixed runs. Variable runs take
// the data as is and update a referenced count sibling.
func (s *sized) store(self Field, data []byte) error {
	if s.width >= 0 {
		n := s.width / 8
		out := make([]byte, n)
		for i := range out {
			out[i] = s.pad
		}
		copy(out, data)
		s.bits = bits.FromBytes(out, s.width)
		return nil
	}
	if r, ok := s.count.(refCount); ok {
		if err := r.follow(self, len(data)); err != nil {
			return err
		}
	}
	s.bits = bits.FromBytes(data, -1)
	return nil
}

var latin1 = charmap.ISO8859_1

// String is Latin-1 text stored one byte per character. A Char is a String of
// exactly one byte whose value is a rune.
type String struct {
	sized
}

// NewString creates a Latin-1 string of count bytes. Fixed strings pad with
// WithPad (default NUL) on assignment and truncate long values.
func NewString(name string, count Count, opts ...Option) *String {
	o := collect(opts)
	s := &String{sized: newSized(name, count, false, "%s", o)}
	seed(s, o)
	return s
}

// NewChar creates a single Latin-1 character.
func NewChar(name string, opts ...Option) *String {
	o := collect(opts)
	s := &String{sized: newSized(name, Const(1), true, "%c", o)}
	seed(s, o)
	return s
}

func (s *String) TypeName() string {
	if s.single {
		return "Char"
	}
	return "String"
}

func (s *String) Parse(in bits.Buffer) (bits.Buffer, error) {
	return s.parse(s, in)
}

func (s *String) SetBits(b bits.Buffer) error {
	s.setBits(b)
	return nil
}

// Text decodes the stored bytes as Latin-1.
func (s *String) Text() string {
	out, err := latin1.NewDecoder().Bytes(s.bits.Bytes())
	if err != nil {
		// every byte is a valid Latin-1 code point
		panic(fmt.Sprintf("field %q: decoding latin-1: %v", s.name, err))
	}
	return string(out)
}

// Trimmed returns Text without trailing pad bytes.
func (s *String) Trimmed() string {
	return strings.TrimRight(s.Text(), string(rune(s.pad)))
}

// Value returns a rune for Char and a string otherwise.
func (s *String) Value() any {
	if s.single {
		return []rune(s.Text())[0]
	}
	return s.Text()
}

// SetValue accepts a string, []byte, rune or byte. Characters outside
// Latin-1 are a type error.
func (s *String) SetValue(v any) error {
	var text string
	switch x := v.(type) {
	case string:
		text = x
	case []byte:
		return s.store(s, x)
	case rune:
		text = string(x)
	case byte:
		return s.store(s, []byte{x})
	default:
		return newError(s, "set", ErrType, "%T is not text", v)
	}
	if s.single && len([]rune(text)) != 1 {
		return newError(s, "set", ErrOverflow, "char needs exactly one character, got %q", text)
	}
	enc, err := latin1.NewEncoder().String(text)
	if err != nil {
		return newError(s, "set", ErrType, "%q is not representable in Latin-1", text)
	}
	return s.store(s, []byte(enc))
}

func (s *String) StringValue() string { return fmt.Sprintf(s.format, s.Value()) }
func (s *String) String() string      { return describe(s) }

// Bytes is a raw byte run. A Byte is a Bytes of exactly one byte whose value
// is a byte.
type Bytes struct {
	sized
}

// NewBytes creates a raw byte run of count bytes.
func NewBytes(name string, count Count, opts ...Option) *Bytes {
	o := collect(opts)
	b := &Bytes{sized: newSized(name, count, false, "%X", o)}
	seed(b, o)
	return b
}

// NewByte creates a single raw byte.
func NewByte(name string, opts ...Option) *Bytes {
	o := collect(opts)
	b := &Bytes{sized: newSized(name, Const(1), true, "0x%02X", o)}
	seed(b, o)
	return b
}

func (b *Bytes) TypeName() string {
	if b.single {
		return "Byte"
	}
	return "Bytes"
}

func (b *Bytes) Parse(in bits.Buffer) (bits.Buffer, error) {
	return b.parse(b, in)
}

func (b *Bytes) SetBits(buf bits.Buffer) error {
	b.setBits(buf)
	return nil
}

// Data returns a copy of the stored bytes.
func (b *Bytes) Data() []byte { return b.bits.Bytes() }

// Value returns a byte for Byte and []byte otherwise.
func (b *Bytes) Value() any {
	if b.single {
		return b.Data()[0]
	}
	return b.Data()
}

// SetValue accepts []byte, a hex string, or for Byte an integer in 0..255.
func (b *Bytes) SetValue(v any) error {
	switch x := v.(type) {
	case []byte:
		if b.single && len(x) != 1 {
			return newError(b, "set", ErrOverflow, "byte needs exactly one byte, got %d", len(x))
		}
		return b.store(b, x)
	case string:
		data, err := hex.DecodeString(strings.ReplaceAll(x, " ", ""))
		if err != nil {
			return newError(b, "set", ErrType, "%q is not hex", x)
		}
		return b.SetValue(data)
	}
	if !b.single {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
			return b.setSlice(rv)
		}
		return newError(b, "set", ErrType, "%T is not a byte sequence", v)
	}
	n, err := toBigInt(v)
	if err != nil {
		return newError(b, "set", ErrType, "%v", err)
	}
	if err := checkRange(n, 8, false); err != nil {
		return newError(b, "set", ErrOverflow, "%v", err)
	}
	return b.store(b, []byte{byte(n.Uint64())})
}

// setSlice accepts sequences of small integers, as decoded from JSON arrays.
func (b *Bytes) setSlice(rv reflect.Value) error {
	data := make([]byte, rv.Len())
	for i := range data {
		n, err := toBigInt(rv.Index(i).Interface())
		if err != nil {
			return newError(b, "set", ErrType, "element %d: %v", i, err)
		}
		if err := checkRange(n, 8, false); err != nil {
			return newError(b, "set", ErrOverflow, "element %d: %v", i, err)
		}
		data[i] = byte(n.Uint64())
	}
	return b.store(b, data)
}

func (b *Bytes) StringValue() string { return fmt.Sprintf(b.format, b.Value()) }
func (b *Bytes) String() string      { return describe(b) }
