package field

import (
	"reflect"
	"strings"

	"github.com/twinfer/bitwire/pkg/bits"
)

// List is an ordered, possibly heterogeneous sequence addressed by index.
type List struct {
	node
	items []Field
}

// NewList creates a list holding items in order.
func NewList(name string, items ...Field) *List {
	l := &List{node: node{name: name}}
	l.Append(items...)
	return l
}

func (l *List) TypeName() string { return "List" }

func (l *List) BitCount() int     { return sumWidths(l.items) }
func (l *List) Children() []Field { return append([]Field(nil), l.items...) }

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// At returns item i, or nil when i is out of range.
func (l *List) At(i int) Field {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Append adds items at the end.
func (l *List) Append(items ...Field) {
	for _, f := range items {
		if f == nil {
			continue
		}
		adopt(l, f)
		l.items = append(l.items, f)
	}
}

// Insert adds f before position i.
func (l *List) Insert(i int, f Field) error {
	return l.Splice(i, i, f)
}

// Set replaces item i with f.
func (l *List) Set(i int, f Field) error {
	return l.Splice(i, i+1, f)
}

// Remove detaches and returns item i.
func (l *List) Remove(i int) (Field, error) {
	if i < 0 || i >= len(l.items) {
		return nil, newError(l, "remove", ErrStructural, "index %d out of range [0, %d)", i, len(l.items))
	}
	f := l.items[i]
	if err := l.Splice(i, i+1); err != nil {
		return nil, err
	}
	return f, nil
}

// Splice replaces items[i:j] with fields, like slice assignment. Removed
// items are detached and the new ones adopted.
func (l *List) Splice(i, j int, fields ...Field) error {
	if i < 0 || j < i || j > len(l.items) {
		return newError(l, "splice", ErrStructural, "range [%d:%d] out of bounds for %d items", i, j, len(l.items))
	}
	for _, f := range fields {
		if f == nil {
			return newError(l, "splice", ErrType, "nil item")
		}
	}

	removed := append([]Field(nil), l.items[i:j]...)
	tail := append([]Field(nil), l.items[j:]...)
	l.items = append(l.items[:i], fields...)
	l.items = append(l.items, tail...)

	for _, f := range removed {
		if !l.contains(f) {
			release(l, f)
		}
	}
	for _, f := range fields {
		if old := f.Parent(); old != nil && old != Field(l) {
			if c, ok := old.(Container); ok {
				c.RemoveChild(f)
			}
		}
		f.SetParent(l)
	}
	return nil
}

func (l *List) contains(f Field) bool {
	for _, x := range l.items {
		if x == f {
			return true
		}
	}
	return false
}

func (l *List) RemoveChild(c Field) bool {
	for i, x := range l.items {
		if x == c {
			l.items = append(l.items[:i], l.items[i+1:]...)
			release(l, c)
			return true
		}
	}
	return false
}

func (l *List) Parse(in bits.Buffer) (bits.Buffer, error) {
	return parseSequence(l.items, in)
}

func (l *List) Bits() bits.Buffer { return concatBits(l.items) }

func (l *List) SetBits(b bits.Buffer) error {
	if n := l.BitCount(); n >= 0 {
		b = b.Resize(n)
	}
	_, err := l.Parse(b)
	return err
}

func (l *List) snapshot() func() {
	items := append([]Field(nil), l.items...)
	restore := snapshotAll(items)
	return func() {
		l.items = items
		restore()
	}
}

// Value returns the item values in order.
func (l *List) Value() any {
	out := make([]any, len(l.items))
	for i, f := range l.items {
		out[i] = f.Value()
	}
	return out
}

// SetValue assigns a sequence position by position. Field elements replace
// the item; other values are assigned to the item's value.
func (l *List) SetValue(v any) error {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return newError(l, "set", ErrType, "%T is not a sequence", v)
	}
	if rv.Len() > len(l.items) {
		return newError(l, "set", ErrStructural, "%d values for %d items", rv.Len(), len(l.items))
	}
	for i := 0; i < rv.Len(); i++ {
		x := rv.Index(i).Interface()
		if f, ok := x.(Field); ok {
			if err := l.Set(i, f); err != nil {
				return err
			}
			continue
		}
		if err := l.items[i].SetValue(x); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) StringValue() string {
	parts := make([]string, len(l.items))
	for i, f := range l.items {
		parts[i] = f.StringValue()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l *List) String() string { return describe(l) }
