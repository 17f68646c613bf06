package field

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Array is a homogeneous sequence whose length comes from a Count. Elements
// are built by a Factory and named "#0", "#1", ...
//
// With WithCoils the count is in bytes and the array holds eight elements per
// counted byte. Elements are still emitted in order, so one-bit booleans land
// in the LSB-first wire order Modbus uses for coils.
type Array struct {
	node
	count Count
	elem  Factory
	coils bool
	width int
	elems []Field
}

// NewArray creates an array of elements built by elem. A constant count
// builds its elements immediately; other counts start empty.
func NewArray(name string, count Count, elem Factory, opts ...Option) *Array {
	o := collect(opts)
	a := &Array{
		node:  node{name: name, format: "%v"},
		count: count,
		elem:  elem,
		coils: o.coils,
		width: elem("#0").BitCount(),
	}
	a.apply(o)
	if n, ok := count.Fixed(); ok {
		a.elems = a.build(a.units(n), nil)
	}
	seed(a, o)
	return a
}

// NewCoils creates a coil array of one-bit booleans counted in bytes.
func NewCoils(name string, count Count, opts ...Option) *Array {
	return NewArray(name, count, func(n string) Field { return NewBool(n) }, append(opts, WithCoils())...)
}

func (a *Array) TypeName() string { return "Array" }

// Count returns the count source.
func (a *Array) Count() Count { return a.count }

// Coils reports whether the count is in bytes of packed bits.
func (a *Array) Coils() bool { return a.coils }

// units converts a resolved count into a number of elements.
func (a *Array) units(n int) int {
	if a.coils {
		return n * 8
	}
	return n
}

// BitCount is known only for constant counts of fixed-width elements.
func (a *Array) BitCount() int {
	n, ok := a.count.Fixed()
	if !ok || a.width < 0 {
		return -1
	}
	return a.units(n) * a.width
}

func (a *Array) Children() []Field { return append([]Field(nil), a.elems...) }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// At returns element i, or nil when i is out of range.
func (a *Array) At(i int) Field {
	if i < 0 || i >= len(a.elems) {
		return nil
	}
	return a.elems[i]
}

// build returns n elements, reusing keep where possible.
func (a *Array) build(n int, keep []Field) []Field {
	out := make([]Field, n)
	for i := range out {
		if i < len(keep) {
			out[i] = keep[i]
			continue
		}
		e := a.elem(fmt.Sprintf("#%d", i))
		e.SetParent(a)
		out[i] = e
	}
	return out
}

func (a *Array) renumber() {
	for i, e := range a.elems {
		e.SetName(fmt.Sprintf("#%d", i))
	}
}

// Parse resolves the count, then parses that many fresh elements one at a
// time. The elements are installed only if all of them parse. A count that
// cannot fit the input fails before any element is built.
func (a *Array) Parse(in bits.Buffer) (bits.Buffer, error) {
	n, err := a.count.Resolve(a)
	if err != nil {
		return in, err
	}
	if per := a.unitBits(); per > 0 && n > len(in)/per {
		return in, newError(a, "parse", ErrInsufficientData, "count %d needs %d bits each, have %d", n, per, len(in))
	}

	units := a.units(n)
	elems := make([]Field, 0, min(units, len(in)))
	cur := in
	for i := 0; i < units; i++ {
		e := a.elem(fmt.Sprintf("#%d", i))
		e.SetParent(a)
		rest, err := e.Parse(cur)
		if err != nil {
			return in, err
		}
		elems = append(elems, e)
		cur = rest
	}
	for _, e := range a.elems {
		release(a, e)
	}
	a.elems = elems
	return cur, nil
}

// unitBits is the width of one counted unit, or -1 for variable elements.
func (a *Array) unitBits() int {
	if a.width < 0 {
		return -1
	}
	return a.units(1) * a.width
}

func (a *Array) Bits() bits.Buffer { return concatBits(a.elems) }

func (a *Array) SetBits(b bits.Buffer) error {
	if n := a.BitCount(); n >= 0 {
		b = b.Resize(n)
	}
	_, err := a.Parse(b)
	return err
}

func (a *Array) snapshot() func() {
	elems := append([]Field(nil), a.elems...)
	restore := snapshotAll(elems)
	return func() {
		a.elems = elems
		for _, e := range elems {
			e.SetParent(a)
		}
		a.renumber()
		restore()
	}
}

func (a *Array) RemoveChild(c Field) bool {
	for i, e := range a.elems {
		if e == c {
			a.elems = append(a.elems[:i], a.elems[i+1:]...)
			release(a, c)
			a.renumber()
			return true
		}
	}
	return false
}

// Resize grows or shrinks the array to n elements. Elements are added from
// the factory. A sibling count reference is updated to match.
func (a *Array) Resize(n int) error {
	if n < 0 {
		return newError(a, "resize", ErrStructural, "negative length %d", n)
	}
	if fixed, ok := a.count.Fixed(); ok {
		if n != a.units(fixed) {
			return newError(a, "resize", ErrStructural, "length is fixed at %d, got %d", a.units(fixed), n)
		}
		return nil
	}
	if a.coils && n%8 != 0 {
		return newError(a, "resize", ErrStructural, "coil count %d is not a multiple of 8", n)
	}
	if r, ok := a.count.(refCount); ok {
		c := n
		if a.coils {
			c = n / 8
		}
		if err := r.follow(a, c); err != nil {
			return err
		}
	}
	for _, e := range a.elems[min(n, len(a.elems)):] {
		release(a, e)
	}
	a.elems = a.build(n, a.elems[:min(n, len(a.elems))])
	return nil
}

// Value returns the element values in order.
func (a *Array) Value() any {
	out := make([]any, len(a.elems))
	for i, e := range a.elems {
		out[i] = e.Value()
	}
	return out
}

// SetValue resizes the array to the length of the sequence v and assigns the
// elements in order. Field elements replace the existing element. The array
// and its count sibling are left untouched on failure.
func (a *Array) SetValue(v any) error {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return newError(a, "set", ErrType, "%T is not a sequence", v)
	}

	undo := a.snapshot()
	var undoCount func()
	if r, ok := a.count.(refCount); ok {
		if sib, err := r.sibling(a); err == nil {
			undoCount = snapshotOf(sib)
		}
	}
	fail := func(err error) error {
		undo()
		if undoCount != nil {
			undoCount()
		}
		return err
	}

	if err := a.Resize(rv.Len()); err != nil {
		return fail(err)
	}
	for i := 0; i < rv.Len(); i++ {
		x := rv.Index(i).Interface()
		if f, ok := x.(Field); ok {
			if f != a.elems[i] {
				adopt(a, f)
				release(a, a.elems[i])
				a.elems[i] = f
				f.SetName(fmt.Sprintf("#%d", i))
			}
			continue
		}
		if err := a.elems[i].SetValue(x); err != nil {
			return fail(err)
		}
	}
	return nil
}

func (a *Array) StringValue() string {
	parts := make([]string, len(a.elems))
	for i, e := range a.elems {
		parts[i] = e.StringValue()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a *Array) String() string { return describe(a) }
