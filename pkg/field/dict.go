package field

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Dict is an ordered map of uniquely named children.
type Dict struct {
	node
	children []Field
}

// NewDict creates a dict holding children in the given order. It panics on
// duplicate names.
func NewDict(name string, children ...Field) *Dict {
	d := &Dict{node: node{name: name}}
	for _, c := range children {
		if err := d.Append(c); err != nil {
			panic(err.Error())
		}
	}
	return d
}

func (d *Dict) TypeName() string { return "Dict" }

// BitCount is the sum of the children's widths, or -1 if any child is
// variable.
func (d *Dict) BitCount() int {
	return sumWidths(d.children)
}

func sumWidths(children []Field) int {
	total := 0
	for _, c := range children {
		n := c.BitCount()
		if n < 0 {
			return -1
		}
		total += n
	}
	return total
}

func (d *Dict) Children() []Field {
	return append([]Field(nil), d.children...)
}

// Len returns the number of children.
func (d *Dict) Len() int { return len(d.children) }

// Keys returns the child names in order.
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.children))
	for i, c := range d.children {
		keys[i] = c.Name()
	}
	return keys
}

// Index returns the position of the named child, or -1.
func (d *Dict) Index(name string) int {
	for i, c := range d.children {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// Get returns the named child, or nil.
func (d *Dict) Get(name string) Field {
	if i := d.Index(name); i >= 0 {
		return d.children[i]
	}
	return nil
}

// Lookup returns the named child and whether it exists.
func (d *Dict) Lookup(name string) (Field, bool) {
	f := d.Get(name)
	return f, f != nil
}

// Append adds c at the end. The name must be new.
func (d *Dict) Append(c Field) error {
	return d.Insert(len(d.children), c)
}

// Insert adds c at position i. The name must be new.
func (d *Dict) Insert(i int, c Field) error {
	if c == nil {
		return newError(d, "insert", ErrType, "nil child")
	}
	if i < 0 || i > len(d.children) {
		return newError(d, "insert", ErrStructural, "index %d out of range [0, %d]", i, len(d.children))
	}
	if d.Index(c.Name()) >= 0 {
		return newError(d, "insert", ErrStructural, "duplicate child %q", c.Name())
	}
	adopt(d, c)
	// adopt may have removed c from this dict under another position
	if i > len(d.children) {
		i = len(d.children)
	}
	d.children = append(d.children, nil)
	copy(d.children[i+1:], d.children[i:])
	d.children[i] = c
	return nil
}

// Put replaces the same-named child in place, or appends c if the name is
// new.
func (d *Dict) Put(c Field) {
	i := d.Index(c.Name())
	if i < 0 {
		_ = d.Append(c)
		return
	}
	if d.children[i] == c {
		return
	}
	old := d.children[i]
	adopt(d, c)
	d.children[i] = c
	release(d, old)
}

// Remove detaches and returns the named child, or nil.
func (d *Dict) Remove(name string) Field {
	i := d.Index(name)
	if i < 0 {
		return nil
	}
	c := d.children[i]
	d.children = append(d.children[:i], d.children[i+1:]...)
	release(d, c)
	return c
}

func (d *Dict) RemoveChild(c Field) bool {
	for i, x := range d.children {
		if x == c {
			d.children = append(d.children[:i], d.children[i+1:]...)
			release(d, c)
			return true
		}
	}
	return false
}

// Rename changes a child's name in place, keeping its position.
func (d *Dict) Rename(from, to string) error {
	c := d.Get(from)
	if c == nil {
		return newError(d, "rename", ErrStructural, "no child %q", from)
	}
	if from == to {
		return nil
	}
	if d.Index(to) >= 0 {
		return newError(d, "rename", ErrStructural, "duplicate child %q", to)
	}
	c.SetName(to)
	return nil
}

func (d *Dict) Parse(in bits.Buffer) (bits.Buffer, error) {
	return parseSequence(d.children, in)
}

// parseSequence threads in through children. The failing child is restored
// to its state before the attempt and the buffer it was given is returned.
func parseSequence(children []Field, in bits.Buffer) (bits.Buffer, error) {
	cur := in
	for _, c := range children {
		undo := snapshotOf(c)
		rest, err := c.Parse(cur)
		if err != nil {
			undo()
			return cur, err
		}
		cur = rest
	}
	return cur, nil
}

func (d *Dict) Bits() bits.Buffer {
	return concatBits(d.children)
}

func concatBits(children []Field) bits.Buffer {
	parts := make([]bits.Buffer, len(children))
	for i, c := range children {
		parts[i] = c.Bits()
	}
	return bits.Concat(parts...)
}

// SetBits redistributes b over the children by parsing it.
func (d *Dict) SetBits(b bits.Buffer) error {
	if n := d.BitCount(); n >= 0 {
		b = b.Resize(n)
	}
	_, err := d.Parse(b)
	return err
}

func (d *Dict) snapshot() func() {
	return snapshotAll(d.children)
}

func snapshotAll(children []Field) func() {
	undos := make([]func(), len(children))
	for i, c := range children {
		undos[i] = snapshotOf(c)
	}
	return func() {
		for _, u := range undos {
			u()
		}
	}
}

// Value returns a map of child name to child value.
func (d *Dict) Value() any {
	m := make(map[string]any, len(d.children))
	for _, c := range d.children {
		m[c.Name()] = c.Value()
	}
	return m
}

// SetValue assigns children pairwise. A map assigns by name, a sequence by
// position. An element that is itself a Field replaces the child node; a
// replacement given under a map key takes that key as its name. Anything else
// is assigned to the child's value. On error the dict is left as it was.
func (d *Dict) SetValue(v any) error {
	undo := d.transaction()
	if err := d.setValue(v); err != nil {
		undo()
		return err
	}
	return nil
}

func (d *Dict) setValue(v any) error {
	switch x := v.(type) {
	case map[string]any:
		var unknown []string
		for k := range x {
			if d.Index(k) < 0 {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return newError(d, "set", ErrStructural, "no child %q", unknown[0])
		}
		for _, c := range d.Children() {
			nv, ok := x[c.Name()]
			if !ok {
				continue
			}
			if f, ok := nv.(Field); ok && f != c {
				if f.Parent() == Field(d) {
					return newError(d, "set", ErrStructural, "%q is already a child", f.Name())
				}
				f.SetName(c.Name())
			}
			if err := d.assign(c, nv); err != nil {
				return err
			}
		}
		return nil
	case []Field:
		items := make([]any, len(x))
		for i, f := range x {
			items[i] = f
		}
		return d.setValue(items)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return d.setValue(m)
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return newError(d, "set", ErrType, "%T is neither a mapping nor a sequence", v)
	}
	if rv.Len() > len(d.children) {
		return newError(d, "set", ErrStructural, "%d values for %d children", rv.Len(), len(d.children))
	}
	children := d.Children()
	for i := 0; i < rv.Len(); i++ {
		if err := d.assign(children[i], rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dict) assign(c Field, v any) error {
	if f, ok := v.(Field); ok {
		if f == c {
			return nil
		}
		if f.Name() != c.Name() && d.Index(f.Name()) >= 0 {
			return newError(d, "set", ErrStructural, "duplicate child %q", f.Name())
		}
		i := d.Index(c.Name())
		d.RemoveChild(c)
		return d.Insert(min(i, len(d.children)), f)
	}
	return c.SetValue(v)
}

// transaction records the child list and every child's state. The returned
// func puts both back, detaching any node that was swapped in since.
func (d *Dict) transaction() func() {
	children := append([]Field(nil), d.children...)
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	restore := snapshotAll(children)
	return func() {
		for _, c := range d.children {
			if !containsField(children, c) {
				release(d, c)
			}
		}
		d.children = children
		for i, c := range children {
			c.SetParent(d)
			c.SetName(names[i])
		}
		restore()
	}
}

func containsField(fs []Field, f Field) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

func (d *Dict) StringValue() string {
	parts := make([]string, len(d.children))
	for i, c := range d.children {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (d *Dict) String() string { return describe(d) }

// MustGet returns the named child and panics if it is missing. It is meant
// for trees built in code where the name is known.
func (d *Dict) MustGet(name string) Field {
	c := d.Get(name)
	if c == nil {
		panic(fmt.Sprintf("dict %q has no child %q", d.name, name))
	}
	return c
}
