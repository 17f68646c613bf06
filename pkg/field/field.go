package field

import (
	"fmt"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Field is the uniform contract shared by every node of a message tree.
type Field interface {
	// Name identifies the field among its siblings.
	Name() string
	// SetName does not check siblings. Use Dict.Rename to keep the names in
	// a dict unique; Validate reports duplicates left by direct calls.
	SetName(name string)
	// TypeName is the concrete kind, used by Repr.
	TypeName() string
	// BitCount is the declared width, or -1 when the width is only known
	// after parsing.
	BitCount() int
	Endian() bits.Endian
	Format() string

	Parent() Field
	// SetParent installs p as the back-reference. Containers call it when a
	// child is attached; it does not detach the field from a previous parent.
	SetParent(p Field)
	Children() []Field

	// Parse consumes a prefix of in and returns the unconsumed suffix. On
	// failure the field keeps its previous state and in is returned as is.
	Parse(in bits.Buffer) (bits.Buffer, error)
	// Bits returns a copy of the LSB-first storage.
	Bits() bits.Buffer
	// SetBits installs new storage, zero-padding or truncating the high end
	// to the declared width.
	SetBits(b bits.Buffer) error

	Value() any
	SetValue(v any) error
	StringValue() string
	// String renders "{name}: {string value}".
	String() string
}

// Container is a Field that owns children and can release one of them.
type Container interface {
	Field
	// RemoveChild detaches c if it is a direct child.
	RemoveChild(c Field) bool
}

// Factory creates a fresh field with the given name. Arrays use it to build
// their elements.
type Factory func(name string) Field

// snapshotter is implemented by every field in this package. The returned
// func restores the state captured at the time of the call.
type snapshotter interface {
	snapshot() func()
}

func snapshotOf(f Field) func() {
	if s, ok := f.(snapshotter); ok {
		return s.snapshot()
	}
	return func() {}
}

// node holds the attributes shared by leaves and containers.
type node struct {
	name        string
	endian      bits.Endian
	format      string
	parent      Field
	validations []string
}

func (n *node) Name() string        { return n.name }
func (n *node) SetName(name string) { n.name = name }
func (n *node) Endian() bits.Endian { return n.endian }
func (n *node) Format() string      { return n.format }
func (n *node) Parent() Field       { return n.parent }
func (n *node) SetParent(p Field)   { n.parent = p }

// Validations returns the WithValidation predicates attached to the field.
func (n *node) Validations() []string { return n.validations }

func (n *node) apply(o options) {
	n.endian = o.endian
	if o.format != "" {
		n.format = o.format
	}
	n.validations = append(n.validations, o.validations...)
}

// leaf stores its own bits.
type leaf struct {
	node
	width int
	bits  bits.Buffer
}

func newLeaf(name string, width int, format string) leaf {
	return leaf{
		node:  node{name: name, format: format},
		width: width,
		bits:  bits.New(width),
	}
}

func (l *leaf) BitCount() int     { return l.width }
func (l *leaf) Children() []Field { return nil }
func (l *leaf) Bits() bits.Buffer { return l.bits.Clone() }

func (l *leaf) snapshot() func() {
	saved := l.bits.Clone()
	return func() { l.bits = saved }
}

// take consumes the leaf's width from in.
func (l *leaf) take(self Field, in bits.Buffer) (bits.Buffer, error) {
	head, rest, err := in.Slice(l.width)
	if err != nil {
		return in, newError(self, "parse", ErrInsufficientData, "need %d bits, have %d", l.width, len(in))
	}
	l.bits = head
	return rest, nil
}

func (l *leaf) setBits(b bits.Buffer) {
	if l.width >= 0 {
		l.bits = b.Resize(l.width)
		return
	}
	l.bits = b.Clone()
}

func describe(f Field) string {
	return fmt.Sprintf("%s: %s", f.Name(), f.StringValue())
}

// adopt attaches child to parent, evicting it from any previous parent.
func adopt(parent Container, child Field) {
	if child == nil {
		return
	}
	if old := child.Parent(); old != nil && old != Field(parent) {
		if c, ok := old.(Container); ok {
			c.RemoveChild(child)
		}
	}
	child.SetParent(parent)
}

// release clears the back-reference of a removed child.
func release(parent Field, child Field) {
	if child != nil && child.Parent() == parent {
		child.SetParent(nil)
	}
}

// Option configures a field at construction time.
type Option func(*options)

type options struct {
	endian      bits.Endian
	format      string
	def         any
	hasDefault  bool
	pad         byte
	coils       bool
	validations []string
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEndian sets the byte order used to read multi-byte values.
func WithEndian(e bits.Endian) Option {
	return func(o *options) {
		o.endian = e
	}
}

// WithFormat sets the fmt template used by StringValue, e.g. "0x%04X".
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithDefault seeds the field's value. The constructor panics if the value
// cannot be assigned.
func WithDefault(v any) Option {
	return func(o *options) {
		o.def = v
		o.hasDefault = true
	}
}

// WithPad sets the byte used to pad fixed-length strings and byte strings.
func WithPad(b byte) Option {
	return func(o *options) {
		o.pad = b
	}
}

// WithCoils makes an array count in bytes and hold eight one-bit elements per
// counted byte, the way Modbus lays out coil and discrete input bits.
func WithCoils() Option {
	return func(o *options) {
		o.coils = true
	}
}

// WithValidation attaches a boolean expr-lang predicate checked by Validate.
// The predicate sees value, name and bits.
func WithValidation(expression string) Option {
	return func(o *options) {
		o.validations = append(o.validations, expression)
	}
}

func seed(f Field, o options) {
	if !o.hasDefault {
		return
	}
	if err := f.SetValue(o.def); err != nil {
		panic(fmt.Sprintf("field %q: default %v: %v", f.Name(), o.def, err))
	}
}

func checkWidth(kind string, n int) {
	if n < 1 || n > 64 {
		panic(fmt.Sprintf("%s width must be 1-64 bits, got %d", kind, n))
	}
}
