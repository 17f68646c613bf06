package field

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Variant is a named code of an enum.
type Variant struct {
	Name string
	Code uint64
}

// Known reports whether the variant is declared. Codes without a declared
// variant come back from Enum.Value with an empty Name.
func (v Variant) Known() bool { return v.Name != "" }

func (v Variant) String() string {
	if !v.Known() {
		return fmt.Sprintf("Unknown(%d)", v.Code)
	}
	return fmt.Sprintf("%s(%d)", v.Name, v.Code)
}

// Variants is an ordered set of variants with lookup by code and name.
type Variants struct {
	list   []Variant
	byCode map[uint64]int
	byName map[string]int
}

// NewVariants builds a variant set. Later duplicates of a name or code
// replace earlier ones.
func NewVariants(vs ...Variant) *Variants {
	s := &Variants{byCode: make(map[uint64]int), byName: make(map[string]int)}
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// VariantsFromMap builds a variant set ordered by code.
func VariantsFromMap(m map[uint64]string) *Variants {
	codes := make([]uint64, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	s := NewVariants()
	for _, c := range codes {
		s.Add(Variant{Name: m[c], Code: c})
	}
	return s
}

// Add declares v.
func (s *Variants) Add(v Variant) {
	if i, ok := s.byName[v.Name]; ok {
		delete(s.byCode, s.list[i].Code)
		s.list[i] = v
		s.byCode[v.Code] = i
		return
	}
	s.list = append(s.list, v)
	s.byName[v.Name] = len(s.list) - 1
	s.byCode[v.Code] = len(s.list) - 1
}

// Lookup finds the variant with the given code.
func (s *Variants) Lookup(code uint64) (Variant, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return Variant{Code: code}, false
	}
	return s.list[i], true
}

// ByName finds the variant with the given name.
func (s *Variants) ByName(name string) (Variant, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Variant{}, false
	}
	return s.list[i], true
}

// List returns the variants in declaration order.
func (s *Variants) List() []Variant {
	return append([]Variant(nil), s.list...)
}

// Enum is an unsigned integer projected onto a set of variants.
type Enum struct {
	leaf
	variants *Variants
}

// NewEnum creates an n-bit enum. It panics if n is outside 1..64.
func NewEnum(name string, n int, variants *Variants, opts ...Option) *Enum {
	checkWidth("enum", n)
	if variants == nil {
		variants = NewVariants()
	}
	o := collect(opts)
	e := &Enum{leaf: newLeaf(name, n, "%s"), variants: variants}
	e.apply(o)
	seed(e, o)
	return e
}

func (e *Enum) TypeName() string { return "Enum" }

// Variants returns the declared variant set.
func (e *Enum) Variants() *Variants { return e.variants }

func (e *Enum) Parse(in bits.Buffer) (bits.Buffer, error) {
	return e.take(e, in)
}

func (e *Enum) SetBits(b bits.Buffer) error {
	e.setBits(b)
	return nil
}

// Code returns the raw integer.
func (e *Enum) Code() uint64 { return bits.Uint(e.bits, e.endian) }

// Variant returns the variant matching the stored code. For an undeclared
// code it returns a Variant with an empty name and false.
func (e *Enum) Variant() (Variant, bool) {
	return e.variants.Lookup(e.Code())
}

// Is reports whether the stored code is the variant called name.
func (e *Enum) Is(name string) bool {
	v, ok := e.Variant()
	return ok && v.Name == name
}

// Value returns the stored Variant; check Known for undeclared codes.
func (e *Enum) Value() any {
	v, _ := e.Variant()
	return v
}

// SetValue accepts a Variant, a variant name or a raw integer code.
func (e *Enum) SetValue(v any) error {
	var code uint64
	switch x := v.(type) {
	case Variant:
		code = x.Code
	case *Variant:
		code = x.Code
	case string:
		found, ok := e.variants.ByName(x)
		if !ok {
			return newError(e, "set", ErrUnknownVariant, "%q", x)
		}
		code = found.Code
	default:
		n, err := toBigInt(v)
		if err != nil {
			return newError(e, "set", ErrType, "%v", err)
		}
		if err := checkRange(n, e.width, false); err != nil {
			return newError(e, "set", ErrOverflow, "%v", err)
		}
		code = n.Uint64()
	}
	if e.width < 64 && code >= 1<<uint(e.width) {
		return newError(e, "set", ErrOverflow, "code %d does not fit %d bits", code, e.width)
	}
	e.bits = bits.FromUint(code, e.width, e.endian)
	return nil
}

func (e *Enum) StringValue() string {
	v, ok := e.Variant()
	if !ok {
		return v.String()
	}
	return fmt.Sprintf(e.format, v.Name)
}

func (e *Enum) String() string { return describe(e) }

// Flag is a named bit of a Flags field. Bit 0 is the least significant bit of
// the field's integer value.
type Flag struct {
	Name string
	Bit  int
}

// Flags is an unsigned integer projected onto a set of single-bit flags.
type Flags struct {
	leaf
	defs []Flag
}

// NewFlags creates an n-bit flag set. It panics if n is outside 1..64 or a
// flag bit does not fit.
func NewFlags(name string, n int, defs []Flag, opts ...Option) *Flags {
	checkWidth("flags", n)
	for _, d := range defs {
		if d.Bit < 0 || d.Bit >= n {
			panic(fmt.Sprintf("flag %q bit %d does not fit %d bits", d.Name, d.Bit, n))
		}
	}
	o := collect(opts)
	f := &Flags{leaf: newLeaf(name, n, "%s"), defs: append([]Flag(nil), defs...)}
	f.apply(o)
	seed(f, o)
	return f
}

func (f *Flags) TypeName() string { return "Flags" }

// Definitions returns the declared flags.
func (f *Flags) Definitions() []Flag { return append([]Flag(nil), f.defs...) }

func (f *Flags) Parse(in bits.Buffer) (bits.Buffer, error) {
	return f.take(f, in)
}

func (f *Flags) SetBits(b bits.Buffer) error {
	f.setBits(b)
	return nil
}

// Raw returns the underlying integer.
func (f *Flags) Raw() uint64 { return bits.Uint(f.bits, f.endian) }

// Undeclared returns the set bits that no flag names.
func (f *Flags) Undeclared() uint64 {
	var mask uint64
	for _, d := range f.defs {
		mask |= 1 << uint(d.Bit)
	}
	return f.Raw() &^ mask
}

func (f *Flags) lookup(name string) (Flag, bool) {
	for _, d := range f.defs {
		if d.Name == name {
			return d, true
		}
	}
	return Flag{}, false
}

// Has reports whether the named flag is set.
func (f *Flags) Has(name string) bool {
	d, ok := f.lookup(name)
	return ok && f.Raw()&(1<<uint(d.Bit)) != 0
}

// Set turns a single flag on or off, leaving the others untouched.
func (f *Flags) Set(name string, on bool) error {
	d, ok := f.lookup(name)
	if !ok {
		return newError(f, "set", ErrUnknownVariant, "flag %q", name)
	}
	raw := f.Raw()
	if on {
		raw |= 1 << uint(d.Bit)
	} else {
		raw &^= 1 << uint(d.Bit)
	}
	f.bits = bits.FromUint(raw, f.width, f.endian)
	return nil
}

// Names returns the set flags in declaration order.
func (f *Flags) Names() []string {
	raw := f.Raw()
	var out []string
	for _, d := range f.defs {
		if raw&(1<<uint(d.Bit)) != 0 {
			out = append(out, d.Name)
		}
	}
	return out
}

// Value returns the names of the set flags.
func (f *Flags) Value() any { return f.Names() }

// SetValue replaces the whole set. It accepts a list of flag names (every
// other bit is cleared), a map of name to bool, or a raw integer.
func (f *Flags) SetValue(v any) error {
	switch x := v.(type) {
	case []string:
		return f.setNames(x)
	case map[string]bool:
		var names []string
		for name, on := range x {
			if on {
				names = append(names, name)
			}
		}
		return f.setNames(names)
	case string, bool:
		return newError(f, "set", ErrType, "%T is not a flag set", v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		names := make([]string, rv.Len())
		for i := range names {
			s, ok := rv.Index(i).Interface().(string)
			if !ok {
				return newError(f, "set", ErrType, "element %d is %T, not a flag name", i, rv.Index(i).Interface())
			}
			names[i] = s
		}
		return f.setNames(names)
	}

	n, err := toBigInt(v)
	if err != nil {
		return newError(f, "set", ErrType, "%v", err)
	}
	if err := checkRange(n, f.width, false); err != nil {
		return newError(f, "set", ErrOverflow, "%v", err)
	}
	f.bits = bits.FromUint(n.Uint64(), f.width, f.endian)
	return nil
}

func (f *Flags) setNames(names []string) error {
	var raw uint64
	for _, name := range names {
		d, ok := f.lookup(name)
		if !ok {
			return newError(f, "set", ErrUnknownVariant, "flag %q", name)
		}
		raw |= 1 << uint(d.Bit)
	}
	f.bits = bits.FromUint(raw, f.width, f.endian)
	return nil
}

func (f *Flags) StringValue() string {
	names := f.Names()
	if len(names) == 0 {
		return "-"
	}
	return fmt.Sprintf(f.format, strings.Join(names, "|"))
}

func (f *Flags) String() string { return describe(f) }
