package field

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/twinfer/bitwire/pkg/bits"
)

// SkipChildren can be returned by a WalkFunc to skip the children of the
// current field.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every field visited by Walk. depth is 0 for the root.
type WalkFunc func(f Field, depth int) error

// Walk visits f and its descendants depth first in declared order. It stops
// at the first error other than SkipChildren.
func Walk(f Field, fn WalkFunc) error {
	return walk(f, 0, fn)
}

func walk(f Field, depth int, fn WalkFunc) error {
	if err := fn(f, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range f.Children() {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Chain returns the dotted path of names from the root to f.
func Chain(f Field) string {
	if f == nil {
		return ""
	}
	var names []string
	for p := f; p != nil; p = p.Parent() {
		names = append(names, p.Name())
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, ".")
}

// Root returns the topmost ancestor of f.
func Root(f Field) Field {
	for f.Parent() != nil {
		f = f.Parent()
	}
	return f
}

// Find resolves a dotted path of child names below root, e.g. "Header.Length".
// Array elements are addressed as "#i".
func Find(root Field, path string) (Field, bool) {
	cur := root
	if path == "" {
		return cur, true
	}
	for _, name := range strings.Split(path, ".") {
		var next Field
		for _, c := range cur.Children() {
			if c.Name() == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// BytesOf packs the bits of f, zero-padding the final byte.
func BytesOf(f Field) []byte { return f.Bits().Bytes() }

// ParseBytes parses f from data and returns the unconsumed bits.
func ParseBytes(f Field, data []byte) (bits.Buffer, error) {
	return f.Parse(bits.FromBytes(data, -1))
}

// Hex renders BytesOf(f) as uppercase hex without separators.
func Hex(f Field) string { return strings.ToUpper(hex.EncodeToString(BytesOf(f))) }

// MSB returns the most significant first view of f, truncated to its bit
// count when it has one.
func MSB(f Field) bits.Buffer {
	b := f.Bits()
	n := f.BitCount()
	if n < 0 {
		n = len(b)
	}
	return b.MSB(n)
}

// Repr renders "<TypeName> name: value".
func Repr(f Field) string { return "<" + f.TypeName() + "> " + f.String() }

// Dump renders one line per node, indented two spaces per level. Containers
// show their type instead of their aggregated value.
func Dump(f Field) string {
	var sb strings.Builder
	_ = Walk(f, func(c Field, depth int) error {
		sb.WriteString(strings.Repeat("  ", depth))
		if isContainer(c) {
			sb.WriteString(c.Name() + ": <" + c.TypeName() + ">")
		} else {
			sb.WriteString(c.String())
		}
		sb.WriteByte('\n')
		return nil
	})
	return sb.String()
}

func isContainer(f Field) bool {
	_, ok := f.(Container)
	return ok
}
