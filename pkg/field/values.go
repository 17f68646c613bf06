package field

import (
	"encoding/hex"
	"strings"
)

// integerOf reads an integral value from integer-backed fields.
func integerOf(f Field) (int64, bool) {
	switch x := f.(type) {
	case *Int:
		return x.Int64(), true
	case *Enum:
		return int64(x.Code()), true
	case *Flags:
		return int64(x.Raw()), true
	case *Checksum:
		return int64(x.Uint64()), true
	case *Bool:
		if x.Bool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// scalar converts a field to the plain value bound in CEL and expr-lang
// environments. Enums and flags expose their integer code.
func scalar(f Field) any {
	switch x := f.(type) {
	case *Enum:
		return x.Code()
	case *Flags:
		return x.Raw()
	case *Checksum:
		return x.Uint64()
	case *Float:
		return x.Float64()
	case *String:
		return x.Text()
	case *Bytes:
		return x.Data()
	case *Dict:
		m := make(map[string]any, len(x.children))
		for _, c := range x.children {
			m[c.Name()] = scalar(c)
		}
		return m
	}
	if isSequence(f) {
		c := f.Children()
		out := make([]any, len(c))
		for i, e := range c {
			out[i] = scalar(e)
		}
		return out
	}
	return f.Value()
}

func isSequence(f Field) bool {
	switch f.(type) {
	case *List, *Array:
		return true
	}
	return false
}

// Export converts a field to JSON-friendly Go values. Known enum variants
// become their names, flags become name lists and raw bytes become uppercase
// hex. Flags with undeclared bits set export their raw integer instead. Every
// exported value is accepted back by SetValue.
func Export(f Field) any {
	switch x := f.(type) {
	case *Enum:
		if v, ok := x.Variant(); ok {
			return v.Name
		}
		return x.Code()
	case *Flags:
		if x.Undeclared() != 0 {
			return x.Raw()
		}
		names := x.Names()
		out := make([]any, len(names))
		for i, n := range names {
			out[i] = n
		}
		return out
	case *Bytes:
		return strings.ToUpper(hex.EncodeToString(x.Data()))
	case *Float:
		return x.Float64()
	case *String:
		return x.Text()
	case *Dict:
		m := make(map[string]any, len(x.children))
		for _, c := range x.children {
			m[c.Name()] = Export(c)
		}
		return m
	}
	if isSequence(f) {
		c := f.Children()
		out := make([]any, len(c))
		for i, e := range c {
			out[i] = Export(e)
		}
		return out
	}
	return f.Value()
}
