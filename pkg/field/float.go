package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Float is an IEEE 754 single (32-bit) or double (64-bit) precision value.
type Float struct {
	leaf
}

// NewFloat32 creates a 4-byte float field.
func NewFloat32(name string, opts ...Option) *Float {
	return newFloat(name, 32, opts)
}

// NewFloat64 creates an 8-byte float field.
func NewFloat64(name string, opts ...Option) *Float {
	return newFloat(name, 64, opts)
}

func newFloat(name string, width int, opts []Option) *Float {
	o := collect(opts)
	f := &Float{leaf: newLeaf(name, width, "%g")}
	f.apply(o)
	seed(f, o)
	return f
}

func (f *Float) TypeName() string { return fmt.Sprintf("Float%d", f.width) }

func (f *Float) Parse(in bits.Buffer) (bits.Buffer, error) {
	return f.take(f, in)
}

func (f *Float) SetBits(b bits.Buffer) error {
	f.setBits(b)
	return nil
}

// Float64 decodes the stored bytes in the field's byte order.
func (f *Float) Float64() float64 {
	stream := kaitai.NewStream(bytes.NewReader(f.bits.Bytes()))
	var (
		v   float64
		err error
	)
	switch {
	case f.width == 32 && f.endian == bits.Big:
		var x float32
		x, err = stream.ReadF4be()
		v = float64(x)
	case f.width == 32:
		var x float32
		x, err = stream.ReadF4le()
		v = float64(x)
	case f.endian == bits.Big:
		v, err = stream.ReadF8be()
	default:
		v, err = stream.ReadF8le()
	}
	if err != nil {
		// storage always holds exactly width bits
		panic(fmt.Sprintf("field %q: decoding float: %v", f.name, err))
	}
	return v
}

// Value returns float32 for 32-bit fields and float64 for 64-bit ones.
func (f *Float) Value() any {
	if f.width == 32 {
		return float32(f.Float64())
	}
	return f.Float64()
}

func (f *Float) SetValue(v any) error {
	rv := reflect.ValueOf(v)
	var x float64
	switch n, isNumber := v.(json.Number); {
	case isNumber:
		var err error
		if x, err = n.Float64(); err != nil {
			return newError(f, "set", ErrType, "%q is not a number", string(n))
		}
	case v == nil:
		return newError(f, "set", ErrType, "nil is not a number")
	case rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64:
		x = rv.Float()
	case rv.CanInt():
		x = float64(rv.Int())
	case rv.CanUint():
		x = float64(rv.Uint())
	default:
		return newError(f, "set", ErrType, "%T is not a number", v)
	}
	if f.width == 32 && !math.IsInf(x, 0) && !math.IsNaN(x) && math.Abs(x) > math.MaxFloat32 {
		return newError(f, "set", ErrOverflow, "%g exceeds float32 range", x)
	}

	var buf bytes.Buffer
	w := kaitai.NewWriter(&buf)
	var err error
	switch {
	case f.width == 32 && f.endian == bits.Big:
		err = w.WriteF4be(float32(x))
	case f.width == 32:
		err = w.WriteF4le(float32(x))
	case f.endian == bits.Big:
		err = w.WriteF8be(x)
	default:
		err = w.WriteF8le(x)
	}
	if err != nil {
		return newError(f, "set", ErrType, "encoding float: %v", err)
	}
	f.bits = bits.FromBytes(buf.Bytes(), f.width)
	return nil
}

func (f *Float) StringValue() string { return fmt.Sprintf(f.format, f.Value()) }
func (f *Float) String() string      { return describe(f) }
