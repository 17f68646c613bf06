package field

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Int is an unsigned or two's complement signed integer of 1..64 bits.
type Int struct {
	leaf
	signed bool
}

// NewUint creates an unsigned integer field of n bits. It panics if n is
// outside 1..64.
func NewUint(name string, n int, opts ...Option) *Int {
	return newInt(name, n, false, opts)
}

// NewInt creates a signed integer field of n bits. It panics if n is outside
// 1..64.
func NewInt(name string, n int, opts ...Option) *Int {
	return newInt(name, n, true, opts)
}

func newInt(name string, n int, signed bool, opts []Option) *Int {
	checkWidth("integer", n)
	o := collect(opts)
	i := &Int{leaf: newLeaf(name, n, "%d"), signed: signed}
	i.apply(o)
	seed(i, o)
	return i
}

func (i *Int) TypeName() string {
	if i.signed {
		return fmt.Sprintf("Int%d", i.width)
	}
	return fmt.Sprintf("UInt%d", i.width)
}

// Signed reports whether the field is two's complement.
func (i *Int) Signed() bool { return i.signed }

func (i *Int) Parse(in bits.Buffer) (bits.Buffer, error) {
	return i.take(i, in)
}

func (i *Int) SetBits(b bits.Buffer) error {
	i.setBits(b)
	return nil
}

// Uint64 returns the unsigned reading of the stored bits.
func (i *Int) Uint64() uint64 {
	return bits.Uint(i.bits, i.endian)
}

// Int64 returns the value as int64; unsigned 64-bit values above MaxInt64
// wrap.
func (i *Int) Int64() int64 {
	if i.signed {
		return bits.Int(i.bits, i.endian)
	}
	return int64(i.Uint64())
}

// Value returns int64 for signed fields and uint64 for unsigned ones.
func (i *Int) Value() any {
	if i.signed {
		return i.Int64()
	}
	return i.Uint64()
}

func (i *Int) SetValue(v any) error {
	n, err := toBigInt(v)
	if err != nil {
		return newError(i, "set", ErrType, "%v", err)
	}
	if err := checkRange(n, i.width, i.signed); err != nil {
		return newError(i, "set", ErrOverflow, "%v", err)
	}
	if i.signed {
		i.bits = bits.FromInt(n.Int64(), i.width, i.endian)
	} else {
		i.bits = bits.FromUint(n.Uint64(), i.width, i.endian)
	}
	return nil
}

// SetUint64 is a typed form of SetValue.
func (i *Int) SetUint64(v uint64) error { return i.SetValue(v) }

// SetInt64 is a typed form of SetValue.
func (i *Int) SetInt64(v int64) error { return i.SetValue(v) }

func (i *Int) StringValue() string { return fmt.Sprintf(i.format, i.Value()) }
func (i *Int) String() string      { return describe(i) }

// Bool is a single bit.
type Bool struct {
	leaf
}

// NewBool creates a one-bit boolean field.
func NewBool(name string, opts ...Option) *Bool {
	o := collect(opts)
	b := &Bool{leaf: newLeaf(name, 1, "%t")}
	b.apply(o)
	seed(b, o)
	return b
}

func (b *Bool) TypeName() string { return "Bool" }

func (b *Bool) Parse(in bits.Buffer) (bits.Buffer, error) {
	return b.take(b, in)
}

func (b *Bool) SetBits(buf bits.Buffer) error {
	b.setBits(buf)
	return nil
}

// Bool returns the stored bit.
func (b *Bool) Bool() bool { return b.bits[0] }

func (b *Bool) Value() any { return b.Bool() }

// SetValue accepts a bool or the integers 0 and 1.
func (b *Bool) SetValue(v any) error {
	if x, ok := v.(bool); ok {
		b.bits = bits.Buffer{x}
		return nil
	}
	n, err := toBigInt(v)
	if err != nil {
		return newError(b, "set", ErrType, "%v", err)
	}
	if err := checkRange(n, 1, false); err != nil {
		return newError(b, "set", ErrOverflow, "%v", err)
	}
	b.bits = bits.Buffer{n.Sign() != 0}
	return nil
}

func (b *Bool) StringValue() string { return fmt.Sprintf(b.format, b.Bool()) }
func (b *Bool) String() string      { return describe(b) }

// toBigInt converts integer-like values. Floats are accepted only when
// integral, which is how numbers arrive from JSON.
func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil is not an integer")
	case *big.Int:
		return new(big.Int).Set(x), nil
	case json.Number:
		n, ok := new(big.Int).SetString(string(x), 10)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", string(x))
		}
		return n, nil
	case bool, string, []byte:
		return nil, fmt.Errorf("%T is not an integer", v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%s is not an integer", strconv.FormatFloat(f, 'g', -1, 64))
		}
		n, _ := big.NewFloat(f).Int(nil)
		return n, nil
	}
	return nil, fmt.Errorf("%T is not an integer", v)
}

// checkRange enforces [0, 2^n) for unsigned and [-2^(n-1), 2^(n-1)) for signed.
func checkRange(v *big.Int, n int, signed bool) error {
	lo := new(big.Int)
	hi := new(big.Int).Lsh(big.NewInt(1), uint(n))
	if signed {
		hi.Rsh(hi, 1)
		lo.Neg(hi)
	}
	if v.Cmp(lo) < 0 || v.Cmp(hi) >= 0 {
		return fmt.Errorf("%s not in [%s, %s)", v, lo, hi)
	}
	return nil
}
