package bits

import (
	"fmt"
	"strings"
)

// Endian is the byte order used to read a multi-byte scalar out of a buffer.
// It never changes the bit order within a byte, which is always LSB-first.
type Endian int

const (
	Little Endian = iota
	Big
)

func (e Endian) String() string {
	if e == Big {
		return "big"
	}
	return "little"
}

// ParseEndian accepts "le", "little", "be" and "big" in any case.
func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "le", "little":
		return Little, nil
	case "be", "big":
		return Big, nil
	}
	return Little, fmt.Errorf("unknown endian %q", s)
}

// Uint interprets b as an unsigned integer in the given byte order.
//
// Little endian weighs bit i as 2^i, which is the same as zero-padding the
// tail to a byte boundary and reading the bytes low byte first. Big endian
// reads whole bytes most significant first; a trailing partial byte holds the
// lowest bits of the value. Buffers longer than 64 bits keep the low 64.
func Uint(b Buffer, e Endian) uint64 {
	if e == Little || len(b) <= 8 {
		var v uint64
		for i, bit := range b {
			if bit && i < 64 {
				v |= 1 << uint(i)
			}
		}
		return v
	}

	var v uint64
	full := len(b) / 8
	for k := 0; k < full; k++ {
		v = v<<8 | uint64(byteAt(b, k*8, 8))
	}
	if rem := len(b) % 8; rem > 0 {
		v = v<<uint(rem) | uint64(byteAt(b, full*8, rem))
	}
	return v
}

// FromUint encodes v into n bits using the given byte order. Bits of v above
// n are dropped.
func FromUint(v uint64, n int, e Endian) Buffer {
	out := make(Buffer, n)
	if e == Little || n <= 8 {
		for i := 0; i < n && i < 64; i++ {
			out[i] = v&(1<<uint(i)) != 0
		}
		return out
	}

	full := n / 8
	rem := n % 8
	if rem > 0 {
		putByte(out, full*8, rem, byte(v&(1<<uint(rem)-1)))
		v >>= uint(rem)
	}
	for k := full - 1; k >= 0; k-- {
		putByte(out, k*8, 8, byte(v))
		v >>= 8
	}
	return out
}

// Int interprets b as an n-bit two's complement integer in the given order.
func Int(b Buffer, e Endian) int64 {
	n := len(b)
	u := Uint(b, e)
	if n == 0 || n >= 64 {
		return int64(u)
	}
	if u&(1<<uint(n-1)) != 0 {
		return int64(u) - int64(1)<<uint(n)
	}
	return int64(u)
}

// FromInt encodes v as an n-bit two's complement integer.
func FromInt(v int64, n int, e Endian) Buffer {
	u := uint64(v)
	if n < 64 {
		u &= 1<<uint(n) - 1
	}
	return FromUint(u, n, e)
}

func byteAt(b Buffer, off, width int) byte {
	var v byte
	for i := 0; i < width; i++ {
		if b[off+i] {
			v |= 1 << uint(i)
		}
	}
	return v
}

func putByte(b Buffer, off, width int, v byte) {
	for i := 0; i < width; i++ {
		b[off+i] = v&(1<<uint(i)) != 0
	}
}
