// Package bits stores and slices bit sequences for the field codec.
//
// A Buffer is always LSB-first: index 0 is the least significant bit of the
// first byte. Consecutive sub-byte fields therefore concatenate by append
// without any reshuffling, and a Buffer converts back to bytes by packing
// eight bits per byte with the tail zero-padded.
//
// Presentation goes the other way. MSB returns the most-significant-first view
// so that 0x1B renders as 00011011.
package bits

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// ErrShortBuffer is returned when a slice asks for more bits than are present.
var ErrShortBuffer = errors.New("bits: buffer too short")

// Buffer is an LSB-first sequence of bits.
type Buffer []bool

// New returns a zeroed buffer of n bits.
func New(n int) Buffer {
	if n < 0 {
		n = 0
	}
	return make(Buffer, n)
}

// FromBytes builds an LSB-first buffer from bs. When bitCount is negative the
// whole input is used; otherwise the result is truncated or zero-padded to
// exactly bitCount bits.
func FromBytes(bs []byte, bitCount int) Buffer {
	total := len(bs) * 8
	if bitCount < 0 {
		bitCount = total
	}
	n := min(bitCount, total)

	out := make(Buffer, 0, bitCount)
	stream := kaitai.NewStream(bytes.NewReader(bs))
	for n > 0 {
		chunk := min(n, 32)
		v, err := stream.ReadBitsIntLe(chunk)
		if err != nil {
			// The stream is sized from bs, so a short read means a runtime bug.
			panic(fmt.Sprintf("bits: reading %d bits: %v", chunk, err))
		}
		for i := 0; i < chunk; i++ {
			out = append(out, v&(1<<uint(i)) != 0)
		}
		n -= chunk
	}
	for len(out) < bitCount {
		out = append(out, false)
	}
	return out
}

// Parse reads an LSB-first buffer of n bits from r.
func Parse(r io.Reader, n int) (Buffer, error) {
	need := (n + 7) / 8
	buf := make([]byte, need)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading %d bytes: %w", need, err)
	}
	return FromBytes(buf, n), nil
}

// Bytes packs the buffer into bytes, zero-padding the final partial byte.
func (b Buffer) Bytes() []byte {
	out := make([]byte, (len(b)+7)/8)
	for i, bit := range b {
		if bit {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// ToBytes is the package-level form of Buffer.Bytes.
func ToBytes(b Buffer) []byte {
	return b.Bytes()
}

// Len returns the number of bits.
func (b Buffer) Len() int {
	return len(b)
}

// ByteAligned reports whether the length is a whole number of bytes.
func (b Buffer) ByteAligned() bool {
	return len(b)%8 == 0
}

// Slice splits off the first n bits. The returned slices do not share
// storage with b.
func (b Buffer) Slice(n int) (head, rest Buffer, err error) {
	if n < 0 {
		return nil, b, fmt.Errorf("bits: negative slice length %d", n)
	}
	if n > len(b) {
		return nil, b, fmt.Errorf("%w: want %d bits, have %d", ErrShortBuffer, n, len(b))
	}
	head = append(Buffer(nil), b[:n]...)
	rest = append(Buffer(nil), b[n:]...)
	return head, rest, nil
}

// Resize returns a copy of b truncated or zero-padded at the tail to n bits.
func (b Buffer) Resize(n int) Buffer {
	out := make(Buffer, n)
	copy(out, b)
	return out
}

// Clone returns an independent copy.
func (b Buffer) Clone() Buffer {
	if b == nil {
		return nil
	}
	return append(Buffer(nil), b...)
}

// Equal reports whether both buffers hold the same bits.
func (b Buffer) Equal(o Buffer) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// MSB returns the most-significant-first view of the buffer, left-truncated to
// bitCount bits. A negative bitCount keeps every bit.
func (b Buffer) MSB(bitCount int) Buffer {
	src := b
	if bitCount >= 0 && bitCount < len(src) {
		src = src[:bitCount]
	}
	out := make(Buffer, len(src))
	for i, bit := range src {
		out[len(src)-1-i] = bit
	}
	return out
}

// String renders the MSB-first view as a string of 0s and 1s.
func (b Buffer) String() string {
	var sb strings.Builder
	for _, bit := range b.MSB(-1) {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Concat joins buffers in order.
func Concat(parts ...Buffer) Buffer {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(Buffer, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
