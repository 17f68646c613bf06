package field

import (
	"fmt"
	"sort"

	"github.com/twinfer/bitwire/pkg/bits"
)

// Checksum holds a value computed over the bytes of its parent. Parse stores
// the bits verbatim; Update and Verify are explicit.
type Checksum struct {
	leaf
	algo Algorithm
}

// NewChecksum creates a checksum field as wide as algo. Place it last in its
// parent: the input is the parent's bytes without the checksum's own trailing
// width/8 bytes.
func NewChecksum(name string, algo Algorithm, opts ...Option) *Checksum {
	n := algo.Size()
	checkWidth("checksum", n)
	o := collect(opts)
	c := &Checksum{leaf: newLeaf(name, n, fmt.Sprintf("0x%%0%dX", (n+3)/4)), algo: algo}
	c.apply(o)
	seed(c, o)
	return c
}

func (c *Checksum) TypeName() string { return "Checksum" }

// Algorithm returns the configured algorithm.
func (c *Checksum) Algorithm() Algorithm { return c.algo }

func (c *Checksum) Parse(in bits.Buffer) (bits.Buffer, error) {
	return c.take(c, in)
}

func (c *Checksum) SetBits(b bits.Buffer) error {
	c.setBits(b)
	return nil
}

// Uint64 returns the stored checksum.
func (c *Checksum) Uint64() uint64 { return bits.Uint(c.bits, c.endian) }

func (c *Checksum) Value() any { return c.Uint64() }

func (c *Checksum) SetValue(v any) error {
	n, err := toBigInt(v)
	if err != nil {
		return newError(c, "set", ErrType, "%v", err)
	}
	if err := checkRange(n, c.width, false); err != nil {
		return newError(c, "set", ErrOverflow, "%v", err)
	}
	c.bits = bits.FromUint(n.Uint64(), c.width, c.endian)
	return nil
}

// input returns the parent's bytes minus the trailing placeholder. Without a
// parent the input is empty.
func (c *Checksum) input() []byte {
	p := c.Parent()
	if p == nil {
		return nil
	}
	data := p.Bits().Bytes()
	return data[:max(0, len(data)-c.width/8)]
}

// Compute returns the checksum of the current input without storing it.
func (c *Checksum) Compute() uint64 {
	return c.algo.Sum(c.input())
}

// Update computes the checksum, stores it in the field's byte order and
// returns it as an integer, as bytes and as LSB-first bits.
func (c *Checksum) Update() (uint64, []byte, bits.Buffer) {
	v := c.Compute()
	c.bits = bits.FromUint(v, c.width, c.endian)
	return v, c.bits.Bytes(), c.bits.Clone()
}

// Verify compares the stored value against a fresh computation.
func (c *Checksum) Verify() error {
	want := c.Compute()
	if got := c.Uint64(); got != want {
		return newError(c, "verify", ErrChecksumMismatch, "stored "+c.format+", computed "+c.format, got, want)
	}
	return nil
}

func (c *Checksum) StringValue() string { return fmt.Sprintf(c.format, c.Uint64()) }
func (c *Checksum) String() string      { return describe(c) }

// UpdateChecksums recomputes every checksum under root, deepest first so
// that enclosing checksums see the updated inner values. It returns how many
// were updated.
func UpdateChecksums(root Field) int {
	type entry struct {
		c     *Checksum
		depth int
	}
	var found []entry
	_ = Walk(root, func(f Field, depth int) error {
		if c, ok := f.(*Checksum); ok {
			found = append(found, entry{c, depth})
		}
		return nil
	})
	sort.SliceStable(found, func(i, j int) bool { return found[i].depth > found[j].depth })
	for _, e := range found {
		e.c.Update()
	}
	return len(found)
}
