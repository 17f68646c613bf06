package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/bitwire/pkg/bits"
)

func u16(name string) Field { return NewUint(name, 16, WithEndian(bits.Big)) }

func TestArrayConst(t *testing.T) {
	a := NewArray("regs", Const(3), u16)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 48, a.BitCount())
	assert.Equal(t, "#2", a.At(2).Name())
	assert.Same(t, a, a.At(0).Parent())

	rest, err := a.Parse(bits.FromBytes([]byte{0, 1, 0, 2, 0, 3, 9}, -1))
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, a.Value())
	assert.Equal(t, []byte{9}, rest.Bytes())
	assert.Equal(t, "regs.#1", Chain(a.At(1)))

	require.NoError(t, a.SetValue([]any{4, 5, 6}))
	assert.Equal(t, []byte{0, 4, 0, 5, 0, 6}, BytesOf(a))
	assert.ErrorIs(t, a.SetValue([]any{1, 2}), ErrStructural)
	assert.Equal(t, 3, a.Len())
	assert.ErrorIs(t, a.SetValue("x"), ErrType)
}

func TestArrayRefCount(t *testing.T) {
	msg := NewDict("msg",
		NewUint("Count", 8),
		NewArray("Values", Ref("Count"), u16),
	)
	_, err := msg.Parse(bits.FromBytes([]byte{2, 0x12, 0x34, 0x56, 0x78}, -1))
	require.NoError(t, err)

	arr := msg.MustGet("Values").(*Array)
	assert.Equal(t, []any{uint64(0x1234), uint64(0x5678)}, arr.Value())
	assert.Equal(t, -1, arr.BitCount())

	require.NoError(t, arr.SetValue([]any{1, 2, 3}))
	assert.Equal(t, uint64(3), msg.MustGet("Count").Value())
	assert.Equal(t, []byte{3, 0, 1, 0, 2, 0, 3}, BytesOf(msg))

	// the array and its count are untouched when an element rejects its value
	assert.ErrorIs(t, arr.SetValue([]any{1, 2, 3, 4, 0x10000}), ErrOverflow)
	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, uint64(3), msg.MustGet("Count").Value())

	require.NoError(t, arr.Resize(1))
	assert.Equal(t, uint64(1), msg.MustGet("Count").Value())
	assert.Equal(t, []any{uint64(1)}, arr.Value())
}

func TestArrayRefCountErrors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		msg := NewDict("msg", NewArray("Values", Ref("Count"), u16))
		_, err := msg.Parse(bits.FromBytes([]byte{1, 2}, -1))
		assert.ErrorIs(t, err, ErrStructural)
	})

	t.Run("source declared after", func(t *testing.T) {
		msg := NewDict("msg", NewArray("Values", Ref("Count"), u16), NewUint("Count", 8))
		_, err := msg.Parse(bits.FromBytes([]byte{1, 2, 3}, -1))
		require.ErrorIs(t, err, ErrStructural)
		assert.Contains(t, err.Error(), "declared after")
	})

	t.Run("no parent", func(t *testing.T) {
		_, err := NewArray("Values", Ref("Count"), u16).Parse(bits.New(16))
		assert.ErrorIs(t, err, ErrStructural)
	})

	t.Run("not an integer", func(t *testing.T) {
		msg := NewDict("msg", NewString("Count", Const(1)), NewArray("Values", Ref("Count"), u16))
		_, err := msg.Parse(bits.FromBytes([]byte{'a', 0, 0}, -1))
		assert.ErrorIs(t, err, ErrStructural)
	})

	t.Run("negative", func(t *testing.T) {
		msg := NewDict("msg", NewInt("Count", 8), NewArray("Values", Ref("Count"), u16))
		_, err := msg.Parse(bits.FromBytes([]byte{0xFF}, -1))
		assert.ErrorIs(t, err, ErrStructural)
	})

	t.Run("short input keeps elements", func(t *testing.T) {
		msg := NewDict("msg", NewUint("Count", 8), NewArray("Values", Ref("Count"), u16))
		_, err := msg.Parse(bits.FromBytes([]byte{1, 0, 7}, -1))
		require.NoError(t, err)
		_, err = msg.Parse(bits.FromBytes([]byte{2, 0, 1, 0}, -1))
		require.ErrorIs(t, err, ErrInsufficientData)
		assert.Equal(t, []any{uint64(7)}, msg.MustGet("Values").Value())
	})
}

func TestArrayCountExpr(t *testing.T) {
	msg := NewDict("msg",
		NewUint("Bytes", 8),
		NewArray("Words", CountExpr("Bytes / 2"), u16),
	)
	_, err := msg.Parse(bits.FromBytes([]byte{4, 0, 1, 0, 2}, -1))
	require.NoError(t, err)
	assert.Equal(t, 2, msg.MustGet("Words").(*Array).Len())

	msg = NewDict("msg", NewUint("Bytes", 8), NewArray("Words", CountExpr("Bytes +"), u16))
	_, err = msg.Parse(bits.FromBytes([]byte{4}, -1))
	assert.ErrorIs(t, err, ErrStructural)

	msg = NewDict("msg", NewUint("Bytes", 8), NewArray("Words", CountExpr("Bytes - 5"), u16))
	_, err = msg.Parse(bits.FromBytes([]byte{4}, -1))
	assert.ErrorIs(t, err, ErrStructural)
}

func TestCoils(t *testing.T) {
	msg := NewDict("msg",
		NewUint("ByteCount", 8),
		NewCoils("Coils", Ref("ByteCount")),
	)
	in := []byte{0x05, 0xCD, 0x6B, 0xB2, 0x0E, 0x1B}
	_, err := msg.Parse(bits.FromBytes(in, -1))
	require.NoError(t, err)

	coils := msg.MustGet("Coils").(*Array)
	require.Equal(t, 40, coils.Len())
	assert.True(t, coils.Coils())
	want := bits.FromBytes(in[1:], -1)
	for i := 0; i < 40; i++ {
		assert.Equal(t, want[i], coils.At(i).Value(), "coil %d", i)
	}
	assert.Equal(t, in[1:], BytesOf(coils))
	assert.Equal(t, in, BytesOf(msg))

	vals := make([]any, 16)
	for i := range vals {
		vals[i] = i%3 == 0
	}
	require.NoError(t, coils.SetValue(vals))
	assert.Equal(t, uint64(2), msg.MustGet("ByteCount").Value())
	assert.Equal(t, []byte{0x02, 0x49, 0x92}, BytesOf(msg))

	assert.ErrorIs(t, coils.SetValue(make([]any, 9)), ErrStructural)
}

func TestArrayConstCoils(t *testing.T) {
	a := NewCoils("c", Const(1))
	assert.Equal(t, 8, a.Len())
	assert.Equal(t, 8, a.BitCount())
}

func TestArrayRemoveChildRenumbers(t *testing.T) {
	a := NewArray("a", Const(3), u16)
	mid := a.At(1)
	assert.True(t, a.RemoveChild(mid))
	assert.Nil(t, mid.Parent())
	assert.Equal(t, "#1", a.At(1).Name())
	assert.Equal(t, 2, a.Len())
}

func TestArrayOfDicts(t *testing.T) {
	rec := func(name string) Field {
		return NewDict(name, NewUint("Len", 8), NewBytes("Data", Ref("Len")))
	}
	msg := NewDict("msg", NewUint("N", 8), NewArray("Records", Ref("N"), rec))
	_, err := msg.Parse(bits.FromBytes([]byte{2, 1, 0xAA, 2, 0xBB, 0xCC}, -1))
	require.NoError(t, err)

	recs := msg.MustGet("Records").(*Array)
	require.Equal(t, 2, recs.Len())
	f, ok := Find(msg, "Records.#1.Data")
	require.True(t, ok)
	assert.Equal(t, []byte{0xBB, 0xCC}, f.Value())
	assert.Equal(t, []byte{2, 1, 0xAA, 2, 0xBB, 0xCC}, BytesOf(msg))
}

func TestArrayCountExceedsInput(t *testing.T) {
	tests := []struct {
		name string
		arr  func() Field
	}{
		{"registers", func() Field { return NewArray("Values", Ref("Count"), u16) }},
		{"coils", func() Field { return NewCoils("Values", Ref("Count")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewDict("msg", NewUint("Count", 32, WithEndian(bits.Big)), tt.arr())
			_, err := msg.Parse(bits.FromBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xAA, 0xBB}, -1))
			require.ErrorIs(t, err, ErrInsufficientData)

			var ferr *Error
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, "msg.Values", ferr.Chain)
			assert.Equal(t, 0, msg.MustGet("Values").(*Array).Len())
		})
	}
}

func TestArrayVariableElementsStopAtFirstFailure(t *testing.T) {
	built := 0
	rec := func(name string) Field {
		built++
		return NewDict(name, NewUint("Len", 8), NewBytes("Data", Ref("Len")))
	}
	msg := NewDict("msg", NewUint("N", 32, WithEndian(bits.Big)), NewArray("Records", Ref("N"), rec))
	built = 0

	_, err := msg.Parse(bits.FromBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF, 1, 0xAA}, -1))
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, 2, built)
	assert.Equal(t, 0, msg.MustGet("Records").(*Array).Len())
}
