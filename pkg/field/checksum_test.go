package field

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/bitwire/pkg/bits"
)

func TestCRCCheckValues(t *testing.T) {
	check := []byte("123456789")
	tests := []struct {
		algo Algorithm
		want uint64
	}{
		{CRC8, 0xF4},
		{CRC16Modbus, 0x4B37},
		{CRC16CCITT, 0x29B1},
		{CRC16XModem, 0x31C3},
		{CRC16Kermit, 0x2189},
		{CRC32, 0xCBF43926},
		{LRC, 0x23},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.algo), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.algo.Sum(check))
		})
	}
}

func TestCRCEmptyInput(t *testing.T) {
	assert.Equal(t, uint64(0xFFFF), CRC16Modbus.Sum(nil))
	assert.Equal(t, uint64(0), CRC32.Sum(nil))
}

func rtuRequest(crc uint64) *Dict {
	return NewDict("ReadCoils",
		NewUint("DeviceId", 8, WithDefault(0x11), WithFormat("0x%02X")),
		NewEnum("Function", 8, modbusFunctions(), WithDefault("ReadCoils")),
		NewUint("Address", 16, WithDefault(0x0013), WithEndian(bits.Big)),
		NewUint("Count", 16, WithDefault(0x0025), WithEndian(bits.Big)),
		NewChecksum("CRC", CRC16Modbus, WithDefault(crc)),
	)
}

func TestChecksumUpdate(t *testing.T) {
	req := rtuRequest(0)
	crc := req.MustGet("CRC").(*Checksum)
	assert.ErrorIs(t, crc.Verify(), ErrChecksumMismatch)

	v, b, lsb := crc.Update()
	assert.Equal(t, uint64(0x840E), v)
	assert.Equal(t, []byte{0x0E, 0x84}, b)
	assert.Equal(t, bits.FromBytes([]byte{0x0E, 0x84}, -1), lsb)
	assert.Equal(t, "CRC: 0x840E", crc.String())
	assert.Equal(t, "1101001300250E84", Hex(req))
	require.NoError(t, crc.Verify())

	data := BytesOf(req)
	assert.Equal(t, crc.Value(), CRC16Modbus.Sum(data[:len(data)-2]))
}

func TestChecksumWithoutParent(t *testing.T) {
	c := NewChecksum("CRC", CRC16Modbus)
	v, _, _ := c.Update()
	assert.Equal(t, uint64(0xFFFF), v)
}

func TestChecksumParseDoesNotVerify(t *testing.T) {
	req := rtuRequest(0)
	_, err := req.Parse(bits.FromBytes([]byte{0x11, 0x01, 0x00, 0x13, 0x00, 0x25, 0xFF, 0xFF}, -1))
	require.NoError(t, err)
	crc := req.MustGet("CRC").(*Checksum)
	assert.Equal(t, uint64(0xFFFF), crc.Value())
	assert.Equal(t, uint64(0x840E), crc.Compute())

	err = crc.Verify()
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Contains(t, err.Error(), "ReadCoils.CRC")
}

func TestChecksumLRC(t *testing.T) {
	frame := NewDict("frame",
		NewBytes("Body", Const(3), WithDefault([]byte{0x01, 0x03, 0x05})),
		NewChecksum("LRC", LRC),
	)
	v, _, _ := frame.MustGet("LRC").(*Checksum).Update()
	assert.Equal(t, uint64(0xF7), v)
	assert.Equal(t, "010305F7", Hex(frame))
}

func TestChecksumSetValue(t *testing.T) {
	c := NewChecksum("c", CRC8)
	assert.ErrorIs(t, c.SetValue(0x100), ErrOverflow)
	assert.ErrorIs(t, c.SetValue("x"), ErrType)
	require.NoError(t, c.SetValue(0xAB))
	assert.Equal(t, "c: 0xAB", c.String())
	assert.Equal(t, "Checksum", c.TypeName())
}

func TestUpdateChecksums(t *testing.T) {
	outer := NewDict("outer",
		rtuRequest(0),
		NewChecksum("Sum", LRC),
	)
	assert.Equal(t, 2, UpdateChecksums(outer))
	require.NoError(t, Validate(outer))
	inner, ok := Find(outer, "ReadCoils.CRC")
	require.True(t, ok)
	assert.Equal(t, uint64(0x840E), inner.Value())
}

func TestCRCSumRejectsBadWidth(t *testing.T) {
	for _, w := range []int{0, -1, 65} {
		assert.PanicsWithValue(t, fmt.Sprintf("CRC: width %d outside 1..64", w), func() {
			CRC{Width: w}.Sum([]byte("123456789"))
		})
	}
}
