package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/bitwire/pkg/bits"
	"github.com/twinfer/bitwire/pkg/field"
	"github.com/twinfer/bitwire/testutil"
)

func load(t *testing.T, name string) *Schema {
	t.Helper()
	s, err := Load(filepath.Join("..", "..", "testdata", "schemas", name))
	require.NoError(t, err)
	return s
}

func parse(t *testing.T, s *Schema, root, hexData string) *field.Dict {
	t.Helper()
	tree, err := s.New(root)
	require.NoError(t, err)
	rest, err := tree.Parse(bits.FromBytes(testutil.MustHex(t, hexData), -1))
	require.NoError(t, err)
	assert.Empty(t, rest)
	return tree
}

func TestModbusRTURequest(t *testing.T) {
	s := load(t, "modbus_rtu_request.yaml")
	tree := parse(t, s, "", "11 01 00 13 00 25 0E 84")

	assert.Equal(t, "read_coils_request", tree.Name())
	assert.Equal(t, map[string]any{
		"DeviceId": uint64(0x11),
		"Function": "ReadCoils",
		"Address":  uint64(0x1300),
		"Count":    uint64(0x2500),
		"CRC":      uint64(0x840E),
	}, field.Export(tree))
	assert.Equal(t, "0x11", tree.MustGet("DeviceId").StringValue())
	assert.NoError(t, field.Validate(tree))
}

func TestModbusCoils(t *testing.T) {
	s := load(t, "modbus_rtu_coils.yaml")
	tree := parse(t, s, "read_coils_response", "11 01 05 CD 6B B2 0E 1B 45 E6")

	coils := tree.MustGet("Coils").(*field.Array)
	assert.True(t, coils.Coils())
	assert.Equal(t, 40, coils.Len())
	assert.Equal(t, testutil.MustHex(t, "CD 6B B2 0E 1B"), field.BytesOf(coils))
}

func TestModbusTCP(t *testing.T) {
	s := load(t, "modbus_tcp.yaml")
	tree := parse(t, s, "", "00 01 00 00 00 06 0A 01 00 00 00 01")

	mbap, ok := field.Find(tree, "MBAP")
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"TransactionID": uint64(1),
		"ProtocolID":    uint64(0),
		"Length":        uint64(6),
		"UnitId":        uint64(10),
	}, field.Export(mbap))

	header, err := s.New("mbap")
	require.NoError(t, err)
	assert.Equal(t, 56, header.BitCount())
	assert.Equal(t, []string{"modbus_tcp_request", "mbap"}, s.TypeNames())
}

func TestSynchrophasorDefaults(t *testing.T) {
	s := load(t, "synchrophasor_sync.yaml")
	tree, err := s.New("")
	require.NoError(t, err)
	assert.Equal(t, "AA00", field.Hex(tree))

	tree = parse(t, s, "", "AA E1")
	ft := tree.MustGet("FrameType").(*field.Enum)
	_, known := ft.Variant()
	assert.False(t, known)
	assert.Equal(t, uint64(6), ft.Code())
	assert.Equal(t, true, tree.MustGet("Bit").Value())
}

func TestCompileFeatures(t *testing.T) {
	doc := `
meta:
  id: frame
  endian: be
flags:
  status:
    0: Ready
    7: Fault
types:
  record:
    seq:
      - id: Len
        type: u8
      - id: Data
        type: bytes
        size: Len
seq:
  - id: Status
    type: u8
    flags: status
  - id: Temp
    type: s16
    endian: le
  - id: Gain
    type: f4
  - id: Tag
    type: str
    size: 4
    pad: " "
    default: ab
  - id: N
    type: u8
  - id: Records
    type: record
    repeat-expr: N
  - id: Words
    type: u16
    repeat-expr: N * 2
  - id: Extra
    type: list
    items:
      - id: a
        type: u4
      - id: b
        type: u4
  - id: Sum
    type: lrc
`
	s, err := Compile([]byte(doc))
	require.NoError(t, err)
	tree, err := s.New("")
	require.NoError(t, err)

	require.NoError(t, tree.SetValue(map[string]any{
		"Status":  []any{"Fault"},
		"Temp":    -2,
		"Gain":    1.5,
		"Records": []any{map[string]any{"Len": 1, "Data": "AA"}},
		"Words":   []any{1, 2},
		"Extra":   []any{1, 2},
	}))
	field.UpdateChecksums(tree)

	assert.Equal(t, "80"+"FEFF"+"3FC00000"+"61622020"+"01"+"01AA"+"00010002"+"21", field.Hex(tree)[:len(field.Hex(tree))-2])
	require.NoError(t, field.Validate(tree))

	again, err := s.New("")
	require.NoError(t, err)
	_, err = again.Parse(tree.Bits())
	require.NoError(t, err)
	assert.Equal(t, field.Export(tree), field.Export(again))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no seq", "meta: {id: x}", "no seq"},
		{"unknown type", "seq: [{id: a, type: u99}]", "1-64"},
		{"unknown user type", "seq: [{id: a, type: nope}]", `unknown type "nope"`},
		{"missing size", "seq: [{id: a, type: str}]", "needs a size"},
		{"unknown enum", "seq: [{id: a, type: u8, enum: nope}]", `unknown enum "nope"`},
		{"flag bit", "flags: {f: {9: High}}\nseq: [{id: a, type: u8, flags: f}]", "does not fit"},
		{"duplicate", "seq: [{id: a, type: u8}, {id: a, type: u8}]", "duplicate field"},
		{"recursive", "types: {t: {seq: [{id: x, type: t}]}}\nseq: [{id: a, type: t}]", "recursive type"},
		{"algorithm", "seq: [{id: c, type: crc, algorithm: md5}]", "unknown checksum algorithm"},
		{"endian", "meta: {endian: middle}\nseq: [{id: a, type: u8}]", "unknown endian"},
		{"bad default", "seq: [{id: a, type: u8, default: 300}]", "default"},
		{"yaml", "seq: [", "decoding schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCustomCRC(t *testing.T) {
	doc := `
seq:
  - id: Body
    type: bytes
    size: 9
    default: "313233343536373839"
  - id: CRC
    type: crc
    endian: be
    crc: {width: 16, poly: 0x1021, init: 0xFFFF}
`
	s, err := Compile([]byte(doc))
	require.NoError(t, err)
	tree, err := s.New("")
	require.NoError(t, err)
	field.UpdateChecksums(tree)
	assert.Equal(t, uint64(0x29B1), tree.MustGet("CRC").Value())
	assert.Equal(t, "29B1", field.Hex(tree.MustGet("CRC")))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
