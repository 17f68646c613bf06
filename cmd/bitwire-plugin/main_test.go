package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

const rtuRequestSchema = `
meta:
  id: rtu_request
  endian: be
enums:
  function:
    3: read_holding_registers
    6: write_single_register
seq:
  - id: DeviceId
    type: u8
  - id: Function
    type: u8
    enum: function
  - id: Address
    type: u16
  - id: Count
    type: u16
  - id: Crc
    type: crc
    algorithm: crc16-modbus
    endian: le
`

func writeTempSchema(t *testing.T, content string) string {
	t.Helper()
	schemaFile := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(schemaFile, []byte(content), 0644))
	return schemaFile
}

func newTestProcessor(t *testing.T, yamlConf string) *BitwireProcessor {
	t.Helper()
	conf, err := bitwireProcessorConfig().ParseYAML(yamlConf, nil)
	require.NoError(t, err)
	proc, err := newBitwireProcessorFromConfig(conf, service.MockResources())
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Close(context.Background()) })
	return proc
}

// --- Tests ---

func TestProcessorParse(t *testing.T) {
	path := writeTempSchema(t, rtuRequestSchema)
	proc := newTestProcessor(t, fmt.Sprintf("schema_path: %s\nis_parser: true", path))

	raw := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87}
	batch, err := proc.Process(context.Background(), service.NewMessage(raw))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, batch[0].GetError())

	out, err := batch[0].AsStructured()
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok, "expected an object, got %T", out)
	assert.EqualValues(t, 0x11, m["DeviceId"])
	assert.Equal(t, "read_holding_registers", m["Function"])
	assert.EqualValues(t, 0x6B, m["Address"])
	assert.EqualValues(t, 3, m["Count"])
}

func TestProcessorParseErrors(t *testing.T) {
	path := writeTempSchema(t, rtuRequestSchema)
	proc := newTestProcessor(t, fmt.Sprintf("schema_path: %s\nis_parser: true", path))

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"truncated", []byte{0x11, 0x03, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := proc.Process(context.Background(), service.NewMessage(tt.raw))
			require.NoError(t, err)
			require.Len(t, batch, 1)
			assert.Error(t, batch[0].GetError())
		})
	}
}

func TestProcessorVerify(t *testing.T) {
	path := writeTempSchema(t, rtuRequestSchema)
	proc := newTestProcessor(t, fmt.Sprintf("schema_path: %s\nverify: true", path))

	// correct frame with the CRC bytes corrupted
	raw := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x00, 0x00}
	batch, err := proc.Process(context.Background(), service.NewMessage(raw))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.ErrorContains(t, batch[0].GetError(), "checksum")
}

func TestProcessorSerialize(t *testing.T) {
	path := writeTempSchema(t, rtuRequestSchema)
	proc := newTestProcessor(t, fmt.Sprintf("schema_path: %s\nis_parser: false\nupdate_checksums: true", path))

	msg := service.NewMessage(nil)
	msg.SetStructured(map[string]any{
		"DeviceId": 0x11,
		"Function": "read_holding_registers",
		"Address":  0x6B,
		"Count":    3,
	})
	msg.MetaSet("source", "test")

	batch, err := proc.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, batch[0].GetError())

	out, err := batch[0].AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87}, out)

	v, ok := batch[0].MetaGet("source")
	assert.True(t, ok)
	assert.Equal(t, "test", v)
}

func TestProcessorSerializeErrors(t *testing.T) {
	path := writeTempSchema(t, rtuRequestSchema)
	proc := newTestProcessor(t, fmt.Sprintf("schema_path: %s\nis_parser: false", path))

	t.Run("not an object", func(t *testing.T) {
		msg := service.NewMessage(nil)
		msg.SetStructured([]any{1, 2, 3})
		batch, err := proc.Process(context.Background(), msg)
		require.NoError(t, err)
		assert.ErrorContains(t, batch[0].GetError(), "must be an object")
	})

	t.Run("unknown variant", func(t *testing.T) {
		msg := service.NewMessage(nil)
		msg.SetStructured(map[string]any{"Function": "no_such_function"})
		batch, err := proc.Process(context.Background(), msg)
		require.NoError(t, err)
		assert.Error(t, batch[0].GetError())
	})
}

func TestProcessorConfigErrors(t *testing.T) {
	t.Run("missing schema", func(t *testing.T) {
		conf, err := bitwireProcessorConfig().ParseYAML("schema_path: /nonexistent/schema.yaml", nil)
		require.NoError(t, err)
		_, err = newBitwireProcessorFromConfig(conf, service.MockResources())
		assert.ErrorContains(t, err, "schema file not found")
	})

	t.Run("invalid schema", func(t *testing.T) {
		path := writeTempSchema(t, "meta:\n  id: broken\nseq:\n  - id: X\n    type: u99\n")
		conf, err := bitwireProcessorConfig().ParseYAML(fmt.Sprintf("schema_path: %s", path), nil)
		require.NoError(t, err)
		_, err = newBitwireProcessorFromConfig(conf, service.MockResources())
		assert.ErrorContains(t, err, "invalid schema")
	})
}
