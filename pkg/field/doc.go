// Package field is the composition and bit-level codec kernel.
//
// A message is a tree of named Field nodes. Every node can consume a prefix
// of an LSB-first bit buffer (Parse) and yield its current bits (Bits). Leaves
// own their bits; containers (Dict, List, Array) own their children and report
// the concatenation of the children's bits, so assigning a leaf's value is
// immediately visible in every ancestor's byte view.
//
// Leaf kinds:
//
//   - Int: unsigned or two's complement signed integers of 1..64 bits
//   - Bool: a single bit
//   - Float: IEEE 754 single or double precision
//   - String, Char: Latin-1 text of a fixed or count-sourced length
//   - Bytes, Byte: raw bytes of a fixed or count-sourced length
//   - Enum: an unsigned integer projected onto named Variants
//   - Flags: an unsigned integer projected onto named single-bit flags
//   - Checksum: a CRC or LRC computed over the bytes of its parent
//
// Byte order is a per-field property (WithEndian) that only affects how a
// field's bits are read as a multi-byte scalar. Bit order within a byte is
// always LSB-first.
//
// A tree is not safe for concurrent mutation; callers serialize access.
//
// Example, a Modbus RTU read coils request:
//
//	functions := field.NewVariants(
//	    field.Variant{Name: "ReadCoils", Code: 1},
//	    field.Variant{Name: "ReadDiscreteInputs", Code: 2},
//	)
//	frame := field.NewDict("ReadCoils",
//	    field.NewUint("DeviceId", 8),
//	    field.NewEnum("Function", 8, functions),
//	    field.NewUint("Address", 16),
//	    field.NewUint("Count", 16),
//	    field.NewChecksum("CRC", field.CRC16Modbus),
//	)
//	rest, err := field.ParseBytes(frame, raw)
package field
