// Package bitwire provides a high-level API for parsing and serializing
// bit-level binary messages described by YAML schemas.
//
// # Overview
//
// The package loads schemas with pkg/schema, builds a fresh field tree per
// message and converts between wire bytes, Go maps and JSON. It supports:
//
//   - Binary data parsing to Go maps
//   - JSON serialization and deserialization
//   - Checksum recomputation when serializing
//   - Validation of field predicates and checksums
//   - Schema caching with expiry
//
// # Quick Start
//
//	data := []byte{0x11, 0x01, 0x00, 0x13, 0x00, 0x25, 0x0E, 0x84}
//	result, err := bitwire.ParseBinary(data, "modbus_rtu_request.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result["Function"]) // ReadCoils
//
// # JSON Support
//
//	jsonData, err := bitwire.SerializeToJSON(data, "modbus_rtu_request.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Edit the JSON, then convert back, recomputing the CRC
//	frame, err := bitwire.SerializeFromJSON(jsonData, "modbus_rtu_request.yaml",
//	    bitwire.WithChecksumUpdate(true))
//
// # Custom Parser Instance
//
//	parser := bitwire.NewParser(
//	    bitwire.WithCaching(time.Hour),
//	    bitwire.WithLogger(logger),
//	    bitwire.WithVerify(true),
//	)
//	result, err := parser.ParseBinary(ctx, data, "schema.yaml")
//
// Values in the result maps follow field.Export: integers are uint64 or
// int64, known enum variants are names, flag sets are name lists and raw
// bytes are uppercase hex strings.
package bitwire
