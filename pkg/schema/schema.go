// Package schema compiles YAML message definitions into field trees.
//
// A document names its root sequence, optional enums, flag sets and nested
// types:
//
//	meta:
//	  id: read_coils_response
//	  endian: le
//	enums:
//	  function:
//	    1: ReadCoils
//	seq:
//	  - id: DeviceId
//	    type: u8
//	  - id: Function
//	    type: u8
//	    enum: function
//	  - id: ByteCount
//	    type: u8
//	  - id: Coils
//	    type: bool
//	    repeat-expr: ByteCount
//	    coils: true
//	  - id: CRC
//	    type: crc
//	    algorithm: crc16-modbus
package schema

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Schema is a decoded message definition.
type Schema struct {
	Meta  Meta                `yaml:"meta"`
	Doc   string              `yaml:"doc"`
	Enums map[string]EnumDef  `yaml:"enums"`
	Flags map[string]FlagsDef `yaml:"flags"`
	Types map[string]Type     `yaml:"types"`
	Seq   []SequenceItem      `yaml:"seq"`

	logger *slog.Logger
}

// Meta identifies the document and sets defaults for its fields.
type Meta struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Endian string `yaml:"endian"`
}

// EnumDef maps codes to variant names.
type EnumDef map[uint64]string

// FlagsDef maps bit positions to flag names.
type FlagsDef map[int]string

// Type is a named structure, compiled into a dict.
type Type struct {
	Doc string         `yaml:"doc"`
	Seq []SequenceItem `yaml:"seq"`
}

// SequenceItem declares one field.
type SequenceItem struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Doc  string `yaml:"doc,omitempty"`

	Endian string `yaml:"endian,omitempty"`
	Format string `yaml:"format,omitempty"`
	Enum   string `yaml:"enum,omitempty"`
	Flags  string `yaml:"flags,omitempty"`

	// Size is the byte count of str and bytes: an integer, the name of a
	// preceding integer field, or an expression over preceding fields.
	Size any `yaml:"size,omitempty"`
	// RepeatExpr turns the field into an array; it takes the same forms as
	// Size.
	RepeatExpr any  `yaml:"repeat-expr,omitempty"`
	Coils      bool `yaml:"coils,omitempty"`
	Pad        any  `yaml:"pad,omitempty"`

	Algorithm string  `yaml:"algorithm,omitempty"`
	CRC       *CRCDef `yaml:"crc,omitempty"`

	Items   []SequenceItem `yaml:"items,omitempty"`
	Default any            `yaml:"default,omitempty"`
	Valid   string         `yaml:"valid,omitempty"`
}

// CRCDef is a custom CRC parameter set for type crc.
type CRCDef struct {
	Width  int    `yaml:"width"`
	Poly   uint64 `yaml:"poly"`
	Init   uint64 `yaml:"init"`
	XorOut uint64 `yaml:"xor-out"`
	RefIn  bool   `yaml:"ref-in"`
	RefOut bool   `yaml:"ref-out"`
}

// Option configures compilation.
type Option func(*Schema)

// WithLogger sets the logger used while compiling and building trees.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Schema) {
		s.logger = logger
	}
}

// Compile decodes a YAML document and checks that its root and every type
// build.
func Compile(data []byte, opts ...Option) (*Schema, error) {
	s := &Schema{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	s.logger.Debug("Compiled schema", "id", s.Meta.ID, "types", len(s.Types), "fields", len(s.Seq))
	return s, nil
}

// Load reads and compiles a schema file.
func Load(path string, opts ...Option) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Compile(data, opts...)
}

// check builds every type once so that errors surface at load time.
func (s *Schema) check() error {
	if len(s.Seq) == 0 {
		return fmt.Errorf("schema %q has no seq", s.Meta.ID)
	}
	if _, err := s.New(""); err != nil {
		return err
	}
	for name := range s.Types {
		if _, err := s.New(name); err != nil {
			return err
		}
	}
	return nil
}

// TypeNames returns the root ID followed by the declared type names in
// sorted order.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{s.Meta.ID}, names...)
}
