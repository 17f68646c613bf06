package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/twinfer/bitwire/pkg/bits"
	"github.com/twinfer/bitwire/pkg/field"
)

var (
	intType    = regexp.MustCompile(`^([us])([0-9]+)$`)
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

var algorithms = map[string]field.Algorithm{
	"crc8":         field.CRC8,
	"crc16-modbus": field.CRC16Modbus,
	"crc16-ccitt":  field.CRC16CCITT,
	"crc16-xmodem": field.CRC16XModem,
	"crc16-kermit": field.CRC16Kermit,
	"crc32":        field.CRC32,
	"lrc":          field.LRC,
}

// builder tracks the types being expanded to reject recursive definitions.
type builder struct {
	schema *Schema
	stack  []string
}

// New builds a fresh tree for typeName. An empty name or the meta ID selects
// the root sequence.
func (s *Schema) New(typeName string) (*field.Dict, error) {
	b := &builder{schema: s}
	if typeName == "" || typeName == s.Meta.ID {
		name := s.Meta.ID
		if name == "" {
			name = "root"
		}
		return b.dict(name, name, s.Seq)
	}
	if _, ok := s.Types[typeName]; !ok {
		return nil, fmt.Errorf("unknown type %q", typeName)
	}
	return b.named(typeName, typeName)
}

func (b *builder) named(name, typeName string) (*field.Dict, error) {
	for _, t := range b.stack {
		if t == typeName {
			return nil, fmt.Errorf("recursive type %q (%s)", typeName, strings.Join(append(b.stack, typeName), " -> "))
		}
	}
	b.stack = append(b.stack, typeName)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()
	return b.dict(name, typeName, b.schema.Types[typeName].Seq)
}

func (b *builder) dict(name, typeName string, seq []SequenceItem) (*field.Dict, error) {
	d := field.NewDict(name)
	seen := make(map[string]bool, len(seq))
	for _, item := range seq {
		if item.ID == "" {
			return nil, fmt.Errorf("type %q: field without id", typeName)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("type %q: duplicate field %q", typeName, item.ID)
		}
		seen[item.ID] = true

		f, err := b.item(item)
		if err != nil {
			return nil, fmt.Errorf("type %q field %q: %w", typeName, item.ID, err)
		}
		if err := d.Append(f); err != nil {
			return nil, err
		}
	}
	// defaults go in after the siblings exist so counts can follow
	for _, item := range seq {
		if item.Default == nil {
			continue
		}
		if err := d.Get(item.ID).SetValue(item.Default); err != nil {
			return nil, fmt.Errorf("type %q field %q: default: %w", typeName, item.ID, err)
		}
	}
	return d, nil
}

func (b *builder) item(item SequenceItem) (field.Field, error) {
	if item.RepeatExpr == nil {
		return b.single(item.ID, item)
	}
	count, err := countOf(item.RepeatExpr)
	if err != nil {
		return nil, fmt.Errorf("repeat-expr: %w", err)
	}
	// build one element up front so type errors are reported here
	if _, err := b.single("#0", item); err != nil {
		return nil, err
	}
	elem := func(name string) field.Field {
		f, err := b.single(name, item)
		if err != nil {
			// checked above
			panic(err)
		}
		return f
	}
	opts, err := b.options(item)
	if err != nil {
		return nil, err
	}
	if item.Coils {
		opts = append(opts, field.WithCoils())
	}
	if item.Valid != "" {
		opts = append(opts, field.WithValidation(item.Valid))
	}
	return field.NewArray(item.ID, count, elem, opts...), nil
}

func (b *builder) single(name string, item SequenceItem) (field.Field, error) {
	opts, err := b.options(item)
	if err != nil {
		return nil, err
	}
	if item.RepeatExpr == nil && item.Valid != "" {
		opts = append(opts, field.WithValidation(item.Valid))
	}

	switch t := item.Type; {
	case t == "bool" || t == "b1":
		return field.NewBool(name, opts...), nil
	case t == "f4":
		return field.NewFloat32(name, opts...), nil
	case t == "f8":
		return field.NewFloat64(name, opts...), nil
	case t == "char":
		return field.NewChar(name, opts...), nil
	case t == "byte":
		return field.NewByte(name, opts...), nil
	case t == "str" || t == "bytes":
		if item.Size == nil {
			return nil, fmt.Errorf("type %s needs a size", t)
		}
		count, err := countOf(item.Size)
		if err != nil {
			return nil, fmt.Errorf("size: %w", err)
		}
		if t == "str" {
			return field.NewString(name, count, opts...), nil
		}
		return field.NewBytes(name, count, opts...), nil
	case t == "crc" || t == "lrc":
		algo, err := algorithmOf(item)
		if err != nil {
			return nil, err
		}
		return field.NewChecksum(name, algo, opts...), nil
	case t == "list":
		l := field.NewList(name)
		d, err := b.dict(name, name, item.Items)
		if err != nil {
			return nil, err
		}
		for _, c := range d.Children() {
			l.Append(c)
		}
		return l, nil
	case intType.MatchString(t):
		return intField(name, t, item, b.schema, opts)
	case t == "":
		return nil, fmt.Errorf("missing type")
	}

	if _, ok := b.schema.Types[item.Type]; !ok {
		return nil, fmt.Errorf("unknown type %q", item.Type)
	}
	d, err := b.named(name, item.Type)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func intField(name, t string, item SequenceItem, s *Schema, opts []field.Option) (field.Field, error) {
	m := intType.FindStringSubmatch(t)
	n, _ := strconv.Atoi(m[2])
	if n < 1 || n > 64 {
		return nil, fmt.Errorf("type %s: width must be 1-64 bits", t)
	}
	switch {
	case item.Enum != "":
		def, ok := s.Enums[item.Enum]
		if !ok {
			return nil, fmt.Errorf("unknown enum %q", item.Enum)
		}
		return field.NewEnum(name, n, field.VariantsFromMap(def), opts...), nil
	case item.Flags != "":
		def, ok := s.Flags[item.Flags]
		if !ok {
			return nil, fmt.Errorf("unknown flags %q", item.Flags)
		}
		flags := make([]field.Flag, 0, len(def))
		for bit, fname := range def {
			if bit < 0 || bit >= n {
				return nil, fmt.Errorf("flag %q bit %d does not fit %d bits", fname, bit, n)
			}
			flags = append(flags, field.Flag{Name: fname, Bit: bit})
		}
		sort.Slice(flags, func(i, j int) bool { return flags[i].Bit < flags[j].Bit })
		return field.NewFlags(name, n, flags, opts...), nil
	case m[1] == "s":
		return field.NewInt(name, n, opts...), nil
	}
	return field.NewUint(name, n, opts...), nil
}

func (b *builder) options(item SequenceItem) ([]field.Option, error) {
	endian := item.Endian
	if endian == "" {
		endian = b.schema.Meta.Endian
	}
	e, err := bits.ParseEndian(endian)
	if err != nil {
		return nil, err
	}
	opts := []field.Option{field.WithEndian(e)}
	if item.Format != "" {
		opts = append(opts, field.WithFormat(item.Format))
	}
	if item.Pad != nil {
		pad, err := padOf(item.Pad)
		if err != nil {
			return nil, err
		}
		opts = append(opts, field.WithPad(pad))
	}
	return opts, nil
}

// countOf maps an integer to Const, an identifier to Ref and anything else
// to a CEL expression.
func countOf(v any) (field.Count, error) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return nil, fmt.Errorf("negative count %d", x)
		}
		return field.Const(x), nil
	case string:
		x = strings.TrimSpace(x)
		if identifier.MatchString(x) {
			return field.Ref(x), nil
		}
		if x == "" {
			return nil, fmt.Errorf("empty count")
		}
		return field.CountExpr(x), nil
	}
	return nil, fmt.Errorf("count must be an integer or an expression, got %T", v)
}

func padOf(v any) (byte, error) {
	switch x := v.(type) {
	case int:
		if x < 0 || x > 255 {
			return 0, fmt.Errorf("pad %d is not a byte", x)
		}
		return byte(x), nil
	case string:
		if len(x) == 1 {
			return x[0], nil
		}
	}
	return 0, fmt.Errorf("pad must be a byte or a single character, got %v", v)
}

func algorithmOf(item SequenceItem) (field.Algorithm, error) {
	if item.Type == "lrc" {
		return field.LRC, nil
	}
	if item.CRC != nil {
		c := item.CRC
		if c.Width < 1 || c.Width > 64 {
			return nil, fmt.Errorf("crc width must be 1-64 bits, got %d", c.Width)
		}
		return field.CRC{
			Name: "custom", Width: c.Width, Poly: c.Poly, Init: c.Init,
			XorOut: c.XorOut, RefIn: c.RefIn, RefOut: c.RefOut,
		}, nil
	}
	name := strings.ToLower(item.Algorithm)
	if name == "" {
		name = "crc16-modbus"
	}
	algo, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("unknown checksum algorithm %q", item.Algorithm)
	}
	return algo, nil
}
