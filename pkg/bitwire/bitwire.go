package bitwire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twinfer/bitwire/pkg/field"
	"github.com/twinfer/bitwire/pkg/schema"
)

// Parser loads schemas and converts messages, caching compiled schemas.
type Parser struct {
	schemaCache map[string]cacheEntry
	cacheMutex  sync.RWMutex
	logger      *slog.Logger
	options     options
}

type cacheEntry struct {
	schema   *schema.Schema
	loadedAt time.Time
}

// options holds configuration for the parser
type options struct {
	rootType        string
	logger          *slog.Logger
	enableCaching   bool
	cacheTimeout    time.Duration
	debugMode       bool
	updateChecksums bool
	verify          bool
}

// Option is a function that configures parser options
type Option func(*options)

// WithRootType sets the type to parse (defaults to the schema ID)
func WithRootType(rootType string) Option {
	return func(o *options) {
		o.rootType = rootType
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCaching enables schema caching; entries older than timeout are
// reloaded. A zero timeout never expires.
func WithCaching(timeout time.Duration) Option {
	return func(o *options) {
		o.enableCaching = true
		o.cacheTimeout = timeout
	}
}

// WithDebugMode enables debug logging
func WithDebugMode(enabled bool) Option {
	return func(o *options) {
		o.debugMode = enabled
	}
}

// WithChecksumUpdate recomputes every checksum before serializing.
func WithChecksumUpdate(enabled bool) Option {
	return func(o *options) {
		o.updateChecksums = enabled
	}
}

// WithVerify runs field predicates and checksum verification after parsing
// and before returning serialized bytes.
func WithVerify(enabled bool) Option {
	return func(o *options) {
		o.verify = enabled
	}
}

// defaultOptions returns the default configuration
func defaultOptions() options {
	return options{
		logger:        slog.Default(),
		enableCaching: true,
		cacheTimeout:  5 * time.Minute,
	}
}

// Global parser instance for convenience functions
var globalParser *Parser
var globalParserOnce sync.Once

// getGlobalParser returns a singleton parser instance
func getGlobalParser() *Parser {
	globalParserOnce.Do(func() {
		globalParser = NewParser()
	})
	return globalParser
}

// NewParser creates a new parser instance with the given options
func NewParser(opts ...Option) *Parser {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.debugMode {
		options.logger = options.logger.With("debug", true)
	}

	return &Parser{
		schemaCache: make(map[string]cacheEntry),
		logger:      options.logger,
		options:     options,
	}
}

// ParseBinary parses binary data using the specified schema
func ParseBinary(data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	return getGlobalParser().ParseBinary(context.Background(), data, schemaPath, opts...)
}

// ParseBinaryWithContext parses binary data using the specified schema with a context
func ParseBinaryWithContext(ctx context.Context, data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	return getGlobalParser().ParseBinary(ctx, data, schemaPath, opts...)
}

// SerializeToJSON parses binary data and converts it to JSON
func SerializeToJSON(data []byte, schemaPath string, opts ...Option) ([]byte, error) {
	return getGlobalParser().SerializeToJSON(context.Background(), data, schemaPath, opts...)
}

// SerializeFromJSON converts JSON data back to binary format
func SerializeFromJSON(jsonData []byte, schemaPath string, opts ...Option) ([]byte, error) {
	return getGlobalParser().SerializeFromJSON(context.Background(), jsonData, schemaPath, opts...)
}

// ValidateSchema checks a schema file without parsing any data
func ValidateSchema(schemaPath string) error {
	return getGlobalParser().ValidateSchema(schemaPath)
}

// Decode parses data into a field tree. Trailing bytes are ignored.
func (p *Parser) Decode(ctx context.Context, data []byte, schemaPath string, opts ...Option) (*field.Dict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := p.apply(opts)

	tree, err := p.newTree(schemaPath, options)
	if err != nil {
		return nil, err
	}

	rest, err := field.ParseBytes(tree, data)
	if err != nil {
		p.logger.DebugContext(ctx, "Parsing failed", "schema", schemaPath, "error", err)
		return nil, fmt.Errorf("parsing data: %w", err)
	}
	if len(rest) > 0 {
		p.logger.DebugContext(ctx, "Ignoring trailing data", "schema", schemaPath, "bits", len(rest))
	}
	if options.verify {
		if err := field.Validate(tree); err != nil {
			return nil, fmt.Errorf("validating data: %w", err)
		}
	}
	p.logger.DebugContext(ctx, "Parsed message", "schema", schemaPath, "root", tree.Name(), "bytes", len(data))
	return tree, nil
}

// ParseBinary parses binary data into a map of exported field values
func (p *Parser) ParseBinary(ctx context.Context, data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	tree, err := p.Decode(ctx, data, schemaPath, opts...)
	if err != nil {
		return nil, err
	}
	return field.Export(tree).(map[string]any), nil
}

// SerializeToJSON parses binary data and converts it to JSON
func (p *Parser) SerializeToJSON(ctx context.Context, data []byte, schemaPath string, opts ...Option) ([]byte, error) {
	result, err := p.ParseBinary(ctx, data, schemaPath, opts...)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling to JSON: %w", err)
	}
	return jsonData, nil
}

// Serialize assigns values to a fresh tree and returns its bytes. Fields
// missing from values keep their schema defaults.
func (p *Parser) Serialize(ctx context.Context, values map[string]any, schemaPath string, opts ...Option) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := p.apply(opts)

	tree, err := p.newTree(schemaPath, options)
	if err != nil {
		return nil, err
	}
	if err := tree.SetValue(values); err != nil {
		return nil, fmt.Errorf("serializing data: %w", err)
	}
	if options.updateChecksums {
		n := field.UpdateChecksums(tree)
		p.logger.DebugContext(ctx, "Updated checksums", "schema", schemaPath, "count", n)
	}
	if options.verify {
		if err := field.Validate(tree); err != nil {
			return nil, fmt.Errorf("validating data: %w", err)
		}
	}
	return field.BytesOf(tree), nil
}

// SerializeFromJSON converts JSON data back to binary format
func (p *Parser) SerializeFromJSON(ctx context.Context, jsonData []byte, schemaPath string, opts ...Option) ([]byte, error) {
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON: %w", err)
	}
	return p.Serialize(ctx, data, schemaPath, opts...)
}

// ValidateSchema checks a schema file without parsing any data
func (p *Parser) ValidateSchema(schemaPath string) error {
	_, err := p.loadSchema(schemaPath)
	return err
}

// ClearCache clears the schema cache
func (p *Parser) ClearCache() {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	p.schemaCache = make(map[string]cacheEntry)
}

func (p *Parser) apply(opts []Option) options {
	options := p.options
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func (p *Parser) newTree(schemaPath string, options options) (*field.Dict, error) {
	s, err := p.loadSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	tree, err := s.New(options.rootType)
	if err != nil {
		return nil, fmt.Errorf("building %q: %w", options.rootType, err)
	}
	return tree, nil
}

// loadSchema loads a schema from disk with caching support
func (p *Parser) loadSchema(schemaPath string) (*schema.Schema, error) {
	if p.options.enableCaching {
		p.cacheMutex.RLock()
		cached, exists := p.schemaCache[schemaPath]
		p.cacheMutex.RUnlock()
		if exists && (p.options.cacheTimeout <= 0 || time.Since(cached.loadedAt) < p.options.cacheTimeout) {
			p.logger.Debug("Schema cache hit", "schema", schemaPath)
			return cached.schema, nil
		}
	}

	s, err := schema.Load(schemaPath, schema.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Loaded schema", "schema", schemaPath, "id", s.Meta.ID)

	if p.options.enableCaching {
		p.cacheMutex.Lock()
		p.schemaCache[schemaPath] = cacheEntry{schema: s, loadedAt: time.Now()}
		p.cacheMutex.Unlock()
	}
	return s, nil
}
