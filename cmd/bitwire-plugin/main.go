package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redpanda-data/benthos/v4/public/service"

	"github.com/twinfer/bitwire/pkg/bitwire"
)

// BitwireProcessor is a Benthos processor that parses binary messages into
// structured payloads, or serializes structured payloads to binary, using a
// bitwire schema.
type BitwireProcessor struct {
	config       BitwireConfig
	parser       *bitwire.Parser
	logger       *service.Logger
	mParsed      *service.MetricCounter
	mSerialized  *service.MetricCounter
	mErrors      *service.MetricCounter
	mProcessTime *service.MetricTimer
}

// BitwireConfig contains configuration parameters for the bitwire processor.
type BitwireConfig struct {
	SchemaPath      string `json:"schema_path" yaml:"schema_path"`
	IsParser        bool   `json:"is_parser" yaml:"is_parser"`
	RootType        string `json:"root_type" yaml:"root_type"`
	UpdateChecksums bool   `json:"update_checksums" yaml:"update_checksums"`
	Verify          bool   `json:"verify" yaml:"verify"`
}

func init() {
	err := service.RegisterProcessor(
		"bitwire",
		bitwireProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newBitwireProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

func main() {
	service.RunCLI(context.Background())
}

// bitwireProcessorConfig returns a config spec for a bitwire processor.
func bitwireProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Parses or serializes bit-level binary messages described by a YAML schema.").
		Description("This processor parses binary data into structured messages or serializes structured messages back to binary according to a bitwire schema. Integers of any width from 1 to 64 bits, enums, flags, strings, counted arrays and CRC fields are supported.").
		Field(service.NewStringField("schema_path").
			Description("Path to the YAML schema file.").
			Example("./schemas/modbus_rtu_request.yaml")).
		Field(service.NewBoolField("is_parser").
			Description("Whether this processor parses binary to structured data (true) or serializes structured data to binary (false).").
			Default(true)).
		Field(service.NewStringField("root_type").
			Description("The type to parse or serialize. Leave empty to use the schema's root sequence.").
			Default("")).
		Field(service.NewBoolField("update_checksums").
			Description("Recompute every checksum field before emitting serialized bytes.").
			Default(true)).
		Field(service.NewBoolField("verify").
			Description("Check field predicates and checksums, failing messages that do not pass.").
			Default(false)).
		Version("0.1.0")
}

// newBitwireProcessorFromConfig creates a new BitwireProcessor from a parsed config.
func newBitwireProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*BitwireProcessor, error) {
	schemaPath, err := conf.FieldString("schema_path")
	if err != nil {
		return nil, err
	}
	isParser, err := conf.FieldBool("is_parser")
	if err != nil {
		return nil, err
	}
	rootType, err := conf.FieldString("root_type")
	if err != nil {
		return nil, err
	}
	updateChecksums, err := conf.FieldBool("update_checksums")
	if err != nil {
		return nil, err
	}
	verify, err := conf.FieldBool("verify")
	if err != nil {
		return nil, err
	}

	config := BitwireConfig{
		SchemaPath:      schemaPath,
		IsParser:        isParser,
		RootType:        rootType,
		UpdateChecksums: updateChecksums,
		Verify:          verify,
	}

	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found at path: %s", schemaPath)
	}

	parser := bitwire.NewParser(
		bitwire.WithCaching(0),
		bitwire.WithRootType(rootType),
		bitwire.WithChecksumUpdate(updateChecksums),
		bitwire.WithVerify(verify),
	)
	if err := parser.ValidateSchema(schemaPath); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", schemaPath, err)
	}

	logger := mgr.Logger()
	metrics := mgr.Metrics()

	return &BitwireProcessor{
		config:       config,
		parser:       parser,
		logger:       logger,
		mParsed:      metrics.NewCounter("bitwire_parsed_messages"),
		mSerialized:  metrics.NewCounter("bitwire_serialized_messages"),
		mErrors:      metrics.NewCounter("bitwire_processing_errors"),
		mProcessTime: metrics.NewTimer("bitwire_processing_time_ns"),
	}, nil
}

// Process applies parsing or serialization to a message.
func (b *BitwireProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	start := time.Now()
	defer func() { b.mProcessTime.Timing(time.Since(start).Nanoseconds()) }()

	if b.config.IsParser {
		return b.parseBinary(ctx, msg)
	}
	return b.serializeToBinary(ctx, msg)
}

// fail records err on msg and passes it on, so downstream error handling can
// route it.
func (b *BitwireProcessor) fail(msg *service.Message, err error) (service.MessageBatch, error) {
	b.logger.Errorf("%v", err)
	b.mErrors.Incr(1)
	msg.SetError(err)
	return service.MessageBatch{msg}, nil
}

// parseBinary parses binary data into a structured message.
func (b *BitwireProcessor) parseBinary(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	b.logger.Debug("Parsing binary data")

	binData, err := msg.AsBytes()
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to get binary data from message: %w", err))
	}
	if len(binData) == 0 {
		return b.fail(msg, fmt.Errorf("empty binary data provided"))
	}

	result, err := b.parser.ParseBinary(ctx, binData, b.config.SchemaPath)
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to parse binary data of size %d bytes: %w", len(binData), err))
	}

	b.logger.Debugf("Successfully parsed %d bytes of binary data", len(binData))
	b.mParsed.Incr(1)

	newMsg := msg.Copy()
	newMsg.SetStructured(result)
	return service.MessageBatch{newMsg}, nil
}

// serializeToBinary serializes a structured message to binary.
func (b *BitwireProcessor) serializeToBinary(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	b.logger.Debug("Serializing structured data to binary")

	structData, err := msg.AsStructured()
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to get structured data from message: %w", err))
	}
	values, ok := structData.(map[string]any)
	if !ok {
		return b.fail(msg, fmt.Errorf("structured data must be an object, got %T", structData))
	}

	binData, err := b.parser.Serialize(ctx, values, b.config.SchemaPath)
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to serialize data: %w", err))
	}

	b.logger.Debugf("Successfully serialized data to %d bytes of binary data", len(binData))
	b.mSerialized.Incr(1)

	newMsg := msg.Copy()
	newMsg.SetBytes(binData)
	return service.MessageBatch{newMsg}, nil
}

// Close the processor resources
func (b *BitwireProcessor) Close(ctx context.Context) error {
	b.logger.Debug("Closing bitwire processor and clearing schema cache")
	b.parser.ClearCache()
	return nil
}
