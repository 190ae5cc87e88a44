package sources

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/store.json
var storeSchema []byte

const storeSchemaURL = "https://nonebot.dev/store-test/schema/store.json"

// Record schemas defined in the embedded store schema
const (
	SchemaAdapter        = "adapter"
	SchemaBot            = "bot"
	SchemaDriver         = "driver"
	SchemaPlugin         = "plugin"
	SchemaPreviousPlugin = "previousPlugin"
	SchemaResult         = "result"
)

// RecordValidator checks single listing records against the embedded schema
type RecordValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewRecordValidator compiles the embedded store schema
func NewRecordValidator() (*RecordValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(storeSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse store schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(storeSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add store schema: %w", err)
	}

	v := &RecordValidator{schemas: make(map[string]*jsonschema.Schema)}
	for _, name := range []string{
		SchemaAdapter, SchemaBot, SchemaDriver, SchemaPlugin, SchemaPreviousPlugin, SchemaResult,
	} {
		schema, err := compiler.Compile(storeSchemaURL + "#/$defs/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// Validate checks one JSON record against the named schema
func (v *RecordValidator) Validate(name string, record []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema: %s", name)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(record))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return err
	}
	return nil
}
