package project

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile(schemaJSON)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile project schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks JSON project bytes against the project schema
func Validate(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%w: schema validation failed: %v", ErrMalformed, result.Errors)
}

// ValidateMap validates a decoded project of any format
func ValidateMap(raw map[string]interface{}) error {
	data, err := sonic.ConfigStd.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	return Validate(data)
}
