package bridge

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed descriptor.schema.json
var descriptorSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(descriptorSchema))
	})
	return schema, schemaErr
}

// ValidateDescriptorJSON checks a request body against the descriptor schema
// and returns every violation in one error.
func ValidateDescriptorJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("descriptor schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("malformed descriptor: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("descriptor does not match schema: %s", strings.Join(violations, "; "))
}
