package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildTravelerJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// All three keys are optional: absent keys are defaulted downstream, not rejected here.
func BuildTravelerJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			FieldCustomer:    map[string]any{"type": "string"},
			FieldPartNumber:  map[string]any{"type": "string"},
			FieldDescription: map[string]any{"type": "string"},
		},
	}
}

var (
	travelerSchemaOnce sync.Once
	travelerSchema     *jsonschema.Schema
	travelerSchemaErr  error
)

func compiledTravelerSchema() (*jsonschema.Schema, error) {
	travelerSchemaOnce.Do(func() {
		travelerSchema, travelerSchemaErr = compileSchema(BuildTravelerJSONSchema())
	})
	return travelerSchema, travelerSchemaErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("traveler.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("traveler.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateTravelerJSON validates data against the traveler schema.
func ValidateTravelerJSON(data []byte) error {
	schema, err := compiledTravelerSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
