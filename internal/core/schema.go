package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func party() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"name", "tax_id", "address"},
		"properties": map[string]any{
			"name":    nullableString(),
			"tax_id":  nullableString(),
			"address": nullableString(),
		},
	}
}

// recordSchema describes the JSON stored as a completed task's result.
func recordSchema() map[string]any {
	number := map[string]any{"type": "number"}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"issue_date", "invoice_number", "provider", "customer", "services", "amounts"},
		"properties": map[string]any{
			"issue_date":     nullableString(),
			"invoice_number": map[string]any{"type": []any{"string", "null"}, "pattern": "^[0-9]+$"},
			"provider":       party(),
			"customer":       party(),
			"services": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"description", "quantity", "unit_value", "total_value"},
					"properties": map[string]any{
						"description": nullableString(),
						"quantity":    map[string]any{"type": "integer", "minimum": 0},
						"unit_value":  number,
						"total_value": number,
					},
				},
			},
			"amounts": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"service_amount", "deduction_amount", "tax_amount", "net_amount"},
				"properties": map[string]any{
					"service_amount":   number,
					"deduction_amount": number,
					"tax_amount":       number,
					"net_amount":       number,
				},
			},
		},
	}
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledRecordSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(recordSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("record.json")
	})
	return compiledSchema, compileErr
}

// ValidateRecordJSON checks data against the extracted record schema.
func ValidateRecordJSON(data []byte) error {
	schema, err := compiledRecordSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
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
