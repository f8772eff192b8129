package invoice

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fieldSchema describes the shape the prompt asks for. It is lenient: the
// normalizers accept strings for amounts and dates, so only gross shape
// problems (an object where a scalar belongs, line_items not a list) fail.
const fieldSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "definitions": {
    "scalar": {"type": ["string", "number", "null"]}
  },
  "properties": {
    "invoice_number":   {"$ref": "#/definitions/scalar"},
    "invoice_date":     {"$ref": "#/definitions/scalar"},
    "due_date":         {"$ref": "#/definitions/scalar"},
    "vendor_name":      {"$ref": "#/definitions/scalar"},
    "vendor_address":   {"$ref": "#/definitions/scalar"},
    "customer_name":    {"$ref": "#/definitions/scalar"},
    "customer_address": {"$ref": "#/definitions/scalar"},
    "subtotal":         {"$ref": "#/definitions/scalar"},
    "tax_amount":       {"$ref": "#/definitions/scalar"},
    "tax_rate":         {"$ref": "#/definitions/scalar"},
    "total_amount":     {"$ref": "#/definitions/scalar"},
    "currency":         {"$ref": "#/definitions/scalar"},
    "line_items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "description": {"$ref": "#/definitions/scalar"},
          "quantity":    {"$ref": "#/definitions/scalar"},
          "unit_price":  {"$ref": "#/definitions/scalar"},
          "total":       {"$ref": "#/definitions/scalar"}
        }
      }
    }
  }
}`

// FieldValidator checks parsed model output against the expected field shape
type FieldValidator struct {
	schema *jsonschema.Schema
}

// NewFieldValidator compiles the field schema
func NewFieldValidator() (*FieldValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice_fields.json", strings.NewReader(fieldSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("invoice_fields.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &FieldValidator{schema: schema}, nil
}

// Validate reports shape problems in fields
func (v *FieldValidator) Validate(fields map[string]any) error {
	if err := v.schema.Validate(fields); err != nil {
		return fmt.Errorf("fields do not match schema: %w", err)
	}
	return nil
}
