// Package tool provides implementation support used by the engine and
// loader to honor the pkg/tool.Instance contract: JSON-Schema parameter
// validation and a subprocess execution helper for tool categories that
// shell out.
package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/scitool/toolengine/pkg/tool"
)

// SchemaValidator compiles a tool's parameter_schema once and validates
// argument maps against it on every call, per spec.md §4.6's
// validate_parameters contract.
type SchemaValidator struct {
	toolName string
	schema   *jsonschema.Schema
}

// NewSchemaValidator compiles parameterSchema. A nil or empty schema is
// treated as "anything goes": Validate always succeeds.
func NewSchemaValidator(toolName string, parameterSchema json.RawMessage) (*SchemaValidator, error) {
	if len(parameterSchema) == 0 {
		return &SchemaValidator{toolName: toolName}, nil
	}

	compiler := jsonschema.NewCompiler()
	resourceName := toolName + ".schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(parameterSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", toolName, err)
	}

	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile parameter schema for %s: %w", toolName, err)
	}

	return &SchemaValidator{toolName: toolName, schema: schema}, nil
}

// Validate checks args against the compiled schema, returning a
// Validation-kind ToolError on mismatch.
func (v *SchemaValidator) Validate(args map[string]any) *tool.ToolError {
	if v.schema == nil {
		return nil
	}

	// jsonschema validates against any; round-trip through JSON so types
	// decoded from YAML (e.g. map[any]any never appears here, callers pass
	// map[string]any) are in the shape the validator expects.
	normalized, err := roundTrip(args)
	if err != nil {
		return tool.ValidationError("%s: unable to normalize arguments: %v", v.toolName, err)
	}

	if err := v.schema.Validate(normalized); err != nil {
		return tool.ValidationError("%s: %v", v.toolName, err)
	}
	return nil
}

func roundTrip(args map[string]any) (any, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeRequiredQuirks lifts non-standard per-property "required":
// true/"True" fields up into the parent schema's "required" array, the
// quirk spec.md §4.9 calls out when deriving MCP inputSchema objects.
// It operates on a generic decoded schema (map[string]any) so it can run
// both on the raw parameter schema and on nested object/array subschemas.
func NormalizeRequiredQuirks(schema map[string]any) map[string]any {
	return normalizeRequired(schema)
}

func normalizeRequired(node map[string]any) map[string]any {
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return node
	}

	required, _ := node["required"].([]any)
	requiredSet := make(map[string]bool, len(required))
	for _, r := range required {
		if s, ok := r.(string); ok {
			requiredSet[s] = true
		}
	}

	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if isTruthyRequired(prop["required"]) {
			requiredSet[name] = true
		}
		delete(prop, "required")

		if nested, ok := prop["properties"].(map[string]any); ok {
			_ = nested
			props[name] = normalizeRequired(prop)
		}
		if items, ok := prop["items"].(map[string]any); ok {
			prop["items"] = normalizeRequired(items)
		}
	}

	if len(requiredSet) > 0 {
		merged := make([]any, 0, len(requiredSet))
		for name := range requiredSet {
			merged = append(merged, name)
		}
		node["required"] = merged
	}

	return node
}

func isTruthyRequired(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "True" || val == "true"
	default:
		return false
	}
}
