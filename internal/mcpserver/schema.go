package mcpserver

import (
	"encoding/json"

	itool "github.com/scitool/toolengine/internal/tool"
)

// deriveInputSchema converts a tool's parameter schema into the MCP
// inputSchema shape, lifting non-standard per-property "required" quirks
// up into the parent "required" array per spec.md §4.9.
func deriveInputSchema(parameter json.RawMessage) json.RawMessage {
	if len(parameter) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}

	var decoded map[string]any
	if err := json.Unmarshal(parameter, &decoded); err != nil {
		// Not an object schema we can normalize; pass it through unchanged.
		return parameter
	}

	normalized := itool.NormalizeRequiredQuirks(decoded)
	if _, ok := normalized["type"]; !ok {
		normalized["type"] = "object"
	}

	out, err := json.Marshal(normalized)
	if err != nil {
		return parameter
	}
	return out
}
