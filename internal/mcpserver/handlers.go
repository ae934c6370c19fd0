package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scitool/toolengine/internal/engine"
)

// streamSentinel is the reserved argument a client sets to request
// server-initiated streaming chunks over the transport's info channel,
// per spec.md §4.9. It is stripped before the arguments reach the engine.
const streamSentinel = "_tooluniverse_stream"

func (s *Server) handleToolsCall(ctx context.Context, raw json.RawMessage) (any, *JSONRPCError) {
	var params CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &JSONRPCError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("invalid tools/call params: %v", err)}
	}
	if params.Name == "" {
		return nil, &JSONRPCError{Code: ErrCodeInvalidParams, Message: "tools/call requires a tool name"}
	}

	kwargs := map[string]any{}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &kwargs); err != nil {
			return nil, &JSONRPCError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("invalid arguments: %v", err)}
		}
	}

	streamRequested := false
	if v, ok := kwargs[streamSentinel]; ok {
		if b, ok := v.(bool); ok {
			streamRequested = b
		}
		delete(kwargs, streamSentinel)
	}

	s.mu.RLock()
	cfg, known := s.configs[params.Name]
	s.mu.RUnlock()
	if known {
		if missing := missingRequiredArgs(cfg.Parameter, kwargs); len(missing) > 0 {
			return &ToolCallResult{
				IsError: true,
				Content: []ToolResultContent{{Type: "text", Text: fmt.Sprintf("missing required argument(s): %v", missing)}},
			}, nil
		}
	}

	opts := engine.Options{UseCache: true, Validate: true}
	if streamRequested {
		if notify, ok := notifierFromContext(ctx); ok {
			opts.StreamCallback = func(chunk string) {
				payload, _ := json.Marshal(map[string]any{"tool": params.Name, "chunk": chunk})
				notify("notifications/tool_stream", payload)
			}
		}
	}

	result := s.eng.RunOne(ctx, engine.Call{Name: params.Name, Arguments: kwargs}, opts)
	return toolCallResultFrom(result), nil
}

func toolCallResultFrom(result engine.Result) *ToolCallResult {
	if result.IsError() {
		payload, _ := json.Marshal(result.Response())
		return &ToolCallResult{
			IsError: true,
			Content: []ToolResultContent{{Type: "text", Text: string(payload)}},
		}
	}

	text, ok := result.Value.(string)
	if !ok {
		payload, err := json.Marshal(result.Value)
		if err != nil {
			text = fmt.Sprintf("%v", result.Value)
		} else {
			text = string(payload)
		}
	}
	return &ToolCallResult{Content: []ToolResultContent{{Type: "text", Text: text}}}
}

// missingRequiredArgs is a cheap pre-dispatch check distinct from the
// engine's own schema validation: it surfaces a clean "missing argument"
// message before a call ever reaches run_one.
func missingRequiredArgs(parameter json.RawMessage, args map[string]any) []string {
	if len(parameter) == 0 {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal(parameter, &schema); err != nil {
		return nil
	}
	required, _ := schema["required"].([]any)
	var missing []string
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := args[name]; !present {
			missing = append(missing, name)
		}
	}
	return missing
}

func (s *Server) handleFind(ctx context.Context, raw json.RawMessage) (any, *JSONRPCError) {
	var params FindParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &JSONRPCError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("invalid tools/find params: %v", err)}
		}
	}
	if params.Query == "" {
		return nil, &JSONRPCError{Code: ErrCodeInvalidParams, Message: "tools/find requires a query"}
	}

	if params.Limit <= 0 {
		params.Limit = 10
	}
	useAdvanced := true
	if params.UseAdvancedSearch != nil {
		useAdvanced = *params.UseAdvancedSearch
	}
	format := params.Format
	if format == "" {
		format = "detailed"
	}

	s.mu.RLock()
	finders := s.finders
	s.mu.RUnlock()

	toolName, ok := finders.resolve(params.SearchMethod)
	if !ok {
		return nil, &JSONRPCError{Code: ErrCodeInternalError, Message: "no finder tool is configured for tools/find"}
	}

	result := s.eng.RunOne(ctx, engine.Call{Name: toolName, Arguments: map[string]any{
		"query":               params.Query,
		"categories":          params.Categories,
		"limit":               params.Limit,
		"use_advanced_search": useAdvanced,
	}}, engine.Options{UseCache: true})

	if result.IsError() {
		return nil, &JSONRPCError{Code: ErrCodeInternalError, Message: fmt.Sprintf("finder tool %q failed: %s", toolName, result.Error.Message)}
	}

	if format == "mcp_standard" {
		if asMap, ok := result.Value.(map[string]any); ok {
			if _, hasTools := asMap["tools"]; hasTools {
				return asMap, nil
			}
		}
		return map[string]any{
			"tools": result.Value,
			"_meta": map[string]any{"query": params.Query, "finder": toolName, "search_method": params.SearchMethod},
		}, nil
	}

	return result.Value, nil
}
