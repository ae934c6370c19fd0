package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/scitool/toolengine/internal/engine"
	"github.com/scitool/toolengine/internal/outputhook"
	"github.com/scitool/toolengine/internal/registry"
	"github.com/scitool/toolengine/internal/toolcache"
	"github.com/scitool/toolengine/pkg/tool"
)

type stubTool struct {
	tool.Base
	run func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error)
}

func (s *stubTool) Run(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
	if s.run != nil {
		return s.run(ctx, args, opts)
	}
	return args, nil
}

func newConfig(name string, parameter json.RawMessage, tags ...string) *tool.Config {
	cfg := tool.NewConfig(name, "stub", "a test tool", parameter)
	cfg.Tags = tags
	return cfg
}

func newTestServer(t *testing.T, configs []*tool.Config, runs map[string]func(context.Context, map[string]any, tool.RunOptions) (any, error)) *Server {
	t.Helper()
	reg := registry.New()
	reg.Register("stub", func(cfg *tool.Config) (tool.Instance, error) {
		return &stubTool{Base: *tool.NewBase(cfg), run: runs[cfg.Name]}, nil
	})

	mem := toolcache.NewMemory(64)
	mgr := toolcache.NewManager(mem, nil, toolcache.ManagerConfig{Enabled: true}, nil, nil)
	hooks := outputhook.NewManager(nil, nil)
	eng := engine.New(configs, reg, mgr, hooks, nil, nil, 4)

	return New(eng, configs, "toolengine", "test", nil, nil)
}

func TestToolsListExcludesMetaLoaders(t *testing.T) {
	visible := newConfig("Echo", json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`))
	hidden := newConfig("AutoLoader", json.RawMessage(`{}`), metaLoaderTag)
	s := newTestServer(t, []*tool.Config{visible, hidden}, nil)

	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "Echo" {
		t.Fatalf("got %+v, want only Echo exposed", result.Tools)
	}
}

func TestToolsListDerivesInputSchemaRequiredQuirk(t *testing.T) {
	cfg := newConfig("Quirky", json.RawMessage(`{
		"type": "object",
		"properties": {"a": {"type": "string", "required": true}, "b": {"type": "string"}}
	}`))
	s := newTestServer(t, []*tool.Config{cfg}, nil)

	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	var result ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(result.Tools[0].InputSchema, &schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "a" {
		t.Fatalf("got required=%v, want [a] lifted from the per-property quirk", required)
	}
}

func TestToolsCallDispatchesAndReturnsText(t *testing.T) {
	cfg := newConfig("Echo", json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`))
	s := newTestServer(t, []*tool.Config{cfg}, map[string]func(context.Context, map[string]any, tool.RunOptions) (any, error){
		"Echo": func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			return args["value"], nil
		},
	})

	params, _ := json.Marshal(CallToolParams{Name: "Echo", Arguments: json.RawMessage(`{"value":"hi"}`)})
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}

	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.IsError || len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("got %+v, want a single text content block with 'hi'", result)
	}
}

func TestToolsCallStripsStreamSentinelAndRejectsMissingRequired(t *testing.T) {
	cfg := newConfig("Echo", json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`))
	s := newTestServer(t, []*tool.Config{cfg}, nil)

	params, _ := json.Marshal(CallToolParams{Name: "Echo", Arguments: json.RawMessage(`{"_tooluniverse_stream":true}`)})
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}

	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for the missing required 'value' argument")
	}
}

func TestToolsFindRejectsMissingQuery(t *testing.T) {
	s := newTestServer(t, nil, nil)
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/find", Params: json.RawMessage(`{}`)})
	if resp.Error == nil || resp.Error.Code != ErrCodeInvalidParams {
		t.Fatalf("got %+v, want -32602 invalid params", resp.Error)
	}
}

func TestToolsFindNoFinderConfigured(t *testing.T) {
	s := newTestServer(t, nil, nil)
	params, _ := json.Marshal(FindParams{Query: "search term"})
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/find", Params: params})
	if resp.Error == nil || resp.Error.Code != ErrCodeInternalError {
		t.Fatalf("got %+v, want -32603 internal error", resp.Error)
	}
}

func TestToolsFindPrefersKeywordOverLLM(t *testing.T) {
	keyword := newConfig("KeywordFinder", json.RawMessage(`{}`), "finder:keyword")
	llm := newConfig("LLMFinder", json.RawMessage(`{}`), "finder:llm")
	var invoked string
	s := newTestServer(t, []*tool.Config{keyword, llm}, map[string]func(context.Context, map[string]any, tool.RunOptions) (any, error){
		"KeywordFinder": func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			invoked = "keyword"
			return map[string]any{"tools": []any{}}, nil
		},
		"LLMFinder": func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			invoked = "llm"
			return map[string]any{"tools": []any{}}, nil
		},
	})

	params, _ := json.Marshal(FindParams{Query: "search term"})
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/find", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if invoked != "keyword" {
		t.Fatalf("got invoked=%s, want keyword preferred over llm", invoked)
	}
}

func TestToolsSearchIsAliasForToolsFind(t *testing.T) {
	keyword := newConfig("KeywordFinder", json.RawMessage(`{}`), "finder:keyword")
	s := newTestServer(t, []*tool.Config{keyword}, map[string]func(context.Context, map[string]any, tool.RunOptions) (any, error){
		"KeywordFinder": func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			return map[string]any{"tools": []any{"x"}}, nil
		},
	})

	params, _ := json.Marshal(FindParams{Query: "search term", Format: "mcp_standard"})
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/search", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var out map[string]any
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if _, ok := out["tools"]; !ok {
		t.Fatalf("got %+v, want a tools key passed through", out)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t, nil, nil)
	resp := s.HandleRequest(context.Background(), &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "bogus/method"})
	if resp.Error == nil || resp.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("got %+v, want -32601 method not found", resp.Error)
	}
}
