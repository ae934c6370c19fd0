package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/scitool/toolengine/pkg/tool"
)

// AutoLoaderSpec is the Config.Extra shape an "mcp_auto_loader" entry
// carries: which upstream MCP server to dial and how to tag the tools it
// contributes.
type AutoLoaderSpec struct {
	Server   ServerConfig `json:"server"`
	Category string       `json:"category"`
}

// AutoLoader is a meta-tool: invoking Discover connects to an upstream MCP
// server, lists its tools, and converts them into ToolConfigs the loader
// merges into the engine's own set, per spec.md §4.5. It is never exposed
// as an ordinary callable tool (see mcpserver's meta-loader tag exclusion).
type AutoLoader struct {
	tool.Base
	spec AutoLoaderSpec
}

// NewAutoLoader builds an AutoLoader from cfg. cfg.Extra must decode into
// an AutoLoaderSpec.
func NewAutoLoader(cfg *tool.Config) (tool.Instance, error) {
	spec, err := decodeAutoLoaderSpec(cfg.Extra)
	if err != nil {
		return nil, fmt.Errorf("mcp_auto_loader %s: %w", cfg.Name, err)
	}
	return &AutoLoader{Base: *tool.NewBase(cfg), spec: spec}, nil
}

func decodeAutoLoaderSpec(extra map[string]any) (AutoLoaderSpec, error) {
	var spec AutoLoaderSpec
	raw, err := json.Marshal(extra)
	if err != nil {
		return spec, err
	}
	if err := json.Unmarshal(raw, &spec); err != nil {
		return spec, err
	}
	if spec.Server.ID == "" {
		spec.Server.ID = spec.Server.Name
	}
	return spec, nil
}

// Run reports the upstream server's identity; an auto-loader is never
// dispatched as an ordinary tool call, but Run must still satisfy
// tool.Instance.
func (a *AutoLoader) Run(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
	return map[string]any{"server": a.spec.Server.ID}, nil
}

// Discover connects to the configured upstream MCP server, lists its
// tools, and converts each into a ToolConfig tagged with the auto-loader's
// category.
func (a *AutoLoader) Discover(ctx context.Context) ([]*tool.Config, error) {
	client := NewClient(&a.spec.Server, nil)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to MCP server %s: %w", a.spec.Server.ID, err)
	}
	defer client.Close()

	serverSpec, err := json.Marshal(a.spec.Server)
	if err != nil {
		return nil, fmt.Errorf("marshal server spec for %s: %w", a.spec.Server.ID, err)
	}

	upstream := client.Tools()
	configs := make([]*tool.Config, 0, len(upstream))
	for _, t := range upstream {
		cfg := tool.NewConfig(t.Name, "mcp_remote", t.Description, t.InputSchema)
		if a.spec.Category != "" {
			cfg.Tags = append(cfg.Tags, a.spec.Category)
		}
		cfg.Extra = map[string]any{"server": json.RawMessage(serverSpec), "remote_name": t.Name}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// RemoteTool is a tool.Instance that proxies Run to an upstream MCP
// server's tools/call, for tools discovered by AutoLoader. Registered
// under the "mcp_remote" type tag.
type RemoteTool struct {
	tool.Base
	server     ServerConfig
	remoteName string

	mu     sync.Mutex
	client *Client
}

// NewRemoteTool builds a RemoteTool from cfg.Extra's server/remote_name.
// The upstream connection is established lazily on first Run, so loading
// a large tool set contributed by one auto-loader doesn't pay the cost of
// N redundant connections to the same server up front.
func NewRemoteTool(cfg *tool.Config) (tool.Instance, error) {
	remoteName, _ := cfg.Extra["remote_name"].(string)
	if remoteName == "" {
		remoteName = cfg.Name
	}

	var server ServerConfig
	switch v := cfg.Extra["server"].(type) {
	case json.RawMessage:
		if err := json.Unmarshal(v, &server); err != nil {
			return nil, fmt.Errorf("mcp_remote tool %s: decode server spec: %w", cfg.Name, err)
		}
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("mcp_remote tool %s: marshal server spec: %w", cfg.Name, err)
		}
		if err := json.Unmarshal(raw, &server); err != nil {
			return nil, fmt.Errorf("mcp_remote tool %s: decode server spec: %w", cfg.Name, err)
		}
	default:
		return nil, fmt.Errorf("mcp_remote tool %s: missing upstream server spec", cfg.Name)
	}

	return &RemoteTool{Base: *tool.NewBase(cfg), server: server, remoteName: remoteName}, nil
}

func (r *RemoteTool) connected(ctx context.Context) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil && r.client.Connected() {
		return r.client, nil
	}
	client := NewClient(&r.server, nil)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to MCP server %s: %w", r.server.ID, err)
	}
	r.client = client
	return client, nil
}

func (r *RemoteTool) Run(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
	client, err := r.connected(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.CallTool(ctx, r.remoteName, args)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, fmt.Errorf("remote tool %s returned an error result", r.remoteName)
	}
	return result.Content, nil
}
