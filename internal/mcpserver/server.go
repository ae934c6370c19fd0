package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/scitool/toolengine/internal/engine"
	"github.com/scitool/toolengine/internal/observability"
	"github.com/scitool/toolengine/pkg/tool"
)

// metaLoaderTag marks a tool config as an MCP auto-loader: a tool whose
// sole purpose is discovering more tools at load time. These are excluded
// from tools/list to avoid a client re-discovering and re-invoking them as
// ordinary tools, which would feed back into loader.Discoverer.
const metaLoaderTag = "meta_loader"

// Server adapts an engine.Engine to the MCP JSON-RPC 2.0 surface: method
// dispatch, per-tool schema derivation, and the custom tools/find and
// tools/search discovery methods.
type Server struct {
	mu      sync.RWMutex
	configs map[string]*tool.Config
	mcpList []*MCPTool

	finders finderIndex
	eng     *engine.Engine
	logger  *slog.Logger
	metrics *observability.Metrics
	info    ServerInfo
}

// New builds a Server over eng, exposing every config in configs except
// those tagged as meta-loaders. logger and metrics may be nil.
func New(eng *engine.Engine, configs []*tool.Config, name, version string, logger *slog.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Server{
		eng:     eng,
		logger:  logger.With("component", "mcpserver"),
		metrics: metrics,
		info:    ServerInfo{Name: name, Version: version},
	}
	s.Reload(configs)
	return s
}

// Reload replaces the exposed tool set and finder index, e.g. after the
// engine's own config set is reloaded.
func (s *Server) Reload(configs []*tool.Config) {
	byName := make(map[string]*tool.Config, len(configs))
	var exposed []*MCPTool
	for _, cfg := range configs {
		byName[cfg.Name] = cfg
		if isMetaTool(cfg) {
			continue
		}
		exposed = append(exposed, &MCPTool{
			Name:        cfg.Name,
			Description: cfg.Description,
			InputSchema: deriveInputSchema(cfg.Parameter),
		})
	}
	sort.Slice(exposed, func(i, j int) bool { return exposed[i].Name < exposed[j].Name })

	s.mu.Lock()
	s.configs = byName
	s.mcpList = exposed
	s.finders = buildFinderIndex(configs)
	s.mu.Unlock()
}

func isMetaTool(cfg *tool.Config) bool {
	for _, tag := range cfg.Tags {
		if tag == metaLoaderTag {
			return true
		}
	}
	return false
}

// HandleRequest dispatches a single JSON-RPC request and returns its
// response. Notifications (ID == nil) still receive a response value here;
// transports are responsible for suppressing it if the wire protocol
// requires no reply for notifications.
func (s *Server) HandleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	resp := &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	result, rpcErr := s.dispatch(ctx, req.Method, req.Params)
	outcome := "ok"
	if rpcErr != nil {
		outcome = "error"
		resp.Error = rpcErr
	} else {
		payload, err := json.Marshal(result)
		if err != nil {
			resp.Error = &JSONRPCError{Code: ErrCodeInternalError, Message: err.Error()}
			outcome = "error"
		} else {
			resp.Result = payload
		}
	}

	if s.metrics != nil {
		s.metrics.RecordMCPRequest(req.Method, outcome)
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, *JSONRPCError) {
	switch method {
	case "initialize":
		return s.handleInitialize(), nil
	case "tools/list":
		return s.handleToolsList(), nil
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	case "tools/find", "tools/search":
		return s.handleFind(ctx, params)
	case "resources/list":
		return ListResourcesResult{Resources: []any{}}, nil
	case "resources/read":
		return nil, &JSONRPCError{Code: ErrCodeResourceNotFound, Message: "no resources are served by this adapter"}
	case "prompts/list":
		return ListPromptsResult{Prompts: []any{}}, nil
	case "prompts/get":
		return nil, &JSONRPCError{Code: ErrCodePromptNotFound, Message: "no prompts are served by this adapter"}
	default:
		return nil, &JSONRPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", method)}
	}
}

func (s *Server) handleInitialize() *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: Capabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo: s.info,
	}
}

func (s *Server) handleToolsList() *ListToolsResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tools := make([]*MCPTool, len(s.mcpList))
	copy(tools, s.mcpList)
	return &ListToolsResult{Tools: tools}
}

// ListResourcesResult and ListPromptsResult are minimal empty-collection
// responses; this adapter exposes only tools, per spec.md §4.9's scope.
type ListResourcesResult struct {
	Resources []any `json:"resources"`
}

type ListPromptsResult struct {
	Prompts []any `json:"prompts"`
}
