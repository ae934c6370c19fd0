package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scitool/toolengine/internal/outputhook"
	"github.com/scitool/toolengine/internal/registry"
	"github.com/scitool/toolengine/internal/toolcache"
	"github.com/scitool/toolengine/pkg/tool"
)

type echoTool struct {
	tool.Base
	calls   atomic.Int64
	run     func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error)
	options map[string]bool
}

func (e *echoTool) Run(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
	e.calls.Add(1)
	if e.run != nil {
		return e.run(ctx, args, opts)
	}
	return args["value"], nil
}

func (e *echoTool) AcceptsOption(name string) bool {
	if e.options == nil {
		return e.Base.AcceptsOption(name)
	}
	return e.options[name]
}

func newEchoConfig(name string, cacheable bool) *tool.Config {
	cfg := tool.NewConfig(name, "echo", "echoes its value argument", json.RawMessage(`{
		"type": "object",
		"properties": {"value": {"type": "string"}},
		"required": ["value"]
	}`))
	cfg.Cacheable = cacheable
	return cfg
}

func newTestEngine(t *testing.T, cfgs []*tool.Config, build func(cfg *tool.Config) (tool.Instance, error)) (*Engine, *toolcache.Manager) {
	t.Helper()
	reg := registry.New()
	reg.Register("echo", build)

	mem := toolcache.NewMemory(64)
	mgr := toolcache.NewManager(mem, nil, toolcache.ManagerConfig{Enabled: true}, nil, nil)
	hooks := outputhook.NewManager(nil, nil)

	return New(cfgs, reg, mgr, hooks, nil, nil, 4), mgr
}

func TestRunOneMissingNameReturnsValidationError(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	result := e.RunOne(context.Background(), Call{Name: ""}, Options{})
	if result.Error == nil || result.Error.Kind != tool.ErrValidation {
		t.Fatalf("got %+v, want validation error", result)
	}
}

func TestRunOneUnknownToolReturnsUnavailable(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	result := e.RunOne(context.Background(), Call{Name: "DoesNotExist", Arguments: map[string]any{}}, Options{})
	if result.Error == nil || result.Error.Kind != tool.ErrUnavailable {
		t.Fatalf("got %+v, want unavailable error", result)
	}
}

func TestRunOneSuccessAndCaching(t *testing.T) {
	cfg := newEchoConfig("Echo", true)
	var constructs atomic.Int64
	inst := &echoTool{Base: *tool.NewBase(cfg)}
	e, _ := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) {
		constructs.Add(1)
		return inst, nil
	})

	call := Call{Name: "Echo", Arguments: map[string]any{"value": "hi"}}
	first := e.RunOne(context.Background(), call, Options{UseCache: true})
	if first.Error != nil || first.Value != "hi" {
		t.Fatalf("got %+v, want value=hi", first)
	}

	second := e.RunOne(context.Background(), call, Options{UseCache: true})
	if second.Error != nil || second.Value != "hi" {
		t.Fatalf("got %+v, want cached value=hi", second)
	}
	if inst.calls.Load() != 1 {
		t.Fatalf("got %d tool invocations, want 1 (second call should be a cache hit)", inst.calls.Load())
	}
	if constructs.Load() != 1 {
		t.Fatalf("got %d constructions, want 1 (instance should be reused)", constructs.Load())
	}
}

func TestRunOneValidationRejectsMissingRequiredField(t *testing.T) {
	cfg := newEchoConfig("Echo", false)
	inst := &echoTool{Base: *tool.NewBase(cfg)}
	e, _ := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) { return inst, nil })

	result := e.RunOne(context.Background(), Call{Name: "Echo", Arguments: map[string]any{}}, Options{})
	if result.Error == nil || result.Error.Kind != tool.ErrValidation {
		t.Fatalf("got %+v, want validation error for missing required field", result)
	}
}

func TestRunOneClassifiesToolError(t *testing.T) {
	cfg := newEchoConfig("Echo", false)
	inst := &echoTool{
		Base: *tool.NewBase(cfg),
		run: func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			return nil, errors.New("request failed: 401 unauthorized")
		},
	}
	e, _ := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) { return inst, nil })

	result := e.RunOne(context.Background(), Call{Name: "Echo", Arguments: map[string]any{"value": "x"}}, Options{})
	if result.Error == nil || result.Error.Kind != tool.ErrAuth {
		t.Fatalf("got %+v, want auth error classification", result)
	}
}

func TestRunOneAppliesHookPipeline(t *testing.T) {
	cfg := newEchoConfig("Echo", false)
	inst := &echoTool{Base: *tool.NewBase(cfg)}

	reg := registry.New()
	reg.Register("echo", func(c *tool.Config) (tool.Instance, error) { return inst, nil })
	mem := toolcache.NewMemory(64)
	mgr := toolcache.NewManager(mem, nil, toolcache.ManagerConfig{Enabled: true}, nil, nil)
	hooks := outputhook.NewManager(nil, nil)
	hooks.SetHooks([]*outputhook.Hook{
		{
			Name: "uppercase", Enabled: true, Binding: outputhook.Binding{Global: true},
			Process: func(ctx outputhook.Context, result any) (any, error) { return "HOOKED", nil },
		},
	})
	e := New([]*tool.Config{cfg}, reg, mgr, hooks, nil, nil, 4)

	result := e.RunOne(context.Background(), Call{Name: "Echo", Arguments: map[string]any{"value": "hi"}}, Options{})
	if result.Error != nil || result.Value != "HOOKED" {
		t.Fatalf("got %+v, want hook-transformed value", result)
	}
}

func TestRunOneStreamingRequiresAcceptance(t *testing.T) {
	cfg := newEchoConfig("Echo", false)
	cfg.SupportsStreaming = true
	var gotCallback bool
	inst := &echoTool{
		Base:    *tool.NewBase(cfg),
		options: map[string]bool{},
		run: func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			gotCallback = opts.StreamCallback != nil
			return "done", nil
		},
	}
	e, _ := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) { return inst, nil })

	_ = e.RunOne(context.Background(), Call{Name: "Echo", Arguments: map[string]any{"value": "x"}}, Options{
		StreamCallback: func(chunk string) {},
	})
	if gotCallback {
		t.Fatal("expected stream callback to be withheld since the tool did not accept it")
	}

	inst.options["stream_callback"] = true
	_ = e.RunOne(context.Background(), Call{Name: "Echo", Arguments: map[string]any{"value": "x"}}, Options{
		StreamCallback: func(chunk string) {},
	})
	if !gotCallback {
		t.Fatal("expected stream callback to be forwarded once the tool accepts it")
	}
}

func TestRunBatchDedupsIdenticalCallsAndPreservesOrder(t *testing.T) {
	cfg := newEchoConfig("Echo", false)
	inst := &echoTool{Base: *tool.NewBase(cfg)}
	e, _ := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) { return inst, nil })

	calls := []Call{
		{Name: "Echo", Arguments: map[string]any{"value": "a"}},
		{Name: "Echo", Arguments: map[string]any{"value": "b"}},
		{Name: "Echo", Arguments: map[string]any{"value": "a"}},
	}
	results := e.RunBatch(context.Background(), calls, Options{})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Value != "a" || results[1].Value != "b" || results[2].Value != "a" {
		t.Fatalf("got %+v, want values in original order", results)
	}
	if inst.calls.Load() != 2 {
		t.Fatalf("got %d tool invocations, want 2 (duplicate call should be deduped)", inst.calls.Load())
	}
}

func TestRunBatchPrimesFromCache(t *testing.T) {
	cfg := newEchoConfig("Echo", true)
	inst := &echoTool{Base: *tool.NewBase(cfg)}
	e, mgr := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) { return inst, nil })

	ns := inst.GetCacheNamespace()
	ver := inst.GetCacheVersion()
	ck := inst.GetCacheKey(map[string]any{"value": "cached"})
	mgr.Set(ns, ver, ck, "cached-value", nil)

	results := e.RunBatch(context.Background(), []Call{
		{Name: "Echo", Arguments: map[string]any{"value": "cached"}},
	}, Options{UseCache: true})

	if results[0].Value != "cached-value" {
		t.Fatalf("got %+v, want primed cached value", results[0])
	}
	if inst.calls.Load() != 0 {
		t.Fatalf("got %d tool invocations, want 0 (should be served entirely from cache)", inst.calls.Load())
	}
}

func TestRunBatchPerToolSemaphoreLimitsConcurrency(t *testing.T) {
	cfg := newEchoConfig("Echo", false)
	cfg.BatchMaxConcurrency = 1

	var active atomic.Int32
	var maxActive atomic.Int32
	inst := &echoTool{
		Base: *tool.NewBase(cfg),
		run: func(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
			cur := active.Add(1)
			defer active.Add(-1)
			for {
				m := maxActive.Load()
				if cur <= m || maxActive.CompareAndSwap(m, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return args["value"], nil
		},
	}
	e, _ := newTestEngine(t, []*tool.Config{cfg}, func(c *tool.Config) (tool.Instance, error) { return inst, nil })

	calls := []Call{
		{Name: "Echo", Arguments: map[string]any{"value": "a"}},
		{Name: "Echo", Arguments: map[string]any{"value": "b"}},
		{Name: "Echo", Arguments: map[string]any{"value": "c"}},
	}
	e.RunBatch(context.Background(), calls, Options{})

	if maxActive.Load() > 1 {
		t.Fatalf("got max concurrent invocations=%d, want at most 1", maxActive.Load())
	}
}
