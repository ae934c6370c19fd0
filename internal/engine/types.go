// Package engine implements the tool dispatch core: single-call and batch
// execution over the registry, cache, and hook pipeline, per spec.md §4.7.
package engine

import "github.com/scitool/toolengine/pkg/tool"

// Call is one function invocation request: a tool name and its arguments.
type Call struct {
	Name      string
	Arguments map[string]any
}

// Options carries per-call dispatch settings, mirroring tool.RunOptions
// plus the engine-level switches (name/arguments/cache) that sit above any
// single tool.
type Options struct {
	UseCache       bool
	Validate       bool
	StreamCallback func(chunk string)
}

// Result is the outcome of one dispatch: either a value or a classified
// error, never both.
type Result struct {
	Value any
	Error *tool.ToolError
}

// Response renders the result the way a caller should see it: the raw
// value on success, or the dual-format error object from spec.md §4.7 on
// failure.
func (r Result) Response() any {
	if r.Error != nil {
		return r.Error.ToDualFormat()
	}
	return r.Value
}

// IsError reports whether the dispatch failed.
func (r Result) IsError() bool {
	return r.Error != nil
}
