package outputhook

import (
	"os"
	"testing"
)

func TestFileSaveHookWritesJSONForMapping(t *testing.T) {
	dir := t.TempDir()
	hook := NewFileSaveHook("filesave", FileSaveOptions{Dir: dir, Prefix: "out"}, Binding{Global: true})

	result, err := hook.Process(Context{ToolName: "Echo"}, map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	desc, ok := result.(FileDescriptor)
	if !ok {
		t.Fatalf("got %T, want FileDescriptor", result)
	}
	if desc.DataFormat != "json" || desc.DataStructure != "mapping" {
		t.Fatalf("got format=%s structure=%s", desc.DataFormat, desc.DataStructure)
	}
	if _, err := os.Stat(desc.FilePath); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestFileSaveHookTextVsJSONString(t *testing.T) {
	dir := t.TempDir()
	hook := NewFileSaveHook("filesave", FileSaveOptions{Dir: dir, Prefix: "out"}, Binding{Global: true})

	jsonResult, err := hook.Process(Context{ToolName: "Echo"}, `{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jsonResult.(FileDescriptor).DataFormat != "json" {
		t.Fatalf("expected JSON-looking string to save as json")
	}

	textResult, err := hook.Process(Context{ToolName: "Echo"}, "plain text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if textResult.(FileDescriptor).DataFormat != "text" {
		t.Fatalf("expected non-JSON string to save as text")
	}
}
