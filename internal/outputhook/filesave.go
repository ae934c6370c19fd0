package outputhook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileDescriptor is the result FileSaveHook returns in place of the
// original value, per spec.md §3.
type FileDescriptor struct {
	FilePath      string         `json:"file_path"`
	DataFormat    string         `json:"data_format"`
	DataStructure string         `json:"data_structure"`
	FileSize      int64          `json:"file_size"`
	CreatedAt     time.Time      `json:"created_at"`
	ToolName      string         `json:"tool_name"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// FileSaveOptions configures a FileSaveHook.
type FileSaveOptions struct {
	Dir             string
	Prefix          string
	CleanupAgeHours int // 0 disables periodic cleanup
}

// NewFileSaveHook builds the Hook that persists a result to disk and
// returns a descriptor in its place. Format is auto-detected per
// spec.md §4.8: maps/lists serialize as JSON, strings are written as JSON
// if they parse as JSON else as plain text, scalars as JSON, anything
// else as a binary-as-string blob.
func NewFileSaveHook(name string, opts FileSaveOptions, binding Binding) *Hook {
	if opts.Prefix == "" {
		opts.Prefix = "tooloutput"
	}

	return &Hook{
		Name:    name,
		Enabled: true,
		Rule:    Rule{}, // always triggers unless scoped by binding
		Binding: binding,
		Process: func(hctx Context, result any) (any, error) {
			return saveToFile(hctx, result, opts)
		},
	}
}

func saveToFile(hctx Context, result any, opts FileSaveOptions) (any, error) {
	format, structure, data := detectFormatAndSerialize(result)

	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file-save directory %s: %w", dir, err)
	}

	now := time.Now()
	filename := fmt.Sprintf("%s_%s_%s.%s", opts.Prefix, hctx.ToolName, now.Format("20060102_150405"), extensionFor(format))
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write file-save output %s: %w", path, err)
	}

	if opts.CleanupAgeHours > 0 {
		cleanupOldFiles(dir, opts.Prefix, time.Duration(opts.CleanupAgeHours)*time.Hour)
	}

	return FileDescriptor{
		FilePath:      path,
		DataFormat:    format,
		DataStructure: structure,
		FileSize:      int64(len(data)),
		CreatedAt:     now,
		ToolName:      hctx.ToolName,
	}, nil
}

func detectFormatAndSerialize(result any) (format, structure string, data []byte) {
	switch v := result.(type) {
	case map[string]any:
		b, _ := json.MarshalIndent(v, "", "  ")
		return "json", "mapping", b
	case []any:
		b, _ := json.MarshalIndent(v, "", "  ")
		return "json", "list", b
	case string:
		if looksLikeJSON(v) {
			return "json", "str", []byte(v)
		}
		return "text", "str", []byte(v)
	case nil:
		return "json", "scalar", []byte("null")
	case bool, int, int64, float64:
		b, _ := json.Marshal(v)
		return "json", "scalar", b
	default:
		return "bin", "unknown", []byte(fmt.Sprintf("%v", v))
	}
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	var out any
	return json.Unmarshal([]byte(trimmed), &out) == nil
}

func extensionFor(format string) string {
	switch format {
	case "json":
		return "json"
	case "text":
		return "txt"
	default:
		return "bin"
	}
}

func cleanupOldFiles(dir, prefix string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, entry.Name()))
	}
}
