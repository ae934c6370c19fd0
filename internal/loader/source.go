package loader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/scitool/toolengine/pkg/tool"
)

// CategorySource names one category config file to load.
type CategorySource struct {
	Category string
	Path     string
}

// readCategoryFile parses a tool config file into configs, tolerating both
// a top-level list shape (`[{...}, {...}]`) and an object shape
// (`{"tool_name": {...}, ...}`) per spec.md §4.5 step 1. Object values are
// flattened into the list; the map key fills in Name when the entry omits
// it.
func readCategoryFile(path string) ([]*tool.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category file %s: %w", path, err)
	}

	raw, err := decodeAny(data, path)
	if err != nil {
		return nil, fmt.Errorf("parse category file %s: %w", path, err)
	}

	var entries []map[string]any
	switch typed := raw.(type) {
	case []any:
		for _, item := range typed {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("category file %s: list entries must be objects", path)
			}
			entries = append(entries, m)
		}
	case map[string]any:
		for key, value := range typed {
			m, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if _, has := m["name"]; !has {
				m["name"] = key
			}
			entries = append(entries, m)
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("category file %s: expected a list or object at the top level", path)
	}

	configs := make([]*tool.Config, 0, len(entries))
	for _, entry := range entries {
		cfg, err := toConfig(entry)
		if err != nil {
			return nil, fmt.Errorf("category file %s: %w", path, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func decodeAny(data []byte, pathHint string) (any, error) {
	ext := strings.ToLower(filepath.Ext(pathHint))
	if ext == ".json" || ext == ".json5" {
		var out any
		if err := json5.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return normalizeJSON(out), nil
	}

	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return normalizeYAML(out), nil
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already the
// default for string-keyed maps) recursively so nested maps compare the
// same way JSON-decoded maps do.
func normalizeYAML(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

func normalizeJSON(v any) any {
	return v
}

func toConfig(entry map[string]any) (*tool.Config, error) {
	name, _ := entry["name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("tool entry missing required \"name\" field")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("re-encode tool entry %q: %w", name, err)
	}
	var cfg tool.Config
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("decode tool entry %q: %w", name, err)
	}
	// cacheable defaults to true (spec.md §3); json.Unmarshal only
	// overwrites it when the entry sets the key.
	if _, has := entry["cacheable"]; !has {
		cfg.Cacheable = true
	}
	return &cfg, nil
}

// readToolsFile reads a newline-delimited list of tool names used by the
// `tools_file` inclusion filter, tolerating blank lines and "#" comments.
func readToolsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tools file %s: %w", path, err)
	}
	return names, nil
}
