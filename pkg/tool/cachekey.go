package tool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// DefaultCacheKey implements the spec.md §4.6 default get_cache_key: a hex
// digest of a stable serialization of {tool_name, args}, with map keys
// sorted so semantically identical argument sets always hash identically.
func DefaultCacheKey(toolName string, args map[string]any) string {
	payload := map[string]any{
		"tool_name": toolName,
		"args":      args,
	}
	return hexDigest(stableJSON(payload))
}

// DefaultCacheVersion implements spec.md §4.6's default get_cache_version:
// the first 16 hex characters of a digest over a static marker, a
// source-identity string, and the serialized parameter schema. Tools
// without introspectable source (the common case for a statically
// compiled Go binary) pass a constant marker for sourceIdentity.
func DefaultCacheVersion(marker, sourceIdentity string, parameterSchema json.RawMessage) string {
	full := hexDigest(marker + "\x00" + sourceIdentity + "\x00" + string(parameterSchema))
	if len(full) > 16 {
		return full[:16]
	}
	return full
}

func hexDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// stableJSON serializes v with map keys sorted at every level, so the
// output is deterministic regardless of Go's randomized map iteration.
func stableJSON(v any) string {
	b, _ := json.Marshal(sortKeys(v))
	return string(b)
}

// sortKeys rebuilds every map[string]any recursively so nested values are
// reached and normalized too; encoding/json already sorts a single map's
// keys when marshaling, but does nothing for maps nested inside []any.
func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = sortKeys(val[k])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return v
	}
}
