package mcpserver

import "github.com/scitool/toolengine/pkg/tool"

// finderMethod tags a loaded tool as usable for tools/find dispatch. A
// finder tool config carries a tag of the form "finder:<method>".
const finderTagPrefix = "finder:"

// methodPriority is the auto-preference order from spec.md §4.9: prefer a
// cheap keyword match, fall back to embedding-based retrieval, and only
// reach for an LLM call as a last resort.
var methodPriority = []string{"keyword", "embedding", "llm"}

// finderIndex maps a search method name to the tool configured to serve it.
// Built once at server construction from the loaded tool set's tags.
type finderIndex map[string]string

func buildFinderIndex(configs []*tool.Config) finderIndex {
	idx := finderIndex{}
	for _, cfg := range configs {
		for _, tag := range cfg.Tags {
			if len(tag) > len(finderTagPrefix) && tag[:len(finderTagPrefix)] == finderTagPrefix {
				method := tag[len(finderTagPrefix):]
				if _, exists := idx[method]; !exists {
					idx[method] = cfg.Name
				}
			}
		}
	}
	return idx
}

// resolve picks the finder tool to invoke for a tools/find call. An
// explicit, non-"auto" method wins outright; "auto" (or an empty method)
// walks methodPriority and returns the first configured finder.
func (idx finderIndex) resolve(method string) (toolName string, ok bool) {
	if method != "" && method != "auto" {
		name, found := idx[method]
		return name, found
	}
	for _, m := range methodPriority {
		if name, found := idx[m]; found {
			return name, true
		}
	}
	return "", false
}
