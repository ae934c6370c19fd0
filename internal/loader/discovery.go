package loader

import (
	"context"

	"github.com/scitool/toolengine/pkg/tool"
)

// Discoverer is implemented by tool instances whose type tag represents an
// MCP "auto loader" (spec.md §4.5 step 6): a special config entry that,
// once constructed, can enumerate further tools at load time instead of
// declaring them statically in a category file.
type Discoverer interface {
	Discover(ctx context.Context) ([]*tool.Config, error)
}
