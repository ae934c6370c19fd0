package outputhook

// Process transforms result for (toolName, args, ctx). The returned value
// replaces the running result; subsequent hooks in the pipeline see it.
type Process func(ctx Context, result any) (any, error)

// Binding scopes which tools a Hook applies to.
type Binding struct {
	// Global, when true, matches every tool.
	Global bool

	// Tools is an explicit allowlist of tool names.
	Tools []string

	// ToolTypes is an allowlist of tool-type tags.
	ToolTypes []string
}

func (b Binding) appliesTo(ctx Context) bool {
	if b.Global {
		return true
	}
	for _, t := range b.Tools {
		if t == ctx.ToolName {
			return true
		}
	}
	for _, t := range b.ToolTypes {
		if t == ctx.ToolType {
			return true
		}
	}
	return false
}

// Hook is one stage of the output post-processing pipeline.
type Hook struct {
	Name     string
	Enabled  bool
	Priority Priority
	Rule     Rule
	Binding  Binding
	Process  Process
}
