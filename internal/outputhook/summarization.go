package outputhook

import (
	"context"
	"time"

	"github.com/scitool/toolengine/pkg/tool"
)

// SummarizationOptions configures a SummarizationHook, matching the
// defaults in spec.md §4.8.
type SummarizationOptions struct {
	ChunkSize             int
	FocusAreas            string
	MaxSummaryLength      int
	ComposerTimeoutSeconds int
}

// DefaultSummarizationOptions returns spec.md §4.8's documented defaults.
func DefaultSummarizationOptions() SummarizationOptions {
	return SummarizationOptions{
		ChunkSize:              30000,
		FocusAreas:             "key_findings_and_results",
		MaxSummaryLength:       3000,
		ComposerTimeoutSeconds: 60,
	}
}

// NewSummarizationHook builds the Hook that delegates to composer (itself
// a tool.Instance) to summarize oversized results. Per spec.md §3/§4.8, on
// composer failure or timeout the original result is returned unchanged;
// the default rule triggers when the result's stringified length exceeds
// 5000 characters.
func NewSummarizationHook(name string, composer tool.Instance, opts SummarizationOptions, binding Binding) *Hook {
	return &Hook{
		Name:    name,
		Enabled: true,
		Rule: Rule{Conditions: []Condition{
			{Kind: ConditionOutputLength, Operator: OpGreater, Threshold: 5000},
		}},
		Binding: binding,
		Process: func(hctx Context, result any) (any, error) {
			return runSummarization(hctx, result, composer, opts)
		},
	}
}

func runSummarization(hctx Context, result any, composer tool.Instance, opts SummarizationOptions) (any, error) {
	timeout := time.Duration(opts.ComposerTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ctx := hctx.Extra
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := map[string]any{
		"tool_output":        stringify(result),
		"query_context":      hctx.Args,
		"tool_name":          hctx.ToolName,
		"chunk_size":         opts.ChunkSize,
		"focus_areas":        opts.FocusAreas,
		"max_summary_length": opts.MaxSummaryLength,
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := composer.Run(runCtx, args, tool.RunOptions{})
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return result, nil
		}
		summary, ok := extractSummary(o.value)
		if !ok {
			return result, nil
		}
		return summary, nil
	case <-runCtx.Done():
		return result, nil
	}
}

func extractSummary(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	summary, ok := m["summary"]
	if !ok {
		return "", false
	}
	s, ok := summary.(string)
	return s, ok
}
