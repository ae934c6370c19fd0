package outputhook

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/scitool/toolengine/pkg/tool"
)

type stubComposer struct {
	summary string
	delay   time.Duration
	err     error
}

func (s *stubComposer) Run(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"summary": s.summary}, nil
}

func (s *stubComposer) ValidateParameters(args map[string]any) error      { return nil }
func (s *stubComposer) HandleError(err error) *tool.ToolError             { return tool.ClassifyError(err) }
func (s *stubComposer) GetCacheKey(args map[string]any) string           { return "" }
func (s *stubComposer) GetCacheNamespace() string                        { return "Composer" }
func (s *stubComposer) GetCacheVersion() string                          { return "v1" }
func (s *stubComposer) GetCacheTTL(result any) *int64                    { return nil }
func (s *stubComposer) SupportsCaching() bool                            { return false }
func (s *stubComposer) SupportsStreaming() bool                          { return false }
func (s *stubComposer) GetBatchConcurrencyLimit() int                    { return 0 }
func (s *stubComposer) AcceptsOption(name string) bool                   { return false }

func TestSummarizationHookTriggersOnLongOutput(t *testing.T) {
	composer := &stubComposer{summary: strings.Repeat("s", 800)}
	hook := NewSummarizationHook("summarizer", composer, DefaultSummarizationOptions(), Binding{Global: true})

	longResult := strings.Repeat("x", 10000)
	if !hook.Rule.Matches(longResult, Context{}) {
		t.Fatal("expected rule to trigger on 10000-char result")
	}

	out, err := hook.Process(Context{ToolName: "Echo"}, longResult)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != composer.summary {
		t.Fatalf("got %v, want composer summary", out)
	}
}

func TestSummarizationHookFallsBackOnTimeout(t *testing.T) {
	composer := &stubComposer{summary: "too slow", delay: 100 * time.Millisecond}

	hook := NewSummarizationHook("summarizer", composer, SummarizationOptions{
		ChunkSize: 1, FocusAreas: "x", MaxSummaryLength: 1, ComposerTimeoutSeconds: 0,
	}, Binding{Global: true})

	longResult := strings.Repeat("x", 10000)
	out, err := hook.Process(Context{ToolName: "Echo", Extra: timeoutCtx()}, longResult)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != longResult {
		t.Fatalf("got %v, want original result on timeout", out)
	}
}

func timeoutCtx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	_ = cancel
	return ctx
}
