package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/scitool/toolengine/internal/config"
	"github.com/scitool/toolengine/pkg/tool"
)

func TestKeywordSearchMatchesNameDescriptionAndTags(t *testing.T) {
	configs := []*tool.Config{
		tool.NewConfig("GetWeather", "stub", "fetches current weather", json.RawMessage(`{}`)),
		tool.NewConfig("GetStockPrice", "stub", "fetches a stock quote", json.RawMessage(`{}`)),
	}
	configs[0].Tags = []string{"weather"}
	configs[1].Tags = []string{"finance"}

	matches := keywordSearch(configs, "weather", nil, 10)
	if len(matches) != 1 || matches[0].Name != "GetWeather" {
		t.Fatalf("got %+v, want only GetWeather", matches)
	}
}

func TestKeywordSearchRespectsCategoryFilterAndLimit(t *testing.T) {
	configs := []*tool.Config{
		tool.NewConfig("A", "stub", "alpha tool", json.RawMessage(`{}`)),
		tool.NewConfig("B", "stub", "beta tool", json.RawMessage(`{}`)),
	}
	configs[0].Tags = []string{"science"}
	configs[1].Tags = []string{"finance"}

	matches := keywordSearch(configs, "tool", []string{"finance"}, 10)
	if len(matches) != 1 || matches[0].Name != "B" {
		t.Fatalf("got %+v, want only B (finance-tagged)", matches)
	}

	matches = keywordSearch(configs, "tool", nil, 1)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want limit of 1", len(matches))
	}
}

func TestResolveSourcesGlobsDirWhenNoCategoriesConfigured(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "science.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write category file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "finance.yaml"), []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write category file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(`ignored`), 0o644); err != nil {
		t.Fatalf("write non-config file: %v", err)
	}

	sources, err := resolveSources(config.LoaderConfig{Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2 (README.md excluded)", len(sources))
	}
	if sources[0].Category != "finance" || sources[1].Category != "science" {
		t.Fatalf("got %+v, want sorted [finance, science]", sources)
	}
}

func TestResolveSourcesMissingExplicitCategoryErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveSources(config.LoaderConfig{Dir: dir, ToolCategories: []string{"missing"}})
	if err == nil {
		t.Fatal("expected an error for a category with no matching file")
	}
}

func TestResolveSourcesMissingDirReturnsEmptyNotError(t *testing.T) {
	sources, err := resolveSources(config.LoaderConfig{Dir: filepath.Join(t.TempDir(), "does-not-exist")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sources != nil {
		t.Fatalf("got %+v, want nil sources for a missing directory", sources)
	}
}
