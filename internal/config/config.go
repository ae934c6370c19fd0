// Package config resolves the engine's startup configuration: a YAML/JSON5
// config file (with $include support, see loader.go) layered under
// TOOLUNIVERSE_* environment overrides, per spec.md §6.
package config

import "strings"

// ServerConfig configures the MCP server adapter's transport.
type ServerConfig struct {
	Transport  string `yaml:"transport"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	MaxWorkers int    `yaml:"max_workers"`
}

// CacheConfig configures the two-tier result cache.
type CacheConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Persist           bool   `yaml:"persist"`
	MemorySize        int    `yaml:"memory_size"`
	DefaultTTLSeconds *int64 `yaml:"default_ttl"`
	Singleflight      bool   `yaml:"singleflight"`
	Path              string `yaml:"path"`
	Dir               string `yaml:"dir"`
	AsyncPersist      bool   `yaml:"async_persist"`
}

// LoaderConfig configures tool discovery and filtering.
type LoaderConfig struct {
	// Dir holds category config files, one named "<category>.json" (or
	// .yaml) per entry in ToolCategories.
	Dir               string   `yaml:"dir"`
	ToolCategories    []string `yaml:"tool_categories"`
	IncludeTools      []string `yaml:"include_tools"`
	ToolsFile         string   `yaml:"tools_file"`
	ExcludeTools      []string `yaml:"exclude_tools"`
	ExcludeCategories []string `yaml:"exclude_categories"`
	ExcludeToolTypes  []string `yaml:"exclude_tool_types"`
	LazyLoading       bool     `yaml:"lazy_loading"`
	StrictValidation  bool     `yaml:"strict_validation"`
}

// HooksConfig configures the output hook pipeline.
type HooksConfig struct {
	Enabled  bool   `yaml:"enabled"`
	HookType string `yaml:"hook_type"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	StdioMode bool   `yaml:"-"`
}

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Loader  LoaderConfig  `yaml:"loader"`
	Hooks   HooksConfig   `yaml:"hooks"`
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the defaults enumerated in spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:  "stdio",
			Host:       "127.0.0.1",
			Port:       8080,
			Name:       "toolengine",
			MaxWorkers: 8,
		},
		Cache: CacheConfig{
			Enabled:      true,
			Persist:      true,
			MemorySize:   256,
			Singleflight: true,
			AsyncPersist: true,
		},
		Loader: LoaderConfig{
			Dir:              "./tool_configs",
			LazyLoading:      true,
			StrictValidation: false,
		},
		Hooks: HooksConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads path (if non-empty) over DefaultConfig, resolving $include
// directives, then layers TOOLUNIVERSE_* environment overrides on top via
// ApplyEnv. lookup defaults to os.LookupEnv when nil.
func Load(path string, lookup EnvLookup) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(path) != "" {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, err
		}
		// Strict pass first: catches unknown keys/typos without disturbing
		// cfg, since decodeRawConfig decodes into its own throwaway value.
		if _, err := decodeRawConfig(raw); err != nil {
			return nil, err
		}
		// Merging pass: yaml.Unmarshal only overwrites fields present in
		// the document, so a file that never mentions "cache.enabled"
		// leaves DefaultConfig's true in place — unlike a bool-OR merge,
		// this also lets a file explicitly set a bool to false.
		if err := decodeInto(cfg, raw); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg, lookup)
	return cfg, nil
}
