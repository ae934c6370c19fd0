// Package tool defines the public contract between the dispatch engine and
// individual tool implementations: the declarative ToolConfig, the live
// ToolInstance interface, and the ToolError taxonomy. Concrete tools are
// external collaborators; this package only fixes the shape they must honor.
package tool

import (
	"encoding/json"
)

// Config is the declarative, immutable descriptor for one tool. Configs are
// loaded once by internal/loader and never mutated afterward.
type Config struct {
	Name        string          `yaml:"name" json:"name"`
	Type        string          `yaml:"type" json:"type"`
	Description string          `yaml:"description" json:"description"`
	Parameter   json.RawMessage `yaml:"parameter" json:"parameter"`
	Return      json.RawMessage `yaml:"return,omitempty" json:"return,omitempty"`

	// Tags supports the loader's tool_categories filter independent of the
	// source config file name.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	RequiredAPIKeys []string `yaml:"required_api_keys,omitempty" json:"required_api_keys,omitempty"`
	OptionalAPIKeys []string `yaml:"optional_api_keys,omitempty" json:"optional_api_keys,omitempty"`

	// Cacheable defaults to true when absent; Loader decodes that default
	// before handing the Config to the registry.
	Cacheable bool `yaml:"cacheable" json:"cacheable"`

	// CacheTTLSeconds is nil when absent ("no expiry"); see DESIGN.md for
	// the ttl=0 vs ttl=nil decision.
	CacheTTLSeconds *int64 `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`

	// BatchMaxConcurrency of 0 means unlimited. Negative values are clamped
	// to 0 by NewConfig, never observed downstream.
	BatchMaxConcurrency int `yaml:"batch_max_concurrency,omitempty" json:"batch_max_concurrency,omitempty"`

	SupportsStreaming bool `yaml:"supports_streaming,omitempty" json:"supports_streaming,omitempty"`

	Deprecated        bool   `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	DeprecationMessage string `yaml:"deprecation_message,omitempty" json:"deprecation_message,omitempty"`

	// Extra carries opaque tool-specific configuration keys the loader does
	// not interpret, preserved verbatim for the tool constructor.
	Extra map[string]any `yaml:"-" json:"-"`
}

// NewConfig normalizes defaults the way the loader expects: Cacheable
// defaults true, negative concurrency clamps to zero.
func NewConfig(name, typeTag, description string, parameter json.RawMessage) *Config {
	return &Config{
		Name:        name,
		Type:        typeTag,
		Description: description,
		Parameter:   parameter,
		Cacheable:   true,
	}
}

// ClampConcurrency returns c.BatchMaxConcurrency with negative values clamped
// to 0 (unlimited), per spec.md §9's resolved open question.
func (c *Config) ClampConcurrency() int {
	if c.BatchMaxConcurrency < 0 {
		return 0
	}
	return c.BatchMaxConcurrency
}
