package tool

// Base implements the default, config-driven halves of Instance
// (cache key/namespace/version, caching/streaming flags, error
// classification, option acceptance) so concrete tools only need to embed
// it and provide Run and any ValidateParameters override. Mirrors the
// original's base_tool pattern, replacing its inheritance-by-duck-typing
// with an explicit embeddable struct.
type Base struct {
	Config *Config

	// VersionMarker seeds GetCacheVersion for tools without an
	// introspectable source identity (the normal case for compiled Go
	// tools); defaults to the tool's type tag when empty.
	VersionMarker string

	// AcceptedOptions lists the optional run parameters this tool honors.
	// Typical values: "stream_callback", "use_cache", "validate".
	AcceptedOptions map[string]bool
}

// NewBase constructs a Base bound to cfg.
func NewBase(cfg *Config) *Base {
	return &Base{Config: cfg}
}

func (b *Base) GetCacheKey(args map[string]any) string {
	return DefaultCacheKey(b.Config.Name, args)
}

func (b *Base) GetCacheNamespace() string {
	return b.Config.Name
}

func (b *Base) GetCacheVersion() string {
	marker := b.VersionMarker
	if marker == "" {
		marker = b.Config.Type
	}
	return DefaultCacheVersion(marker, b.Config.Name, b.Config.Parameter)
}

func (b *Base) GetCacheTTL(result any) *int64 {
	return b.Config.CacheTTLSeconds
}

func (b *Base) SupportsCaching() bool {
	return b.Config.Cacheable
}

func (b *Base) SupportsStreaming() bool {
	return b.Config.SupportsStreaming
}

func (b *Base) GetBatchConcurrencyLimit() int {
	return b.Config.ClampConcurrency()
}

func (b *Base) HandleError(err error) *ToolError {
	return ClassifyError(err)
}

func (b *Base) AcceptsOption(name string) bool {
	return b.AcceptedOptions[name]
}

// ValidateParameters is the zero-value default: no validation. Tools that
// want schema validation should use SchemaValidator (internal/tool) or
// override this method entirely.
func (b *Base) ValidateParameters(args map[string]any) error {
	return nil
}
