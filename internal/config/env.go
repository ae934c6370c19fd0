package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvLookup mirrors os.LookupEnv; overridable in tests.
type EnvLookup func(key string) (string, bool)

// ApplyEnv layers the TOOLUNIVERSE_* environment variables enumerated in
// spec.md §6 onto cfg. Unset or unparseable variables leave the existing
// value untouched.
func ApplyEnv(cfg *Config, lookup EnvLookup) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := boolEnv(lookup, "TOOLUNIVERSE_CACHE_ENABLED"); ok {
		cfg.Cache.Enabled = v
	}
	if v, ok := boolEnv(lookup, "TOOLUNIVERSE_CACHE_PERSIST"); ok {
		cfg.Cache.Persist = v
	}
	if v, ok := intEnv(lookup, "TOOLUNIVERSE_CACHE_MEMORY_SIZE"); ok {
		cfg.Cache.MemorySize = v
	}
	if v, ok := int64Env(lookup, "TOOLUNIVERSE_CACHE_DEFAULT_TTL"); ok {
		cfg.Cache.DefaultTTLSeconds = &v
	}
	if v, ok := boolEnv(lookup, "TOOLUNIVERSE_CACHE_SINGLEFLIGHT"); ok {
		cfg.Cache.Singleflight = v
	}
	if v, ok := lookup("TOOLUNIVERSE_CACHE_PATH"); ok && v != "" {
		cfg.Cache.Path = v
	}
	if v, ok := lookup("TOOLUNIVERSE_CACHE_DIR"); ok && v != "" {
		cfg.Cache.Dir = v
	}
	if v, ok := boolEnv(lookup, "TOOLUNIVERSE_CACHE_ASYNC_PERSIST"); ok {
		cfg.Cache.AsyncPersist = v
	}
	if v, ok := boolEnv(lookup, "TOOLUNIVERSE_LAZY_LOADING"); ok {
		cfg.Loader.LazyLoading = v
	}
	if v, ok := boolEnv(lookup, "TOOLUNIVERSE_STRICT_VALIDATION"); ok {
		cfg.Loader.StrictValidation = v
	}
	if v, ok := lookup("TOOLUNIVERSE_LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = strings.ToUpper(v)
	}
	if _, ok := lookup("TOOLUNIVERSE_STDIO_MODE"); ok {
		cfg.Logging.StdioMode = true
	}
}

func boolEnv(lookup EnvLookup, key string) (bool, bool) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func intEnv(lookup EnvLookup, key string) (int, bool) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func int64Env(lookup EnvLookup, key string) (int64, bool) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
