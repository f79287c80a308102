package extension

import "time"

// Config holds the settlement extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settlement" or "settlement" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Driver selects the store backend built from a grove.DB passed with
	// WithGroveDB: "postgres", "sqlite" or "mongo". Ignored when a store is
	// set directly; with neither, an in-memory store is used.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// MaxTouchedKeys caps the distinct (participant, currency) keys a single
	// session may touch. Zero means unbounded.
	MaxTouchedKeys int `json:"max_touched_keys" mapstructure:"max_touched_keys" yaml:"max_touched_keys"`

	// PluginTimeout bounds each after-hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// EnableTracing registers the OpenTelemetry tracing plugin against the
	// global tracer provider.
	EnableTracing bool `json:"enable_tracing" mapstructure:"enable_tracing" yaml:"enable_tracing"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PluginTimeout: 5 * time.Second,
	}
}
