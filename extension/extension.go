// Package extension provides the Forge extension adapter for settlement.
//
// It implements the forge.Extension interface to integrate a settlement
// ledger into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.settlement" or
// "settlement" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/observability"
	"github.com/xraph/settlement/store"
	"github.com/xraph/settlement/store/memory"
	"github.com/xraph/settlement/store/mongo"
	"github.com/xraph/settlement/store/postgres"
	"github.com/xraph/settlement/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settlement"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Session-locked settlement ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts a settlement ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *settlement.Ledger
	store      store.Store
	groveDB    *grove.DB
	ledgerOpts []settlement.Option
}

// New creates a new settlement Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *settlement.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := storeFor(e.config.Driver, e.groveDB)
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = settlement.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*settlement.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settlement: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("settlement: store not initialized")
	}
	return e.store.Ping(ctx)
}

// storeFor builds the backend named by driver on top of db.
func storeFor(driver string, db *grove.DB) (store.Store, error) {
	if db == nil {
		if driver != "" && driver != "memory" {
			return nil, fmt.Errorf("settlement: driver %q needs a grove database", driver)
		}
		return memory.New(), nil
	}

	switch driver {
	case "postgres", "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("settlement: unknown store driver %q", driver)
	}
}

// buildLedgerOpts constructs settlement.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []settlement.Option {
	opts := make([]settlement.Option, 0, len(e.ledgerOpts)+3)

	if e.config.MaxTouchedKeys > 0 {
		opts = append(opts, settlement.WithMaxTouchedKeys(e.config.MaxTouchedKeys))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, settlement.WithPluginTimeout(e.config.PluginTimeout))
	}
	if e.config.EnableTracing {
		opts = append(opts, settlement.WithPlugin(observability.NewTracingExtension(nil)))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settlement: configuration is required but not found in config files; " +
				"ensure 'extensions.settlement' or 'settlement' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("settlement: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
		forge.F("max_touched_keys", e.config.MaxTouchedKeys),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("enable_tracing", e.config.EnableTracing),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.settlement", "settlement"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("settlement: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("settlement: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableTracing {
		yamlConfig.EnableTracing = true
	}

	if yamlConfig.Driver == "" && programmaticConfig.Driver != "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.MaxTouchedKeys == 0 && programmaticConfig.MaxTouchedKeys != 0 {
		yamlConfig.MaxTouchedKeys = programmaticConfig.MaxTouchedKeys
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
