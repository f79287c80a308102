package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/plugin"
	"github.com/xraph/settlement/store"
)

// Option configures the settlement Forge extension.
type Option func(*Extension)

// WithStore sets the store for the settlement ledger.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from db using the configured Driver.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithLedgerOption passes a settlement.Option through to the underlying ledger.
func WithLedgerOption(opt settlement.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a settlement plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, settlement.WithPlugin(p))
	}
}

// WithCustodian switches Settle into transfer mode.
func WithCustodian(c settlement.Custodian) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, settlement.WithCustodian(c))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDriver sets the store backend built from the grove.DB.
func WithDriver(driver string) Option {
	return func(e *Extension) { e.config.Driver = driver }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxTouchedKeys caps the keys a single session may touch.
func WithMaxTouchedKeys(n int) Option {
	return func(e *Extension) { e.config.MaxTouchedKeys = n }
}

// WithPluginTimeout bounds each after-hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithTracing registers the OpenTelemetry tracing plugin.
func WithTracing() Option {
	return func(e *Extension) { e.config.EnableTracing = true }
}
