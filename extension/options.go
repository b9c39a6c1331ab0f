package extension

import (
	"time"

	subfund "github.com/xraph/subfund"
	"github.com/xraph/subfund/oracle"
	"github.com/xraph/subfund/plugin"
	"github.com/xraph/subfund/store"
)

// Option configures the Subfund Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithOracle sets the price/yield oracle adapter.
func WithOracle(a oracle.Adapter) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, subfund.WithOracle(a))
	}
}

// WithEngineOption passes a subfund.Option through to the underlying engine.
func WithEngineOption(opt subfund.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, subfund.WithPlugin(p))
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

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBatchLimit caps how many due subscriptions one batch run processes.
func WithBatchLimit(n int) Option {
	return func(e *Extension) { e.config.BatchLimit = n }
}

// WithBillingInterval enables the background billing worker.
func WithBillingInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.BillingInterval = d }
}
