// Package extension provides the Forge extension adapter for Subfund.
//
// It implements the forge.Extension interface to integrate Subfund
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.subfund" or
// "subfund" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	subfund "github.com/xraph/subfund"
	"github.com/xraph/subfund/store"
	"github.com/xraph/subfund/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "subfund"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription funding and recurring payment engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Subfund as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *subfund.Engine
	store      store.Store
	engineOpts []subfund.Option
}

// New creates a new Subfund Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Subfund engine.
// This is nil until Register is called.
func (e *Extension) Engine() *subfund.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := subfund.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*subfund.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("subfund: extension not initialized")
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
		return errors.New("subfund: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs subfund.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []subfund.Option {
	opts := make([]subfund.Option, 0, len(e.engineOpts)+2)

	if e.config.BatchLimit > 0 {
		opts = append(opts, subfund.WithBatchLimit(e.config.BatchLimit))
	}
	if e.config.BillingInterval > 0 {
		opts = append(opts, subfund.WithBillingInterval(e.config.BillingInterval))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("subfund: configuration is required but not found in config files; " +
				"ensure 'extensions.subfund' or 'subfund' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("subfund: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("batch_limit", e.config.BatchLimit),
		forge.F("billing_interval", e.config.BillingInterval),
		forge.F("oracle_max_age", e.config.OracleMaxAge),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.subfund" first (namespaced pattern).
	if cm.IsSet("extensions.subfund") {
		if err := cm.Bind("extensions.subfund", &cfg); err == nil {
			e.Logger().Debug("subfund: loaded config from file",
				forge.F("key", "extensions.subfund"),
			)
			return cfg, true
		}
		e.Logger().Warn("subfund: failed to bind extensions.subfund config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "subfund" key.
	if cm.IsSet("subfund") {
		if err := cm.Bind("subfund", &cfg); err == nil {
			e.Logger().Debug("subfund: loaded config from file",
				forge.F("key", "subfund"),
			)
			return cfg, true
		}
		e.Logger().Warn("subfund: failed to bind subfund config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BatchLimit == 0 {
		cfg.BatchLimit = defaults.BatchLimit
	}
	if cfg.OracleMaxAge == 0 {
		cfg.OracleMaxAge = defaults.OracleMaxAge
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.BatchLimit == 0 && programmaticConfig.BatchLimit != 0 {
		yamlConfig.BatchLimit = programmaticConfig.BatchLimit
	}
	if yamlConfig.BillingInterval == 0 && programmaticConfig.BillingInterval != 0 {
		yamlConfig.BillingInterval = programmaticConfig.BillingInterval
	}
	if yamlConfig.OracleMaxAge == 0 && programmaticConfig.OracleMaxAge != 0 {
		yamlConfig.OracleMaxAge = programmaticConfig.OracleMaxAge
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
