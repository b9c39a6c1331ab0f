package extension

import "time"

// Config holds the Subfund extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.subfund" or "subfund" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BatchLimit caps how many due subscriptions one payment batch run
	// processes (default: 100).
	BatchLimit int `json:"batch_limit" mapstructure:"batch_limit" yaml:"batch_limit"`

	// BillingInterval is how often the background billing worker runs
	// due-payment batches. Zero disables the worker; batches then run
	// only when ProcessDuePayments is called directly.
	BillingInterval time.Duration `json:"billing_interval" mapstructure:"billing_interval" yaml:"billing_interval"`

	// OracleMaxAge bounds the accepted age of oracle feeds. Zero disables
	// the staleness check.
	OracleMaxAge time.Duration `json:"oracle_max_age" mapstructure:"oracle_max_age" yaml:"oracle_max_age"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchLimit:   100,
		OracleMaxAge: time.Minute,
	}
}
