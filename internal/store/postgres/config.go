package postgres

import (
	"fmt"
)

// Config holds store-specific configuration for the PostgreSQL store.
// Pool configuration is handled separately via PoolConfig.
type Config struct {
	// AutoMigrate runs pending migrations when the store is created.
	AutoMigrate bool

	// QueryTimeoutSeconds bounds every transaction run through WithinTx.
	// Default: 10 seconds
	QueryTimeoutSeconds int32

	// MaxTxAttempts is how many times a transaction is tried when it fails
	// with a serialization failure or deadlock.
	// Default: 3
	MaxTxAttempts uint

	// PoolStatsIntervalSeconds controls how often pool statistics are logged.
	// Default: 30 seconds
	PoolStatsIntervalSeconds int32
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.QueryTimeoutSeconds < 0 {
		return fmt.Errorf("query timeout must not be negative")
	}
	if c.MaxTxAttempts == 0 {
		return fmt.Errorf("max transaction attempts must be at least 1")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10
	}
	if c.MaxTxAttempts == 0 {
		c.MaxTxAttempts = 3
	}
	if c.PoolStatsIntervalSeconds == 0 {
		c.PoolStatsIntervalSeconds = 30
	}
}
