// Package config loads the organization configuration: default settings,
// settings validation rules, rate limits and invitation expiry.
//
// The embedded default.yaml is always loaded first; a user file only needs
// to name the values it changes.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/wolfeidau/orgscope/internal/settings"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Operation names a rate limited organization operation.
type Operation string

const (
	OpCreateOrganization Operation = "create_organization"
	OpUpdateOrganization Operation = "update_organization"
	OpDeleteOrganization Operation = "delete_organization"
	OpSwitchOrganization Operation = "switch_organization"
)

// RateLimit allows MaxAttempts per decay window. Enforcement is left to the
// caller.
type RateLimit struct {
	MaxAttempts  int `yaml:"max_attempts"`
	DecayMinutes int `yaml:"decay_minutes"`
}

// Decay returns the window length.
func (r RateLimit) Decay() time.Duration {
	return time.Duration(r.DecayMinutes) * time.Minute
}

// RateLimits maps operations to their limits.
type RateLimits map[Operation]RateLimit

// For returns the limit configured for op.
func (r RateLimits) For(op Operation) (RateLimit, bool) {
	l, ok := r[op]
	return l, ok
}

type Invitations struct {
	ExpirationDays int `yaml:"expiration_days"`
}

type Events struct {
	SubjectPrefix string `yaml:"subject_prefix"`
	Stream        string `yaml:"stream"`
	BufferSize    int    `yaml:"buffer_size"`
}

// Config is the organization configuration.
type Config struct {
	DefaultSettings settings.Document `yaml:"default_settings"`
	ValidationRules settings.Rules    `yaml:"validation_rules"`
	RateLimits      RateLimits        `yaml:"rate_limits"`
	Invitations     Invitations       `yaml:"invitations"`
	Events          Events            `yaml:"events"`
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the embedded defaults and merges the file at path over them.
// An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.Merge(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Merge overlays the YAML document in data. Settings are deep merged;
// rules and rate limits are replaced per key.
func (c *Config) Merge(data []byte) error {
	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return err
	}

	c.DefaultSettings = settings.Merge(c.DefaultSettings, override.DefaultSettings)

	if c.ValidationRules == nil {
		c.ValidationRules = settings.Rules{}
	}
	for path, rule := range override.ValidationRules {
		c.ValidationRules[path] = rule
	}

	if c.RateLimits == nil {
		c.RateLimits = RateLimits{}
	}
	for op, limit := range override.RateLimits {
		c.RateLimits[op] = limit
	}

	if override.Invitations.ExpirationDays != 0 {
		c.Invitations.ExpirationDays = override.Invitations.ExpirationDays
	}
	if override.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = override.Events.SubjectPrefix
	}
	if override.Events.Stream != "" {
		c.Events.Stream = override.Events.Stream
	}
	if override.Events.BufferSize != 0 {
		c.Events.BufferSize = override.Events.BufferSize
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultSettings == nil {
		c.DefaultSettings = settings.Document{}
	}
	if c.Invitations.ExpirationDays == 0 {
		c.Invitations.ExpirationDays = 7
	}
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 256
	}
}

// Validate checks that the configuration is valid, including that the
// default settings satisfy the validation rules.
func (c *Config) Validate() error {
	if c.Invitations.ExpirationDays < 1 {
		return fmt.Errorf("invitations.expiration_days must be at least 1")
	}
	if c.Events.BufferSize < 1 {
		return fmt.Errorf("events.buffer_size must be at least 1")
	}

	for op, limit := range c.RateLimits {
		if limit.MaxAttempts < 1 || limit.DecayMinutes < 1 {
			return fmt.Errorf("rate_limits.%s: max_attempts and decay_minutes must be positive", op)
		}
	}

	if fields := c.ValidationRules.Validate(c.DefaultSettings); fields != nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("default_settings do not satisfy validation_rules: %s", strings.Join(keys, ", "))
	}
	return nil
}

// SettingsManager returns a manager for the configured defaults and rules.
func (c *Config) SettingsManager() *settings.Manager {
	return settings.NewManager(c.DefaultSettings, c.ValidationRules)
}
