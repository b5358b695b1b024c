package settings

import (
	"github.com/wolfeidau/orgscope/internal/apperrors"
)

// Bearer is implemented by records that carry a settings document.
type Bearer interface {
	AllSettings() Document
	ReplaceSettings(doc Document)
}

// Manager applies a fixed set of defaults and validation rules to bearers.
type Manager struct {
	defaults Document
	rules    Rules
}

// NewManager creates a manager. The defaults are copied.
func NewManager(defaults Document, rules Rules) *Manager {
	return &Manager{defaults: Clone(defaults), rules: rules}
}

// Defaults returns a copy of the default document.
func (m *Manager) Defaults() Document {
	return Clone(m.defaults)
}

// Rules returns the validation rules.
func (m *Manager) Rules() Rules {
	return m.rules
}

// ApplyDefaults fills every missing leaf of b from the defaults, keeping every
// custom value.
func (m *Manager) ApplyDefaults(b Bearer) {
	b.ReplaceSettings(Merge(m.defaults, b.AllSettings()))
}

// Reset discards custom settings and restores the defaults.
func (m *Manager) Reset(b Bearer) {
	b.ReplaceSettings(m.Defaults())
}

// MergeOverrides merges overrides on top of the current settings of b.
func (m *Manager) MergeOverrides(b Bearer, overrides Document) {
	b.ReplaceSettings(Merge(b.AllSettings(), overrides))
}

// Validate checks the settings of b against the rules. Field keys are
// prefixed with "settings.".
func (m *Manager) Validate(b Bearer) error {
	fields := m.rules.Validate(b.AllSettings())
	if fields == nil {
		return nil
	}
	prefixed := make(map[string][]string, len(fields))
	for k, v := range fields {
		prefixed["settings."+k] = v
	}
	return apperrors.Validation(prefixed)
}
