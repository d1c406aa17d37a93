// Package settings manages persistent user settings for the portctl CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences
type Settings struct {
	// InventoryPath overrides the default device inventory file
	InventoryPath string `json:"inventory_path,omitempty"`

	// StoreRoot overrides the default audit store directory
	StoreRoot string `json:"store_root,omitempty"`

	// AuditLogPath overrides the default operation event log file
	AuditLogPath string `json:"audit_log_path,omitempty"`

	// Author is the principal recorded on commits when --author is not given
	Author string `json:"author,omitempty"`

	// PolicyPath points at an authorization policy file; empty runs open
	PolicyPath string `json:"policy_path,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "portctl_settings.json"
	}
	return filepath.Join(home, ".portctl", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}
