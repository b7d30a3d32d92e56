// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultLogbookPath returns the path where QLog keeps its database.
func DefaultLogbookPath() string {
	return filepath.Join(XDGDataHome(), "hamradio", "QLog", "qlog.db")
}

// DefaultQueriesPath returns the default saved-query file path.
func DefaultQueriesPath() string {
	return filepath.Join(XDGConfigHome(), "qlogstats", "queries.json")
}

// DefaultExportDir returns the default directory for exported files.
func DefaultExportDir() string {
	return filepath.Join(XDGDataHome(), "qlogstats", "exports")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "qlogstats", "config.toml")
}
