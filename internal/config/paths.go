package config

import (
	"os"
	"path/filepath"
)

// DefaultPath returns the default config file location.
//
// Locations:
//   - Unix: ~/.config/pan115/config.ini
//   - Windows: %APPDATA%\pan115\config.ini
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "pan115", "config.ini")
		}
		return filepath.Join(homeDir, ".config", "pan115", "config.ini")
	}
	return filepath.Join(configDir, "pan115", "config.ini")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
// Uses 0700 permissions since the config carries session credentials.
func EnsureConfigDir() error {
	return os.MkdirAll(filepath.Dir(DefaultPath()), 0700)
}
