package config

import (
	"os"
	"path/filepath"
)

// DataDir returns the default quarkdrive data directory.
// Uses XDG_DATA_HOME/quarkdrive, defaulting to ~/.local/share/quarkdrive.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "quarkdrive"), nil
}

// CacheDir returns the default quarkdrive cache directory.
// Uses XDG_CACHE_HOME/quarkdrive, defaulting to ~/.cache/quarkdrive.
func CacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "quarkdrive"), nil
}

// Dir returns the quarkdrive config directory.
// Uses XDG_CONFIG_HOME/quarkdrive, defaulting to ~/.config/quarkdrive.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "quarkdrive"), nil
}
