package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the directory holding the job table, config file,
// and worker registry. QUEUECTL_DATA_DIR wins outright; otherwise standard
// per-OS locations are preferred with a dotdir fallback.
func DefaultDataDir() string {
	if v := os.Getenv("QUEUECTL_DATA_DIR"); v != "" {
		return v
	}

	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "queuectl")
	}

	// macOS: ~/Library/Application Support/queuectl
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "queuectl")
	}

	// Windows: %USERPROFILE%/AppData/Local/queuectl
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "queuectl")
	}

	// Fallback: ~/.queuectl
	return filepath.Join(homeDir, ".queuectl")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
