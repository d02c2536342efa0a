// Package storage locates and prepares the on-disk layout the AM subsystem
// writes to: a per-workspace .forge/am directory plus the user-level
// ~/.forge directory used for shell-hook helper scripts.
package storage

import (
	"os"
	"path/filepath"
)

// GetForgeDir returns the user-level Forge configuration directory,
// ~/.forge, independent of the current working directory.
func GetForgeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forge"
	}
	return filepath.Join(home, ".forge")
}

// GetAMDir returns the per-workspace AM directory, <cwd>/.forge/am.
func GetAMDir() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".forge", "am")
}

// GetArchiveDir returns the archive subdirectory under the AM directory.
func GetArchiveDir() string {
	return filepath.Join(GetAMDir(), "archive")
}

// EnsureDirectories creates the .forge/am and .forge/am/archive directories
// under the current working directory if they don't already exist.
func EnsureDirectories() error {
	if err := os.MkdirAll(GetAMDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(GetArchiveDir(), 0755)
}
