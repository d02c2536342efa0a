// Package config holds the persisted shell defaults the PTY bridge falls
// back to when a /ws connection omits query-string shell parameters.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"github.com/forgeterm/terminal/internal/storage"
)

// ShellConfig mirrors the /ws query-string shell parameters: shell type
// plus the WSL-specific distro/home overrides.
type ShellConfig struct {
	ShellType   string `json:"shellType"`   // "bash", "zsh", "powershell", "cmd", or "wsl"
	WSLDistro   string `json:"wslDistro"`   // e.g. "Ubuntu-24.04"
	WSLHomePath string `json:"wslHomePath"` // passed to wsl.exe --cd; empty leaves WSL's default start directory
}

// DefaultShellConfig returns the baseline configuration for the host
// platform: cmd on Windows, bash-via-wsl elsewhere is not assumed, so
// non-Windows hosts default to a plain shell launch with no WSL overrides.
func DefaultShellConfig() ShellConfig {
	if runtime.GOOS == "windows" {
		return ShellConfig{ShellType: "cmd"}
	}
	return ShellConfig{ShellType: "bash"}
}

func configPath() string {
	return filepath.Join(storage.GetForgeDir(), "config.json")
}

// LoadShellConfig reads the persisted shell configuration, returning
// DefaultShellConfig if none has been saved yet.
func LoadShellConfig() (ShellConfig, error) {
	path := configPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultShellConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ShellConfig{}, err
	}

	var cfg ShellConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ShellConfig{}, err
	}
	return cfg, nil
}

// SaveShellConfig persists the shell configuration under ~/.forge/config.json.
func SaveShellConfig(cfg ShellConfig) error {
	dir := storage.GetForgeDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0600)
}
