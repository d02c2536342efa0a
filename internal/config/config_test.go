package config

import (
	"testing"
)

func TestLoadShellConfigReturnsDefaultWhenAbsent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg, err := LoadShellConfig()
	if err != nil {
		t.Fatalf("LoadShellConfig() error = %v", err)
	}
	if cfg.ShellType == "" {
		t.Error("expected a non-empty default shell type")
	}
}

func TestSaveThenLoadShellConfigRoundTrips(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	want := ShellConfig{ShellType: "wsl", WSLDistro: "Ubuntu-24.04", WSLHomePath: "/home/dev"}
	if err := SaveShellConfig(want); err != nil {
		t.Fatalf("SaveShellConfig() error = %v", err)
	}

	got, err := LoadShellConfig()
	if err != nil {
		t.Fatalf("LoadShellConfig() error = %v", err)
	}
	if got != want {
		t.Errorf("LoadShellConfig() = %+v, want %+v", got, want)
	}
}

func TestDefaultShellConfigNonEmpty(t *testing.T) {
	if DefaultShellConfig().ShellType == "" {
		t.Error("expected default shell config to have a shell type")
	}
}
