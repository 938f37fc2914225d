package app

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("TTSHIST_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("TTSHIST_HOME", "/custom/ttshist")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/ttshist" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/ttshist")
		}
		if defaults["log_dir"] != "/custom/ttshist/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/ttshist/log")
		}
	})

	t.Run("falls back to XDG locations", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("TTSHIST_CONFIG_PATH", "")
		t.Setenv("TTSHIST_HOME", "")
		t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
		t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		wantConfig := filepath.Join(home, "config", "ttshist", "ttshist.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}
		if !strings.HasSuffix(defaults["base_dir"], "ttshist") {
			t.Errorf("base_dir = %q, want a ttshist data directory", defaults["base_dir"])
		}
		if defaults["log_dir"] != filepath.Join(defaults["base_dir"], "log") {
			t.Errorf("log_dir = %q", defaults["log_dir"])
		}
	})
}
