package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttshist/internal/localstore"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/ttshist",
		LogDir:  "/home/user/.local/share/ttshist/log",
		Store:   StoreConfig{Type: "sqlite", DataDir: "/home/user/.local/share/ttshist/db"},
		History: HistoryConfig{MaxSize: 4096},
		Folder:  FolderConfig{Picker: "static", Path: "/music/tts"},
		Log:     LogConfig{ConsoleLevel: "debug"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if *got != *original {
		t.Errorf("round trip = %+v, want %+v", *got, *original)
	}
}

func TestManager_Read_Sections(t *testing.T) {
	input := `
log_dir = "/var/log/ttshist"

[store]
type = "memory"
quota = 1024

[history]
max_size = 2048

[folder]
picker = "none"
`
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.LogDir != "/var/log/ttshist" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/var/log/ttshist")
	}
	if cfg.Store.Type != "memory" || cfg.Store.Quota != 1024 {
		t.Errorf("Store = %+v, want memory with quota 1024", cfg.Store)
	}
	if cfg.History.MaxSize != 2048 {
		t.Errorf("History.MaxSize = %d, want 2048", cfg.History.MaxSize)
	}
	if cfg.Folder.Picker != "none" {
		t.Errorf("Folder.Picker = %q, want %q", cfg.Folder.Picker, "none")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/ttshist")

	if cfg.BaseDir != "/data/ttshist" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/ttshist")
	}
	if cfg.LogDir != "/data/ttshist/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/ttshist/log")
	}
	if cfg.Store.Type != "sqlite" {
		t.Errorf("Store.Type = %q, want %q", cfg.Store.Type, "sqlite")
	}
	if cfg.Store.DataDir != "/data/ttshist/db" {
		t.Errorf("Store.DataDir = %q, want %q", cfg.Store.DataDir, "/data/ttshist/db")
	}
	if cfg.History.MaxSize != localstore.DefaultMaxSize {
		t.Errorf("History.MaxSize = %d, want %d", cfg.History.MaxSize, localstore.DefaultMaxSize)
	}
	if cfg.Folder.Picker != "prompt" {
		t.Errorf("Folder.Picker = %q, want %q", cfg.Folder.Picker, "prompt")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"memory store", func(c *Config) { c.Store = StoreConfig{Type: "memory"} }, ""},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }, "unknown store type"},
		{"sqlite without data dir", func(c *Config) { c.Store.DataDir = "" }, "data_dir required"},
		{"negative max size", func(c *Config) { c.History.MaxSize = -1 }, "max_size"},
		{"static without path", func(c *Config) { c.Folder.Picker = "static" }, "folder.path required"},
		{"static with path", func(c *Config) { c.Folder = FolderConfig{Picker: "static", Path: "/x"} }, ""},
		{"unknown picker", func(c *Config) { c.Folder.Picker = "gui" }, "unknown folder picker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ttshist.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ttshist.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ttshist.toml")
		cfg := NewConfig(dir)
		cfg.History.MaxSize = 1000

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.History.MaxSize != 1000 {
			t.Errorf("History.MaxSize = %d, want 1000", got.History.MaxSize)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/ttshist.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
