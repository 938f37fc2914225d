package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"ttshist/internal/localstore"
)

// Config represents the main configuration for ttshist.
type Config struct {
	BaseDir string        `toml:"base_dir"`
	LogDir  string        `toml:"log_dir"`
	Store   StoreConfig   `toml:"store"`
	History HistoryConfig `toml:"history"`
	Folder  FolderConfig  `toml:"folder"`
	Log     LogConfig     `toml:"log"`
}

// StoreConfig represents configuration for the key/value store behind the
// bounded history backend and the persisted folder hint.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	Quota   int64  `toml:"quota,omitempty"`    // only used for type=memory; 0 means unlimited
}

// HistoryConfig holds bounded backend settings.
type HistoryConfig struct {
	MaxSize int64 `toml:"max_size"` // total audio bytes; must be positive, defaults to 20MiB
}

// FolderConfig selects how durable directories are granted.
// This uses a tagged union pattern - the Picker field determines which other fields are relevant.
type FolderConfig struct {
	Picker string `toml:"picker"`         // "prompt", "static" or "none"
	Path   string `toml:"path,omitempty"` // only used for picker=static
}

// LogConfig holds logging settings.
type LogConfig struct {
	ConsoleLevel string `toml:"console_level"` // "debug", "info", "warn" or "error"
}

// NewConfig creates a new Config with default values rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		History: HistoryConfig{MaxSize: localstore.DefaultMaxSize},
		Folder:  FolderConfig{Picker: "prompt"},
		Log:     LogConfig{ConsoleLevel: "warn"},
	}
}

// Validate checks the tagged unions for missing or unknown values.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "sqlite":
		if c.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir required for sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}

	if c.History.MaxSize < 0 {
		return fmt.Errorf("history.max_size must be positive, got %d", c.History.MaxSize)
	}

	switch c.Folder.Picker {
	case "prompt", "none":
	case "static":
		if c.Folder.Path == "" {
			return fmt.Errorf("folder.path required for static picker")
		}
	default:
		return fmt.Errorf("unknown folder picker: %q", c.Folder.Picker)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
