package app

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	gap "github.com/muesli/go-app-paths"
)

const appName = "ttshist"

// envDefaults are the environment overrides for default locations.
type envDefaults struct {
	ConfigPath string `env:"TTSHIST_CONFIG_PATH"`
	Home       string `env:"TTSHIST_HOME"`
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - TTSHIST_CONFIG_PATH: config file location (default: $XDG_CONFIG_HOME/ttshist/ttshist.toml)
//   - TTSHIST_HOME: base directory for ttshist data (default: $XDG_DATA_HOME/ttshist)
func GetDefaults() (map[string]string, error) {
	overrides, err := env.ParseAs[envDefaults]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	scope := gap.NewScope(gap.User, appName)

	configPath := overrides.ConfigPath
	if configPath == "" {
		configPath, err = scope.ConfigPath(appName + ".toml")
		if err != nil {
			return nil, fmt.Errorf("cannot determine config directory: %w", err)
		}
	}

	baseDir := overrides.Home
	if baseDir == "" {
		dirs, err := scope.DataDirs()
		if err != nil || len(dirs) == 0 {
			return nil, fmt.Errorf("cannot determine data directory: %v", err)
		}
		baseDir = dirs[0]
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}
