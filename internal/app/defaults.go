package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envConfigPath = "DEPOT_CONFIG_PATH"
	envHome       = "DEPOT_HOME"
)

// GetDefaults resolves the paths depot uses when the config file does not
// say otherwise. DEPOT_CONFIG_PATH overrides ~/.config/depot.toml and
// DEPOT_HOME overrides ~/.local/share/depot; the log directory and the
// workspace root live under the latter.
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(envConfigPath, ".config", "depot.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(envHome, ".local", "share", "depot")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":    configPath,
		"base_dir":       baseDir,
		"log_dir":        filepath.Join(baseDir, "log"),
		"workspace_root": filepath.Join(baseDir, "workspaces"),
	}, nil
}

// envOrHome returns $env when set, else the path under the home directory.
func envOrHome(env string, rel ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving %s: cannot determine home directory: %w", env, err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}
