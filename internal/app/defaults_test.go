package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("DEPOT_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("DEPOT_HOME", "/custom/depot")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := map[string]string{
			"config_path":    "/custom/config.toml",
			"base_dir":       "/custom/depot",
			"log_dir":        "/custom/depot/log",
			"workspace_root": "/custom/depot/workspaces",
		}
		for key, v := range want {
			if defaults[key] != v {
				t.Errorf("%s = %q, want %q", key, defaults[key], v)
			}
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("DEPOT_CONFIG_PATH", "")
		t.Setenv("DEPOT_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "depot.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "depot")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults["log_dir"] != wantLog {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], wantLog)
		}
	})
}

func TestEnvOrHome(t *testing.T) {
	t.Setenv("DEPOT_TEST_PATH", "")
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name string
		env  string
		rel  []string
		want string
	}{
		{"env wins", "/from/env", []string{"ignored"}, "/from/env"},
		{"nested under home", "", []string{"a", "b", "c.toml"}, filepath.Join(homeDir, "a", "b", "c.toml")},
		{"home itself", "", nil, homeDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEPOT_TEST_PATH", tt.env)
			got, err := envOrHome("DEPOT_TEST_PATH", tt.rel...)
			if err != nil {
				t.Fatalf("envOrHome() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("envOrHome() = %q, want %q", got, tt.want)
			}
		})
	}
}
