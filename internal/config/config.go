package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for depot.
type Config struct {
	InstanceID    string            `toml:"instance_id"`
	BaseDir       string            `toml:"base_dir"`
	LogDir        string            `toml:"log_dir"`
	LogLevel      string            `toml:"log_level"`      // "debug", "info", "warn" or "error"
	WorkspaceRoot string            `toml:"workspace_root"` // root of the local <owner>/<repo> tree
	CommitIDs     string            `toml:"commit_ids"`     // "uuid" (default) or "ulid"
	ObjectStore   ObjectStoreConfig `toml:"object_store"`
	Database      DatabaseConfig    `toml:"database"`
	Server        ServerConfig      `toml:"server"`
}

// ObjectStoreConfig represents configuration for the remote mirror.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ObjectStoreConfig struct {
	Type   string `toml:"type"` // "memory", "filesystem" or "s3"
	Bucket string `toml:"bucket"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3PathStyle       bool   `toml:"s3_path_style,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"` // 0 = unlimited
}

// DatabaseConfig represents configuration for the operation journal.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ServerConfig holds settings for `depot serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// NewConfig creates a new Config rooted at baseDir with default settings:
// a filesystem object store under baseDir/remote and a sqlite journal.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID:    instanceID,
		BaseDir:       baseDir,
		LogDir:        filepath.Join(baseDir, "log"),
		LogLevel:      "info",
		WorkspaceRoot: filepath.Join(baseDir, "workspaces"),
		CommitIDs:     "uuid",
		ObjectStore: ObjectStoreConfig{
			Type:   "filesystem",
			Bucket: "depot",
			FSRoot: filepath.Join(baseDir, "remote"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace_root must be set")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level: %s", c.LogLevel)
	}
	switch c.CommitIDs {
	case "", "uuid", "ulid":
	default:
		return fmt.Errorf("unknown commit_ids: %s", c.CommitIDs)
	}
	switch c.ObjectStore.Type {
	case "memory", "filesystem", "s3":
	default:
		return fmt.Errorf("unknown object store type: %s", c.ObjectStore.Type)
	}
	if c.ObjectStore.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	switch c.Database.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown database type: %s", c.Database.Type)
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

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// May hold S3 credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
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

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
