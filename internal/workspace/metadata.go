package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Metadata is the commit.json sidecar: { id, message, timestamp }.
type Metadata struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteMetadata writes commit.json into dir.
func WriteMetadata(dir string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding commit metadata: %w", err)
	}
	data = append(data, '\n')

	if _, err := WriteFile(filepath.Join(dir, MetadataFileName), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing commit metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads commit.json from dir.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("reading commit metadata: %w", err)
	}
	return DecodeMetadata(data)
}

// DecodeMetadata parses a commit.json body.
func DecodeMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding commit metadata: %w", err)
	}
	return &m, nil
}

// RepoConfig is the per-workspace config file written on creation.
type RepoConfig struct {
	Bucket     string `toml:"bucket"`
	Owner      string `toml:"owner"`
	Repository string `toml:"repository"`
}

// WriteRepoConfig encodes cfg as TOML at path.
func WriteRepoConfig(path string, cfg RepoConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding workspace config: %w", err)
	}
	if _, err := WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing workspace config: %w", err)
	}
	return nil
}

// ReadRepoConfig decodes the workspace config file at path.
func ReadRepoConfig(path string) (*RepoConfig, error) {
	var cfg RepoConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading workspace config: %w", err)
	}
	return &cfg, nil
}
