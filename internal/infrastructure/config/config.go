// Package config loads the runtime configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/agentflow/internal/infrastructure/messaging"
)

const configFile = "config.yaml"

// Config is the full runtime configuration, stored under the workspace's
// .agentflow directory.
type Config struct {
	AI        AIConfig                  `yaml:"ai"`
	Storage   StorageConfig             `yaml:"storage"`
	Server    ServerConfig              `yaml:"server"`
	Messaging []messaging.AdapterConfig `yaml:"messaging,omitempty"`
}

// AIConfig selects the model backend.
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Root    string `yaml:"root,omitempty"`
}

// ServerConfig configures the event stream server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file exists.
func Default(root string) *Config {
	return &Config{
		AI:      AIConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
		Storage: StorageConfig{Backend: "filesystem", Root: root},
		Server:  ServerConfig{Addr: ":8765"},
	}
}

// Load reads the config file under root, falling back to defaults when the
// file does not exist.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, ".agentflow", configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(root), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default(root)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = root
	}
	return cfg, nil
}

// Save writes the config file under root.
func Save(root string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	dir := filepath.Join(root, ".agentflow")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, configFile), data, 0600)
}
