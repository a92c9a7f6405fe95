// Package config handles ams configuration loading and defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the contents of .ams/config.yaml.
type Config struct {
	Project     ProjectConfig `yaml:"project"`
	AutoCommit  bool          `yaml:"auto_commit"`
	LockTimeout string        `yaml:"lock_timeout"`
	Color       string        `yaml:"color"` // auto, always, never
}

type ProjectConfig struct {
	Name string `yaml:"name"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Project: ProjectConfig{
			Name: "issues",
		},
		AutoCommit:  false,
		LockTimeout: "3s",
		Color:       "auto",
	}
}

// LockTimeoutDuration parses the configured lock timeout, falling back to
// the default on a bad value.
func (c Config) LockTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// Load reads config.yaml from path and applies defaults for missing fields.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = "issues"
	}
	if cfg.LockTimeout == "" {
		cfg.LockTimeout = "3s"
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}

	return cfg, nil
}

// Write writes the provided configuration to path.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	return Write(path, Default())
}
