// Package config loads the service configuration from an optional
// YAML file; flags override individual fields.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir     string `yaml:"data_dir"`
	PageCacheMB int64  `yaml:"page_cache_mb"`
	LogLevel    string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		DataDir:     "data",
		PageCacheMB: 64,
		LogLevel:    "info",
	}
}

// Load reads path over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.PageCacheMB <= 0 {
		return cfg, fmt.Errorf("config %s: page_cache_mb must be positive", path)
	}
	return cfg, nil
}
