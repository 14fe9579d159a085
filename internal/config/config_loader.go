package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Load reads path (YAML or JSON), applies env overrides on top of defaults and
// validates the result. A missing file is not an error: defaults plus env are
// used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := loadFile(expandHome(path), cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			log.WithField("path", path).Warn("using default configuration (no config file found)")
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate().Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, into); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, into); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, into); err != nil {
			if err := json.Unmarshal(data, into); err != nil {
				return fmt.Errorf("failed to parse config file (tried YAML and JSON)")
			}
		}
	}

	log.WithField("path", path).Info("configuration loaded")
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ExpandPaths resolves "~" in filesystem settings.
func (c *Config) ExpandPaths() {
	c.Storage.BaseDir = expandHome(c.Storage.BaseDir)
	c.Security.LogFile = expandHome(c.Security.LogFile)
}
