// Package config holds all agentfabric configuration. Settings load from a
// YAML file with environment-variable overrides and sensible defaults, so a
// zero-config start works out of the box.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agentfabric configuration.
type Config struct {
	// Workspace paths
	Paths PathsConfig `yaml:"paths"`

	// Pipeline execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Workflow history settings
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the zap-backed category loggers.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Paths:     defaultPaths(),
		Execution: defaultExecution(),
		History:   defaultHistory(),
		Logging:   LoggingConfig{Debug: false, Level: "info"},
	}
}

// Load reads configuration from path, falling back to defaults for any
// missing section. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// applyEnvOverrides lets FABRIC_* environment variables override file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FABRIC_DATA_DIR"); v != "" {
		c.Paths = PathsFor(v)
	}
	if v := os.Getenv("FABRIC_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = b
		}
	}
	if v := os.Getenv("FABRIC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FABRIC_WORKFLOW_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Execution.WorkflowTimeout = d
		}
	}
	if v := os.Getenv("FABRIC_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Execution.StepTimeout = d
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.History.validate(); err != nil {
		return err
	}
	return nil
}
