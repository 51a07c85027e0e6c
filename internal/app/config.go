package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ModulePaths are compiled module files or directories loaded before
	// the command runs, e.g. modules imported by the inspected one.
	ModulePaths []string `mapstructure:"module_paths"`
	// SnapshotPath is a database snapshot restored at start and written
	// back after commands that change the scene.
	SnapshotPath  string `mapstructure:"snapshot"`
	LoadResources bool   `mapstructure:"load_resources"`

	LogFormat string `mapstructure:"log_format"`
	LogLevel  string `mapstructure:"log_level"`
	Output    string `mapstructure:"output"`
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Output == "" {
		cfg.Output = "yaml"
	}

	var errs []error
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel))
	}
	switch cfg.Output {
	case "yaml", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid output %q: must be 'yaml' or 'json'", cfg.Output))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
