package headless

import (
	"fmt"
	"time"
)

// Config represents the configuration for a headless run
type Config struct {
	// Task description
	Task string `yaml:"task" json:"task"`

	// Timeout bounds the whole run; zero means no limit
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// JSON writes every event as one JSON object per line instead of text
	JSON bool `yaml:"json" json:"json"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Individual format flags
	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
	Events   bool `yaml:"events" json:"events"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Task == "" {
		return fmt.Errorf("task description is required")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts require an output directory")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Minute,
		Artifacts: ArtifactConfig{
			Enabled:   false,
			OutputDir: ".pilot/artifacts",
			JSON:      true,
			Markdown:  true,
			Events:    true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}
