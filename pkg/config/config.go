// Package config loads pilot's settings from a YAML file, the environment
// and .env files, and builds the model client and tool gateway they describe.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete pilot configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Gateway  GatewayConfig  `mapstructure:"gateway" yaml:"gateway"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Router   RouterConfig   `mapstructure:"router" yaml:"router"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider           string        `mapstructure:"provider" yaml:"provider" validate:"oneof=openai anthropic gemini ollama"`
	Model              string        `mapstructure:"model" yaml:"model" validate:"required"`
	APIKey             string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	SummarizationModel string        `mapstructure:"summarization_model" yaml:"summarization_model"` // optional; if empty, summarization uses Model
	Temperature        float64       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens    int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens" validate:"gte=0"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// GatewayConfig describes the remote tool gateway.
type GatewayConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	PageInfo          bool          `mapstructure:"page_info" yaml:"page_info"`
	AllowedTools      []string      `mapstructure:"allowed_tools" yaml:"allowed_tools"`
	DeniedTools       []string      `mapstructure:"denied_tools" yaml:"denied_tools"`
	ValidateArguments bool          `mapstructure:"validate_arguments" yaml:"validate_arguments"`
}

// ExecutorConfig tunes the tool loop and conversation memory.
type ExecutorConfig struct {
	StepCap            int    `mapstructure:"step_cap" yaml:"step_cap" validate:"min=1"`
	SummarizeThreshold int    `mapstructure:"summarize_threshold" yaml:"summarize_threshold" validate:"min=1"`
	KeepLastTurns      int    `mapstructure:"keep_last_turns" yaml:"keep_last_turns" validate:"min=1"`
	ContinuationPrompt string `mapstructure:"continuation_prompt" yaml:"continuation_prompt"`
	CustomInstructions string `mapstructure:"custom_instructions" yaml:"custom_instructions"`
	TokenEstimator     string `mapstructure:"token_estimator" yaml:"token_estimator" validate:"oneof=chars tiktoken"`
	EventBuffer        int    `mapstructure:"event_buffer" yaml:"event_buffer" validate:"gte=0"`
}

// SessionConfig controls idle session expiry.
type SessionConfig struct {
	IdleTTL   time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl" validate:"gt=0"`
	SweepSpec string        `mapstructure:"sweep_spec" yaml:"sweep_spec" validate:"required"`
}

// RouterConfig lists the keywords that send a chat message to task mode.
type RouterConfig struct {
	TaskKeywords []string `mapstructure:"task_keywords" yaml:"task_keywords"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o",
			Temperature:     0.2,
			MaxOutputTokens: 4096,
			Timeout:         120 * time.Second,
		},
		Gateway: GatewayConfig{
			BaseURL:           "http://localhost:8080",
			Timeout:           300 * time.Second,
			PageInfo:          true,
			AllowedTools:      []string{},
			DeniedTools:       []string{},
			ValidateArguments: true,
		},
		Executor: ExecutorConfig{
			StepCap:            40,
			SummarizeThreshold: 50000,
			KeepLastTurns:      1,
			TokenEstimator:     "chars",
			EventBuffer:        64,
		},
		Session: SessionConfig{
			IdleTTL:   30 * time.Minute,
			SweepSpec: "@every 1m",
		},
		Router: RouterConfig{
			TaskKeywords: []string{
				"search", "navigate", "browse", "screenshot", "click",
				"research", "analyze", "find", "download",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// DefaultDir returns ~/.pilot.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pilot"), nil
}

// DefaultPath returns ~/.pilot/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
