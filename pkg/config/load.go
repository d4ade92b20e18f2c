package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PILOT_EXECUTOR_STEP_CAP.
const EnvPrefix = "PILOT"

// apiKeyEnv names the conventional key variable of each provider.
var apiKeyEnv = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// Load reads the configuration. Precedence, highest first: PILOT_*
// environment variables and their legacy fallbacks, the config file, defaults.
// A .env file in the working directory is loaded into the environment first.
//
// With an empty path, config.yaml is looked up in the working directory and
// in ~/.pilot; a missing file there is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = lookupEnv(apiKeyEnv[cfg.LLM.Provider]...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores, e.g. gateway.base_url becomes PILOT_GATEWAY_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables understood by earlier deployments.
	_ = v.BindEnv("gateway.base_url", "PILOT_GATEWAY_BASE_URL", "MCP_SERVER_URL")
	_ = v.BindEnv("llm.model", "PILOT_LLM_MODEL", "LLM_MODEL_NAME")
}

// setDefaults registers every key of d so that environment overrides apply
// to keys absent from the config file.
func setDefaults(v *viper.Viper, d *Config) {
	for section, values := range d.toMap() {
		for key, value := range values.(map[string]interface{}) {
			v.SetDefault(section+"."+key, value)
		}
	}
}

func lookupEnv(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}

// toMap renders the config as nested maps with durations as strings, the
// shape of the YAML file.
func (c *Config) toMap() map[string]interface{} {
	return map[string]interface{}{
		"llm": map[string]interface{}{
			"provider":            c.LLM.Provider,
			"model":               c.LLM.Model,
			"api_key":             c.LLM.APIKey,
			"base_url":            c.LLM.BaseURL,
			"summarization_model": c.LLM.SummarizationModel,
			"temperature":         c.LLM.Temperature,
			"max_output_tokens":   c.LLM.MaxOutputTokens,
			"timeout":             c.LLM.Timeout.String(),
		},
		"gateway": map[string]interface{}{
			"base_url":           c.Gateway.BaseURL,
			"timeout":            c.Gateway.Timeout.String(),
			"page_info":          c.Gateway.PageInfo,
			"allowed_tools":      nonNil(c.Gateway.AllowedTools),
			"denied_tools":       nonNil(c.Gateway.DeniedTools),
			"validate_arguments": c.Gateway.ValidateArguments,
		},
		"executor": map[string]interface{}{
			"step_cap":            c.Executor.StepCap,
			"summarize_threshold": c.Executor.SummarizeThreshold,
			"keep_last_turns":     c.Executor.KeepLastTurns,
			"continuation_prompt": c.Executor.ContinuationPrompt,
			"custom_instructions": c.Executor.CustomInstructions,
			"token_estimator":     c.Executor.TokenEstimator,
			"event_buffer":        c.Executor.EventBuffer,
		},
		"session": map[string]interface{}{
			"idle_ttl":   c.Session.IdleTTL.String(),
			"sweep_spec": c.Session.SweepSpec,
		},
		"router": map[string]interface{}{
			"task_keywords": nonNil(c.Router.TaskKeywords),
		},
		"logging": map[string]interface{}{
			"level": c.Logging.Level,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
