package config

import (
	"fmt"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/llm/anthropic"
	"github.com/entrhq/pilot/pkg/llm/gemini"
	"github.com/entrhq/pilot/pkg/llm/ollama"
	"github.com/entrhq/pilot/pkg/llm/openai"
)

// BuildClient creates the model client named by cfg.Provider.
func BuildClient(cfg LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return buildOpenAI(cfg)
	case "anthropic":
		return buildAnthropic(cfg)
	case "gemini":
		return buildGemini(cfg)
	case "ollama":
		return buildOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func buildOpenAI(cfg LLMConfig) (llm.Client, error) {
	opts := []openai.ProviderOption{
		openai.WithModel(cfg.Model),
		openai.WithTemperature(cfg.Temperature),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxOutputTokens > 0 {
		opts = append(opts, openai.WithMaxTokens(cfg.MaxOutputTokens))
	}

	provider, err := openai.NewProvider(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}

func buildAnthropic(cfg LLMConfig) (llm.Client, error) {
	opts := []anthropic.ProviderOption{
		anthropic.WithModel(cfg.Model),
		anthropic.WithTemperature(cfg.Temperature),
	}
	if cfg.MaxOutputTokens > 0 {
		opts = append(opts, anthropic.WithMaxTokens(cfg.MaxOutputTokens))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithRequestOptions(anthropicopt.WithBaseURL(cfg.BaseURL)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropic.WithRequestOptions(anthropicopt.WithRequestTimeout(cfg.Timeout)))
	}

	provider, err := anthropic.NewProvider(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}

func buildGemini(cfg LLMConfig) (llm.Client, error) {
	opts := []gemini.ProviderOption{
		gemini.WithModel(cfg.Model),
		gemini.WithTemperature(cfg.Temperature),
	}
	if cfg.MaxOutputTokens > 0 {
		opts = append(opts, gemini.WithMaxTokens(cfg.MaxOutputTokens))
	}

	provider, err := gemini.NewProvider(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}

func buildOllama(cfg LLMConfig) (llm.Client, error) {
	opts := []ollama.ProviderOption{
		ollama.WithModel(cfg.Model),
		ollama.WithBaseURL(cfg.BaseURL),
		ollama.WithTemperature(cfg.Temperature),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, ollama.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxOutputTokens > 0 {
		opts = append(opts, ollama.WithMaxTokens(cfg.MaxOutputTokens))
	}

	provider, err := ollama.NewProvider(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}
