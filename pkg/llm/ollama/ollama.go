// Package ollama provides a model client for a local Ollama server.
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/ollama/ollama/api"
)

const (
	// DefaultBaseURL is the default local Ollama endpoint
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is used when no model is configured
	DefaultModel = "llama3.2-vision"
)

// Provider implements llm.Client for Ollama.
type Provider struct {
	client      *api.Client
	model       string
	temperature *float64
	maxTokens   int
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	baseURL     string
	model       string
	timeout     time.Duration
	temperature *float64
	maxTokens   int
}

// WithBaseURL sets the Ollama server address.
func WithBaseURL(baseURL string) ProviderOption {
	return func(c *providerConfig) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithModel sets the model name.
func WithModel(model string) ProviderOption {
	return func(c *providerConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the HTTP timeout. Local inference can be slow.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(c *providerConfig) {
		c.timeout = timeout
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(c *providerConfig) {
		c.temperature = &t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) ProviderOption {
	return func(c *providerConfig) {
		c.maxTokens = n
	}
}

// NewProvider creates an Ollama client. The base URL falls back to OLLAMA_HOST.
func NewProvider(opts ...ProviderOption) (*Provider, error) {
	cfg := &providerConfig{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		timeout: 5 * time.Minute,
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.baseURL = host
	}
	for _, opt := range opts {
		opt(cfg)
	}

	parsedURL, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", cfg.baseURL, err)
	}

	return &Provider{
		client:      api.NewClient(parsedURL, &http.Client{Timeout: cfg.timeout}),
		model:       cfg.model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}, nil
}

// StartSession opens a chat session primed with systemPrompt.
func (p *Provider) StartSession(_ context.Context, systemPrompt string) (llm.Session, error) {
	return llm.NewChatSession(systemPrompt, p.complete), nil
}

// Model returns the model name.
func (p *Provider) Model() string {
	return p.model
}

// CloneWithModel returns a copy of p that targets model.
func (p *Provider) CloneWithModel(model string) llm.Client {
	clone := *p
	clone.model = model
	return &clone
}

func (p *Provider) complete(ctx context.Context, systemPrompt string, history []types.Turn) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: buildMessages(systemPrompt, history),
		Stream:   &stream,
	}
	if p.temperature != nil || p.maxTokens > 0 {
		req.Options = make(map[string]any)
		if p.temperature != nil {
			req.Options["temperature"] = *p.temperature
		}
		if p.maxTokens > 0 {
			req.Options["num_predict"] = p.maxTokens
		}
	}

	var reply strings.Builder
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	return reply.String(), nil
}

func buildMessages(systemPrompt string, history []types.Turn) []api.Message {
	messages := make([]api.Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemPrompt})
	}

	for _, turn := range history {
		msg := api.Message{Role: string(turn.Role)}
		var texts []string
		for _, block := range turn.Content {
			if block.Kind == types.BlockKindImage && block.Image != nil {
				data, err := base64.StdEncoding.DecodeString(block.Image.Data)
				if err == nil {
					msg.Images = append(msg.Images, api.ImageData(data))
				}
				continue
			}
			if text := block.PlainText(); text != "" {
				texts = append(texts, text)
			}
		}
		msg.Content = strings.Join(texts, "\n")
		messages = append(messages, msg)
	}
	return messages
}
