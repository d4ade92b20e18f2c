// Package anthropic provides a model client backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "claude-sonnet-4-5"

	defaultMaxTokens = 4096
)

// Provider implements llm.Client for Anthropic models.
type Provider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	model       string
	maxTokens   int
	temperature *float64
	reqOpts     []option.RequestOption
}

// WithModel sets the model name.
func WithModel(model string) ProviderOption {
	return func(c *providerConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) ProviderOption {
	return func(c *providerConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(c *providerConfig) {
		c.temperature = &t
	}
}

// WithRequestOptions passes SDK request options such as a base URL or HTTP client.
func WithRequestOptions(opts ...option.RequestOption) ProviderOption {
	return func(c *providerConfig) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}

// NewProvider creates an Anthropic client. An empty apiKey falls back to ANTHROPIC_API_KEY.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (provide via parameter or ANTHROPIC_API_KEY environment variable)")
	}

	cfg := &providerConfig{model: DefaultModel, maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.reqOpts...)
	return &Provider{
		client:      anthropic.NewClient(reqOpts...),
		model:       cfg.model,
		maxTokens:   int64(cfg.maxTokens),
		temperature: cfg.temperature,
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
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  buildMessages(history),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if p.temperature != nil {
		params.Temperature = anthropic.Float(*p.temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// buildMessages converts turns to Anthropic message params. Images become
// base64 image blocks; structured blocks are sent as text.
func buildMessages(history []types.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, turn := range history {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Content))
		for _, block := range turn.Content {
			if block.Kind == types.BlockKindImage && block.Image != nil && turn.Role == types.RoleUser {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType(block.Image.Format), block.Image.Data))
				continue
			}
			if text := block.PlainText(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if turn.Role == types.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}
	return messages
}

func mediaType(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
