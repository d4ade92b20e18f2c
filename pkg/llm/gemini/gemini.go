// Package gemini provides a model client backed by Google's Gemini API.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.0-flash"

// Provider implements llm.Client over a genai client. The underlying client
// is created on first use so construction never touches the network.
type Provider struct {
	apiKey      string
	model       string
	temperature *float32
	maxTokens   int32
	clientOpts  []option.ClientOption
	conn        *connection
}

// connection is shared between a provider and its clones.
type connection struct {
	once   sync.Once
	client *genai.Client
	err    error
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model name.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) {
		v := float32(t)
		p.temperature = &v
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = int32(n)
	}
}

// WithClientOptions passes extra google API client options.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// NewProvider creates a Gemini client. An empty apiKey falls back to GOOGLE_API_KEY.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (provide via parameter or GOOGLE_API_KEY environment variable)")
	}

	p := &Provider{apiKey: apiKey, model: DefaultModel, conn: &connection{}}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.conn.once.Do(func() {
		opts := append([]option.ClientOption{option.WithAPIKey(p.apiKey)}, p.clientOpts...)
		p.conn.client, p.conn.err = genai.NewClient(ctx, opts...)
	})
	return p.conn.client, p.conn.err
}

// StartSession opens a chat session primed with systemPrompt.
func (p *Provider) StartSession(ctx context.Context, systemPrompt string) (llm.Session, error) {
	if _, err := p.genaiClient(ctx); err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return llm.NewChatSession(systemPrompt, p.complete), nil
}

// Model returns the model name.
func (p *Provider) Model() string {
	return p.model
}

// CloneWithModel returns a copy of p that targets model and shares its client.
func (p *Provider) CloneWithModel(model string) llm.Client {
	clone := *p
	clone.model = model
	return &clone
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.conn.client == nil {
		return nil
	}
	return p.conn.client.Close()
}

func (p *Provider) complete(ctx context.Context, systemPrompt string, history []types.Turn) (string, error) {
	if len(history) == 0 {
		return "", errors.New("empty history")
	}

	client, err := p.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(p.model)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	if p.temperature != nil {
		model.SetTemperature(*p.temperature)
	}
	if p.maxTokens > 0 {
		model.SetMaxOutputTokens(p.maxTokens)
	}

	chat := model.StartChat()
	chat.History = toContents(history[:len(history)-1])

	resp, err := chat.SendMessage(ctx, toParts(history[len(history)-1])...)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return responseText(resp), nil
}

// toContents maps turns to genai contents; the assistant role is "model".
func toContents(turns []types.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		parts := toParts(turn)
		if len(parts) == 0 {
			continue
		}
		role := "user"
		if turn.Role == types.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func toParts(turn types.Turn) []genai.Part {
	parts := make([]genai.Part, 0, len(turn.Content))
	for _, block := range turn.Content {
		if block.Kind == types.BlockKindImage && block.Image != nil {
			data, err := base64.StdEncoding.DecodeString(block.Image.Data)
			if err != nil {
				continue
			}
			parts = append(parts, genai.ImageData(imageFormat(block.Image.Format), data))
			continue
		}
		if text := block.PlainText(); text != "" {
			parts = append(parts, genai.Text(text))
		}
	}
	return parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String()
}

func imageFormat(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpeg"
	case "":
		return "png"
	default:
		return strings.ToLower(format)
	}
}
