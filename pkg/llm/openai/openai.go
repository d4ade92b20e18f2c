// Package openai provides a model client for OpenAI-compatible chat APIs.
//
// Example usage:
//
//	client, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
//	session, _ := client.StartSession(ctx, "You are a helpful assistant.")
//	reply, _ := session.Send(ctx, "Hello!")
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o"
)

// Provider implements llm.Client for OpenAI-compatible APIs.
type Provider struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
	maxTokens   int
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the HTTP client timeout for each completion.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.httpClient.Timeout = timeout
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) {
		p.temperature = &t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY environment variable.
// If baseURL is not provided via WithBaseURL option, it will check OPENAI_BASE_URL environment variable.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimRight(envBaseURL, "/")
		}
	}

	return p, nil
}

// StartSession opens a chat session primed with systemPrompt.
func (p *Provider) StartSession(_ context.Context, systemPrompt string) (llm.Session, error) {
	return llm.NewChatSession(systemPrompt, p.complete), nil
}

// Model returns the model name being used.
func (p *Provider) Model() string {
	return p.model
}

// BaseURL returns the base URL being used for API requests.
func (p *Provider) BaseURL() string {
	return p.baseURL
}

// CloneWithModel returns a shallow copy of p configured to use the given model.
// The clone shares the HTTP client, API key, and base URL with the original.
func (p *Provider) CloneWithModel(model string) llm.Client {
	clone := *p
	clone.model = model
	return &clone
}

// complete streams one chat completion and returns the accumulated text.
func (p *Provider) complete(ctx context.Context, systemPrompt string, history []types.Turn) (string, error) {
	resp, err := p.sendStreamRequest(ctx, convertToOpenAIMessages(systemPrompt, history))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return readStream(resp.Body)
}

// sendStreamRequest creates and sends the HTTP request for streaming
func (p *Provider) sendStreamRequest(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": messages,
		"stream":   true,
	}
	if p.temperature != nil {
		reqBody["temperature"] = *p.temperature
	}
	if p.maxTokens > 0 {
		reqBody["max_tokens"] = p.maxTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// readStream accumulates content deltas from an SSE body until [DONE] or EOF.
// SSE comments and malformed chunks are skipped.
func readStream(body io.Reader) (string, error) {
	var content strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !isValidSSELine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return content.String(), nil
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read error: %w", err)
	}
	return content.String(), nil
}

// isValidSSELine checks if a line is a valid SSE data line
func isValidSSELine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

// convertToOpenAIMessages converts the system prompt and turns to OpenAI's
// message format. User turns carrying images become multi-part messages with
// data URLs; other non-text blocks are sent as their text rendering.
func convertToOpenAIMessages(systemPrompt string, history []types.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}

	for _, turn := range history {
		switch turn.Role {
		case types.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turnText(turn)))
		case types.RoleSystem:
			messages = append(messages, openai.SystemMessage(turnText(turn)))
		default:
			if len(turn.Images()) == 0 {
				messages = append(messages, openai.UserMessage(turnText(turn)))
				continue
			}
			messages = append(messages, openai.UserMessage(userParts(turn)))
		}
	}

	return messages
}

func userParts(turn types.Turn) []openai.ChatCompletionContentPartUnionParam {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(turn.Content))
	for _, block := range turn.Content {
		switch block.Kind {
		case types.BlockKindImage:
			if block.Image == nil {
				continue
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(*block.Image),
			}))
		default:
			if text := block.PlainText(); text != "" {
				parts = append(parts, openai.TextContentPart(text))
			}
		}
	}
	return parts
}

func turnText(turn types.Turn) string {
	parts := make([]string, 0, len(turn.Content))
	for _, block := range turn.Content {
		if text := block.PlainText(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func dataURL(img types.ImageData) string {
	format := img.Format
	if format == "" || format == "jpg" {
		format = "jpeg"
	}
	return "data:image/" + format + ";base64," + img.Data
}
