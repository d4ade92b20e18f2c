package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is used when no server URL is configured.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout bounds each request to the tool server.
	DefaultTimeout = 300 * time.Second

	// PageInfoTool is executed after every call when page info is enabled.
	PageInfoTool = "get_page_info"
)

// HTTPGateway talks to a tool server exposing /health, /tools,
// /tools/execute and /sessions/{id}.
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	pageInfo   bool

	mu        sync.RWMutex
	sessionID string
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithHTTPClient sets the client used for all requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(g *HTTPGateway) {
		if timeout > 0 {
			g.httpClient.Timeout = timeout
		}
	}
}

// WithPageInfo appends the result of get_page_info to every tool result.
func WithPageInfo(enabled bool) HTTPOption {
	return func(g *HTTPGateway) {
		g.pageInfo = enabled
	}
}

// WithSessionID pins the server-side session id instead of generating one.
func WithSessionID(id string) HTTPOption {
	return func(g *HTTPGateway) {
		g.sessionID = id
	}
}

// NewHTTPGateway creates a gateway for the server at baseURL.
// Falls back to MCP_SERVER_URL, then DefaultBaseURL.
func NewHTTPGateway(baseURL string, opts ...HTTPOption) *HTTPGateway {
	if baseURL == "" {
		baseURL = os.Getenv("MCP_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	g := &HTTPGateway{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the server URL.
func (g *HTTPGateway) BaseURL() string {
	return g.baseURL
}

// SessionID returns the server-side session id, empty before Initialize.
func (g *HTTPGateway) SessionID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sessionID
}

// Initialize checks the server health endpoint and assigns a session id.
func (g *HTTPGateway) Initialize(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp.Body.Close()

	g.mu.Lock()
	if g.sessionID == "" {
		g.sessionID = uuid.New().String()
	}
	id := g.sessionID
	g.mu.Unlock()

	debugLog.Infof("Gateway %s initialized with session %s", g.baseURL, id)
	return nil
}

type listToolsResponse struct {
	Tools []tools.Spec `json:"tools"`
}

// ListTools fetches the tool catalogue. Entries without a name are skipped.
func (g *HTTPGateway) ListTools(ctx context.Context) ([]tools.Spec, error) {
	resp, err := g.do(ctx, http.MethodGet, "/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	defer resp.Body.Close()

	var body listToolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode tool list: %w", err)
	}

	specs := make([]tools.Spec, 0, len(body.Tools))
	for _, spec := range body.Tools {
		if spec.Name == "" {
			debugLog.Warnf("Skipping tool spec without a name: %+v", spec)
			continue
		}
		if spec.InputSchema == nil {
			spec.InputSchema = map[string]interface{}{}
		}
		specs = append(specs, spec)
	}
	debugLog.Debugf("Parsed tools: %v", tools.Names(specs))
	return specs, nil
}

type executeRequest struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	SessionID string                 `json:"session_id"`
}

type executeResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

// Execute runs one tool on the server. Failures of any kind come back as
// error-classified results carrying a single text block.
func (g *HTTPGateway) Execute(ctx context.Context, name string, args map[string]interface{}, invocationID string) types.ToolResult {
	if invocationID == "" {
		invocationID = uuid.New().String()
	}

	sessionID := g.SessionID()
	if sessionID == "" {
		return types.NewErrorResult(invocationID, fmt.Sprintf("Error executing tool %s: %v", name, ErrNotInitialized))
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	debugLog.Debugf("Executing tool %s with arguments %v", name, args)
	resp, err := g.execute(ctx, name, args, sessionID)
	if err != nil {
		msg := fmt.Sprintf("Error executing tool %s: %v", name, err)
		debugLog.Errorf("%s", msg)
		return types.NewErrorResult(invocationID, msg)
	}

	result := types.ToolResult{InvocationID: invocationID}
	if resp.Success {
		result.Blocks = append(result.Blocks, resultBlock(resp.Result))
	} else {
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		result.Blocks = append(result.Blocks, types.TextBlock("Error: "+errMsg))
		result.IsError = true
	}

	if g.pageInfo && name != PageInfoTool {
		if page, ok := g.currentPage(ctx, sessionID); ok {
			result.Blocks = append(result.Blocks, types.TextBlock("Current page: "+page))
		}
	}

	result.Classification = result.Classify()
	return result
}

// Close deletes the server-side session. Safe to call more than once.
func (g *HTTPGateway) Close(ctx context.Context) error {
	g.mu.Lock()
	id := g.sessionID
	g.sessionID = ""
	g.mu.Unlock()

	if id == "" {
		return nil
	}

	resp, err := g.do(ctx, http.MethodDelete, "/sessions/"+id, nil)
	if err != nil {
		debugLog.Warnf("Error cleaning up session %s: %v", id, err)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	resp.Body.Close()
	return nil
}

func (g *HTTPGateway) execute(ctx context.Context, name string, args map[string]interface{}, sessionID string) (*executeResponse, error) {
	resp, err := g.do(ctx, http.MethodPost, "/tools/execute", executeRequest{
		ToolName:  name,
		Arguments: args,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// currentPage runs get_page_info; any failure just omits the page line.
func (g *HTTPGateway) currentPage(ctx context.Context, sessionID string) (string, bool) {
	resp, err := g.execute(ctx, PageInfoTool, map[string]interface{}{}, sessionID)
	if err != nil {
		debugLog.Warnf("Error getting page info: %v", err)
		return "", false
	}
	if !resp.Success {
		return "", false
	}
	return stringify(resp.Result), true
}

// do sends a request and fails on any non-2xx status.
func (g *HTTPGateway) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

// resultBlock converts a successful result payload into a content block.
// Objects naming a .png/.jpg/.jpeg file become images when the file can be
// read, objects carrying inline base64 image data become images, other
// objects become structured blocks and anything else becomes text.
func resultBlock(raw json.RawMessage) types.ContentBlock {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return types.TextBlock(stringify(raw))
	}

	if filename, _ := obj["filename"].(string); isImageFile(filename) {
		path, _ := obj["path"].(string)
		if path == "" {
			path = filename
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return types.StructuredBlock(map[string]interface{}{"text": "Screenshot saved: " + filename})
			}
			debugLog.Warnf("Could not read image file %s: %v", path, err)
			return types.StructuredBlock(map[string]interface{}{"text": string(raw)})
		}
		return types.ImageBlock(imageFormat(path), base64.StdEncoding.EncodeToString(data))
	}

	if block, ok := inlineImage(obj); ok {
		return block
	}

	return types.StructuredBlock(map[string]interface{}{"text": compactJSON(raw)})
}

// inlineImage recognises {"image": "<b64>"} and {"data": "<b64>", "format": "..."}.
func inlineImage(obj map[string]interface{}) (types.ContentBlock, bool) {
	for _, key := range []string{"image", "data"} {
		encoded, ok := obj[key].(string)
		if !ok || encoded == "" {
			continue
		}
		if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
			continue
		}
		format, _ := obj["format"].(string)
		if format == "" {
			format = "png"
		}
		return types.ImageBlock(format, encoded), true
	}
	return types.ContentBlock{}, false
}

func isImageFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}

func imageFormat(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
		return "jpeg"
	}
	return "png"
}

// stringify renders a scalar JSON value as plain text. Strings lose their
// quotes; null becomes empty.
func stringify(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return compactJSON(trimmed)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
