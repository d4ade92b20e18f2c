package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/entrhq/pilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toolServer is a scripted tool server recording the requests it receives.
type toolServer struct {
	mu       sync.Mutex
	requests []executeRequest
	deleted  []string
	results  map[string]executeResponse
}

func newToolServer(t *testing.T) (*toolServer, *httptest.Server) {
	ts := &toolServer{results: make(map[string]executeResponse)}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tools":[
			{"name":"navigate","description":"Open a URL","input_schema":{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}},
			{"description":"nameless"},
			{"name":"screenshot","description":"Capture the page"}
		]}`))
	})
	mux.HandleFunc("/tools/execute", func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		ts.mu.Lock()
		ts.requests = append(ts.requests, req)
		resp, ok := ts.results[req.ToolName]
		ts.mu.Unlock()
		if !ok {
			resp = executeResponse{Success: false, Error: "unknown tool " + req.ToolName}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		ts.mu.Lock()
		ts.deleted = append(ts.deleted, filepath.Base(r.URL.Path))
		ts.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return ts, server
}

func (ts *toolServer) respond(tool string, resp executeResponse) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.results[tool] = resp
}

func (ts *toolServer) executed() []executeRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]executeRequest(nil), ts.requests...)
}

func initializedGateway(t *testing.T, url string, opts ...HTTPOption) *HTTPGateway {
	gw := NewHTTPGateway(url, opts...)
	require.NoError(t, gw.Initialize(context.Background()))
	require.NotEmpty(t, gw.SessionID())
	return gw
}

func TestHTTPGateway_InitializeFailsOnUnhealthyServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gw := NewHTTPGateway(server.URL)
	err := gw.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Empty(t, gw.SessionID())
}

func TestHTTPGateway_ExecuteBeforeInitialize(t *testing.T) {
	gw := NewHTTPGateway("http://127.0.0.1:1")
	result := gw.Execute(context.Background(), "navigate", nil, "inv-1")

	assert.True(t, result.IsError)
	assert.Equal(t, types.ClassificationError, result.Classification)
	assert.Equal(t, "inv-1", result.InvocationID)
	assert.Contains(t, result.Blocks[0].Text, "Error executing tool navigate")
}

func TestHTTPGateway_ListTools(t *testing.T) {
	_, server := newToolServer(t)
	gw := initializedGateway(t, server.URL)

	specs, err := gw.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "navigate", specs[0].Name)
	assert.Equal(t, "Open a URL", specs[0].Description)
	assert.Equal(t, "object", specs[0].InputSchema["type"])
	assert.Equal(t, "screenshot", specs[1].Name)
	assert.NotNil(t, specs[1].InputSchema)
}

func TestHTTPGateway_Execute(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(pngPath, []byte("fake-png"), 0o600))
	encoded := base64.StdEncoding.EncodeToString([]byte("fake-png"))

	tests := []struct {
		name     string
		response executeResponse
		check    func(t *testing.T, result types.ToolResult)
	}{
		{
			name:     "string result becomes text",
			response: executeResponse{Success: true, Result: json.RawMessage(`"Navigated to https://x.com"`)},
			check: func(t *testing.T, result types.ToolResult) {
				require.Len(t, result.Blocks, 1)
				assert.Equal(t, types.TextBlock("Navigated to https://x.com"), result.Blocks[0])
				assert.Equal(t, types.ClassificationText, result.Classification)
			},
		},
		{
			name:     "object result becomes structured",
			response: executeResponse{Success: true, Result: json.RawMessage(`{"title": "Home", "links": 3}`)},
			check: func(t *testing.T, result types.ToolResult) {
				require.Len(t, result.Blocks, 1)
				assert.Equal(t, types.BlockKindStructured, result.Blocks[0].Kind)
				assert.Equal(t, `{"title":"Home","links":3}`, result.Blocks[0].JSON["text"])
				assert.Equal(t, types.ClassificationText, result.Classification)
			},
		},
		{
			name:     "readable screenshot becomes image",
			response: executeResponse{Success: true, Result: mustJSON(t, map[string]string{"filename": "shot.png", "path": pngPath})},
			check: func(t *testing.T, result types.ToolResult) {
				require.Len(t, result.Blocks, 1)
				require.NotNil(t, result.Blocks[0].Image)
				assert.Equal(t, "png", result.Blocks[0].Image.Format)
				assert.Equal(t, encoded, result.Blocks[0].Image.Data)
				assert.Equal(t, types.ClassificationImage, result.Classification)
			},
		},
		{
			name:     "missing screenshot file is reported",
			response: executeResponse{Success: true, Result: json.RawMessage(`{"filename": "gone.jpg", "path": "/nonexistent/gone.jpg"}`)},
			check: func(t *testing.T, result types.ToolResult) {
				require.Len(t, result.Blocks, 1)
				assert.Equal(t, "Screenshot saved: gone.jpg", result.Blocks[0].JSON["text"])
			},
		},
		{
			name:     "inline image data",
			response: executeResponse{Success: true, Result: mustJSON(t, map[string]string{"image": encoded, "format": "jpeg"})},
			check: func(t *testing.T, result types.ToolResult) {
				require.Len(t, result.Blocks, 1)
				assert.Equal(t, types.ImageBlock("jpeg", encoded), result.Blocks[0])
			},
		},
		{
			name:     "failure becomes error text",
			response: executeResponse{Success: false, Error: "element not found"},
			check: func(t *testing.T, result types.ToolResult) {
				require.Len(t, result.Blocks, 1)
				assert.Equal(t, "Error: element not found", result.Blocks[0].Text)
				assert.True(t, result.IsError)
				assert.Equal(t, types.ClassificationError, result.Classification)
			},
		},
		{
			name:     "failure without message",
			response: executeResponse{Success: false},
			check: func(t *testing.T, result types.ToolResult) {
				assert.Equal(t, "Error: Unknown error", result.Blocks[0].Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, server := newToolServer(t)
			ts.respond("click", tt.response)
			gw := initializedGateway(t, server.URL)

			result := gw.Execute(context.Background(), "click", map[string]interface{}{"selector": "#go"}, "inv-7")
			assert.Equal(t, "inv-7", result.InvocationID)
			tt.check(t, result)

			reqs := ts.executed()
			require.Len(t, reqs, 1)
			assert.Equal(t, "click", reqs[0].ToolName)
			assert.Equal(t, "#go", reqs[0].Arguments["selector"])
			assert.Equal(t, gw.SessionID(), reqs[0].SessionID)
		})
	}
}

func TestHTTPGateway_ExecuteWithPageInfo(t *testing.T) {
	ts, server := newToolServer(t)
	ts.respond("navigate", executeResponse{Success: true, Result: json.RawMessage(`"ok"`)})
	ts.respond(PageInfoTool, executeResponse{Success: true, Result: json.RawMessage(`"Example Domain - https://example.com"`)})
	gw := initializedGateway(t, server.URL, WithPageInfo(true))

	result := gw.Execute(context.Background(), "navigate", map[string]interface{}{"url": "https://example.com"}, "")

	assert.NotEmpty(t, result.InvocationID)
	assert.Equal(t, []string{"ok", "Current page: Example Domain - https://example.com"}, result.Texts())

	reqs := ts.executed()
	require.Len(t, reqs, 2)
	assert.Equal(t, PageInfoTool, reqs[1].ToolName)
}

func TestHTTPGateway_PageInfoFailureIsOmitted(t *testing.T) {
	ts, server := newToolServer(t)
	ts.respond("navigate", executeResponse{Success: true, Result: json.RawMessage(`"ok"`)})
	gw := initializedGateway(t, server.URL, WithPageInfo(true))

	result := gw.Execute(context.Background(), "navigate", nil, "inv")
	assert.Equal(t, []string{"ok"}, result.Texts())
}

func TestHTTPGateway_TransportError(t *testing.T) {
	_, server := newToolServer(t)
	gw := initializedGateway(t, server.URL)
	server.Close()

	result := gw.Execute(context.Background(), "navigate", nil, "inv")
	require.Len(t, result.Blocks, 1)
	assert.Contains(t, result.Blocks[0].Text, "Error executing tool navigate:")
	assert.True(t, result.IsError)
}

func TestHTTPGateway_Close(t *testing.T) {
	ts, server := newToolServer(t)
	gw := initializedGateway(t, server.URL)
	id := gw.SessionID()

	require.NoError(t, gw.Close(context.Background()))
	require.NoError(t, gw.Close(context.Background()))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Equal(t, []string{id}, ts.deleted)
	assert.Empty(t, gw.SessionID())
}

func TestNewHTTPGateway_BaseURLFallback(t *testing.T) {
	t.Setenv("MCP_SERVER_URL", "http://tools.internal:9000/")
	assert.Equal(t, "http://tools.internal:9000", NewHTTPGateway("").BaseURL())

	t.Setenv("MCP_SERVER_URL", "")
	assert.Equal(t, DefaultBaseURL, NewHTTPGateway("").BaseURL())
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
