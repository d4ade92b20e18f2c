package headless

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueSession struct {
	mu    sync.Mutex
	texts []string
	err   error
	n     int
}

func (s *queueSession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && s.n > 0 {
		return "", s.err
	}
	i := s.n
	if i >= len(s.texts) {
		i = len(s.texts) - 1
	}
	s.n++
	return s.texts[i], nil
}

type fakeClient struct {
	session llm.Session
}

func (c *fakeClient) StartSession(ctx context.Context, systemPrompt string) (llm.Session, error) {
	return c.session, nil
}

func (c *fakeClient) Model() string {
	return "fake"
}

type fakeGateway struct{}

func (fakeGateway) Execute(ctx context.Context, name string, args map[string]interface{}, invocationID string) types.ToolResult {
	if name == "broken" {
		return types.NewErrorResult(invocationID, "Error: element not found")
	}
	return types.ToolResult{Blocks: []types.ContentBlock{types.TextBlock("Example Domain")}}
}

func call(name string) string {
	return "Working on it.\n```json\n{\"tool\": \"" + name + "\", \"arguments\": {\"url\": \"https://example.com\"}}\n```"
}

func newAgent(session *queueSession, opts ...agent.Option) *agent.Executor {
	return agent.New(&fakeClient{session: session}, fakeGateway{}, opts...)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"valid config", &Config{Task: "test task", Timeout: time.Minute}, false},
		{"missing task", &Config{}, true},
		{"negative timeout", &Config{Task: "test", Timeout: -time.Second}, true},
		{"artifacts without dir", &Config{Task: "test", Artifacts: ArtifactConfig{Enabled: true}}, true},
		{"invalid verbosity", &Config{Task: "test", Logging: LoggingConfig{Verbosity: "loud"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_DefaultVerbosity(t *testing.T) {
	cfg := &Config{Task: "x"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Task = "x"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
	assert.False(t, cfg.Artifacts.Enabled)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelQuiet, ParseLogLevel("quiet"))
	assert.Equal(t, LogLevelVerbose, ParseLogLevel("verbose"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelNormal, ParseLogLevel("other"))
}

func TestNewExecutor_InvalidConfig(t *testing.T) {
	_, err := NewExecutor(newAgent(&queueSession{texts: []string{"hi"}}), &Config{})
	assert.Error(t, err)
}

func TestRun_Success(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Task = "open example.com"

	exec, err := NewExecutor(newAgent(&queueSession{texts: []string{call("navigate"), "The page is Example Domain."}}), cfg, WithOutput(&out))
	require.NoError(t, err)

	summary, err := exec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, statusSuccess, summary.Status)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, "The page is Example Domain.", summary.FinalMessage)
	require.Len(t, summary.Steps, 1)
	assert.Equal(t, "navigate", summary.Steps[0].Tool)
	assert.Equal(t, "Example Domain", summary.Steps[0].Preview)
	assert.Equal(t, 1, summary.Metrics.Steps)
	assert.Positive(t, summary.Metrics.Events)

	text := out.String()
	assert.Contains(t, text, "Starting task: open example.com")
	assert.Contains(t, text, "[1] navigate")
	assert.Contains(t, text, "SUCCESS")
}

func TestRun_StepLimitIsPartialSuccess(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Task = "loop"

	ag := newAgent(&queueSession{texts: []string{call("broken")}}, agent.WithStepCap(2))
	exec, err := NewExecutor(ag, cfg, WithOutput(&out))
	require.NoError(t, err)

	summary, err := exec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statusPartialSuccess, summary.Status)
	assert.Equal(t, 2, summary.Metrics.Steps)
	assert.Equal(t, 2, summary.Metrics.ToolErrors)
	assert.Empty(t, summary.FinalMessage)
}

func TestRun_ModelFailure(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Task = "open example.com"

	session := &queueSession{texts: []string{call("navigate")}, err: errors.New("rate limited")}
	exec, err := NewExecutor(newAgent(session), cfg, WithOutput(&out))
	require.NoError(t, err)

	summary, err := exec.Run(context.Background())
	require.ErrorIs(t, err, ErrTaskFailed)
	assert.Equal(t, statusFailed, summary.Status)
	assert.Contains(t, summary.Error, "rate limited")
	assert.Contains(t, out.String(), "FAILED")
}

func TestRun_JSONEvents(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Task = "say hi"
	cfg.Logging.JSON = true

	exec, err := NewExecutor(newAgent(&queueSession{texts: []string{"hi"}}), cfg, WithOutput(&out))
	require.NoError(t, err)

	_, err = exec.Run(context.Background())
	require.NoError(t, err)

	var kinds []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		kinds = append(kinds, ev["type"].(string))
	}
	assert.Equal(t, []string{"task_started", "assistant_message", "task_completed"}, kinds)
}

func TestRun_WritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	cfg := DefaultConfig()
	cfg.Task = "open example.com"
	cfg.Artifacts.Enabled = true
	cfg.Artifacts.OutputDir = dir

	exec, err := NewExecutor(newAgent(&queueSession{texts: []string{call("navigate"), "Done."}}), cfg, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	_, err = exec.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "execution.json"))
	require.NoError(t, err)
	var summary ExecutionSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, statusSuccess, summary.Status)
	assert.Len(t, summary.Steps, 1)

	md, err := os.ReadFile(filepath.Join(dir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Pilot Execution Summary")
	assert.Contains(t, string(md), "1. ✅ `navigate`: Example Domain")

	events, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, summary.Metrics.Events, strings.Count(string(events), "\n"))
}

func TestArtifactWriter_SkipsDisabledFormats(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, ArtifactConfig{Markdown: true})

	require.NoError(t, w.WriteAll(&ExecutionSummary{Task: "x", Status: statusStopped}, nil))

	_, err := os.Stat(filepath.Join(dir, "summary.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "execution.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "events.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestLogger_Quiet(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(LogLevelQuiet)
	l.SetWriter(&out)
	l.DisableColor()

	l.Event(types.NewTaskStartedEvent("x"))
	l.Event(types.NewTaskStepEvent(1, "navigate", nil))
	assert.Empty(t, out.String())

	l.Event(types.NewErrorEvent(errors.New("boom")))
	assert.Contains(t, out.String(), "✗ Error:")
	assert.NotContains(t, out.String(), "\033[")
}

func TestLogger_TruncatesOnRuneBoundary(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(LogLevelVerbose)
	l.SetWriter(&out)
	l.DisableColor()

	l.Event(types.NewToolSuccessEvent("extract", "x"+strings.Repeat("ü", previewLength)))
	assert.Contains(t, out.String(), "...")
	assert.True(t, utf8.ValidString(out.String()))

	got := truncate("naïve café", 3)
	assert.Equal(t, "na...", got)
}
