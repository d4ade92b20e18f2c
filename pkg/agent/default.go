package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	agentcontext "github.com/entrhq/pilot/pkg/agent/context"
	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/gateway"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/types"
)

var agentDebugLog *logging.Logger

func init() {
	var err error
	agentDebugLog, err = logging.NewLogger("agent")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		agentDebugLog.Warnf("Failed to initialize agent logger, using stderr fallback: %v", err)
	}
}

const (
	// DefaultStepCap bounds the number of tool executions in one task run.
	DefaultStepCap = 40

	// DefaultEventBuffer is the capacity of each run's event channel.
	DefaultEventBuffer = 64
)

// Executor drives one conversation: it prompts the model, dispatches the
// tool calls it makes to the gateway and feeds results back until the model
// answers in plain text, the step cap is hit or the run is cancelled.
type Executor struct {
	client         llm.Client
	gateway        gateway.Gateway
	conversation   *memory.Conversation
	contextManager *agentcontext.Manager
	log            *logging.Logger

	systemPrompt       string
	customInstructions string
	toolSpecs          []tools.Spec
	stepCap            int
	continuationPrompt string
	eventBuffer        int

	sessionMu sync.Mutex
	session   llm.Session

	// Running state
	running bool
	current *Run
	runMu   sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithSystemPrompt sets the system prompt verbatim. When unset the prompt is
// built from the tools and custom instructions.
func WithSystemPrompt(prompt string) Option {
	return func(e *Executor) {
		e.systemPrompt = prompt
	}
}

// WithTools sets the tool specs advertised in the built system prompt.
func WithTools(specs []tools.Spec) Option {
	return func(e *Executor) {
		e.toolSpecs = specs
	}
}

// WithCustomInstructions adds user-provided instructions to the built system prompt.
func WithCustomInstructions(instructions string) Option {
	return func(e *Executor) {
		e.customInstructions = instructions
	}
}

// WithStepCap sets the maximum number of tool executions per task run.
// Values below 1 keep the default.
func WithStepCap(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.stepCap = n
		}
	}
}

// WithConversation replaces the executor's conversation store.
func WithConversation(conv *memory.Conversation) Option {
	return func(e *Executor) {
		if conv != nil {
			e.conversation = conv
		}
	}
}

// WithContextManager sets the manager used to summarize long conversations.
func WithContextManager(manager *agentcontext.Manager) Option {
	return func(e *Executor) {
		e.contextManager = manager
	}
}

// WithContinuationPrompt replaces the prompt sent after each tool result.
func WithContinuationPrompt(prompt string) Option {
	return func(e *Executor) {
		if prompt != "" {
			e.continuationPrompt = prompt
		}
	}
}

// WithEventBuffer sets the capacity of each run's event channel.
func WithEventBuffer(size int) Option {
	return func(e *Executor) {
		if size >= 0 {
			e.eventBuffer = size
		}
	}
}

// WithLogger sets the logger used for this executor's diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.log = logger
		}
	}
}

// New creates an executor that prompts client and dispatches tools to gw.
// Without WithContextManager, summarization uses a TailStrategy on client.
func New(client llm.Client, gw gateway.Gateway, opts ...Option) *Executor {
	e := &Executor{
		client:             client,
		gateway:            gw,
		conversation:       memory.NewConversation(),
		log:                agentDebugLog,
		stepCap:            DefaultStepCap,
		continuationPrompt: prompts.ContinuationPrompt,
		eventBuffer:        DefaultEventBuffer,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.contextManager == nil {
		e.contextManager = agentcontext.NewManager(client)
	}
	if e.systemPrompt == "" {
		e.systemPrompt = e.buildSystemPrompt()
	}

	return e
}

// Conversation returns the executor's conversation store.
func (e *Executor) Conversation() *memory.Conversation {
	return e.conversation
}

// SystemPrompt returns the prompt the model session is started with.
func (e *Executor) SystemPrompt() string {
	return e.systemPrompt
}

// StepCap returns the configured step cap.
func (e *Executor) StepCap() int {
	return e.stepCap
}

// Gateway returns the tool gateway.
func (e *Executor) Gateway() gateway.Gateway {
	return e.gateway
}

// IsRunning reports whether a run is in progress.
func (e *Executor) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// Cancel stops the active run, if any, at its next step boundary.
func (e *Executor) Cancel() {
	e.runMu.Lock()
	r := e.current
	e.runMu.Unlock()
	if r != nil {
		r.Cancel()
	}
}

// Close cancels the active run, waits for it to finish or for ctx to end,
// and releases the gateway's server-side session.
func (e *Executor) Close(ctx context.Context) error {
	e.runMu.Lock()
	r := e.current
	e.runMu.Unlock()

	if r != nil {
		r.Cancel()
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := gateway.Close(ctx, e.gateway); err != nil {
		return fmt.Errorf("failed to close gateway: %w", err)
	}
	return nil
}

// ensureSession starts the model session on first use.
func (e *Executor) ensureSession(ctx context.Context) (llm.Session, error) {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()

	if e.session != nil {
		return e.session, nil
	}
	if e.client == nil {
		return nil, fmt.Errorf("no model client configured")
	}

	session, err := e.client.StartSession(ctx, e.systemPrompt)
	if err != nil {
		return nil, err
	}
	e.session = session
	e.log.Infof("Started model session on %s", e.client.Model())
	return session, nil
}

// ContextInfo returns statistics about the conversation and prompt.
func (e *Executor) ContextInfo() *ContextInfo {
	turns := e.conversation.Turns()

	info := &ContextInfo{
		TurnCount:       len(turns),
		SystemPrompt:    e.conversation.EstimateTokens(e.systemPrompt),
		ToolCount:       len(e.toolSpecs),
		ToolNames:       tools.Names(e.toolSpecs),
		StepCap:         e.stepCap,
		Summarization:   e.contextManager.GetSummarizationModel(),
		EstimatedTokens: e.conversation.EstimatedTokens(),
		Threshold:       e.conversation.Threshold(),
	}

	for _, turn := range turns {
		if turn.Role == types.RoleUser {
			info.UserTurns++
		}
		if turn.HasMedia() {
			info.MediaTurns++
		}
		if strings.HasPrefix(turn.Text(), agentcontext.SummaryPrefix) {
			info.SummaryTurns++
		}
	}

	if info.Threshold > 0 {
		info.FreeTokens = info.Threshold - info.EstimatedTokens
		if info.FreeTokens < 0 {
			info.FreeTokens = 0
		}
		info.UsagePercent = float64(info.EstimatedTokens) / float64(info.Threshold) * 100.0
	}

	return info
}
