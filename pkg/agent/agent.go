// Package agent runs tasks against a language model that drives a remote
// tool gateway.
//
// An Executor owns one conversation and one model session:
//
//	exec := agent.New(client, gw, agent.WithSystemPrompt(prompt))
//	run, err := exec.Run(ctx, "find the cheapest flight to Lisbon")
//	for ev := range run.Events() {
//		fmt.Println(ev.Message)
//	}
//	record := run.Wait()
//
// The package is organized with subpackages for specialized functionality:
//   - memory: conversation turns, token estimation and media pruning
//   - context: summarization of long conversations
//   - prompts: system and summarization prompts
//   - tools: tool specs and tool call parsing
package agent

import "errors"

// ErrRunInProgress is returned when Run or Chat is called while another run
// on the same executor has not finished.
var ErrRunInProgress = errors.New("a run is already in progress")

// State is the position of a run in the execution state machine.
type State int32

const (
	StateInit State = iota
	StateAwaitModel
	StateToolCallDetected
	StateExecutingTool
	StateNoToolCall
	StateStepLimitReached
	StateCancelled
	StateDone
)

var stateNames = [...]string{
	StateInit:             "INIT",
	StateAwaitModel:       "AWAIT_MODEL",
	StateToolCallDetected: "TOOL_CALL_DETECTED",
	StateExecutingTool:    "EXECUTING_TOOL",
	StateNoToolCall:       "NO_TOOL_CALL",
	StateStepLimitReached: "STEP_LIMIT_REACHED",
	StateCancelled:        "CANCELLED",
	StateDone:             "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// ContextInfo describes the executor's conversation for display and debugging.
type ContextInfo struct {
	// Conversation
	TurnCount     int
	UserTurns     int
	MediaTurns    int
	SummaryTurns  int
	SystemPrompt  int // estimated tokens
	ToolCount     int
	ToolNames     []string
	StepCap       int
	Summarization string // summarization model override, empty for the main model

	// Token usage
	EstimatedTokens int
	Threshold       int
	FreeTokens      int
	UsagePercent    float64
}
