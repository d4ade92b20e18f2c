// Package cli provides a terminal front end for a pilot executor.
//
// Example usage:
//
//	client, _ := openai.NewProvider(os.Getenv("OPENAI_API_KEY"))
//	gw := gateway.NewHTTPGateway("")
//	if err := gw.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	executor := cli.NewExecutor(agent.New(client, gw))
//	if err := executor.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/session"
	"github.com/entrhq/pilot/pkg/types"
)

const (
	stopCommand    = "/stop"
	contextCommand = "/context"

	// maxResultLength truncates tool results in the transcript.
	maxResultLength = 500
)

// Executor reads messages from a terminal, routes them to chat or task mode
// and renders the resulting events.
type Executor struct {
	agent  *agent.Executor
	router *session.Router
	reader io.Reader
	writer io.Writer
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = r
	}
}

// WithRouter sets the chat/task router.
func WithRouter(r *session.Router) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.router = r
		}
	}
}

// NewExecutor creates a new CLI executor for the given agent.
func NewExecutor(ag *agent.Executor, opts ...ExecutorOption) *Executor {
	e := &Executor{
		agent:  ag,
		router: session.NewRouter(),
		reader: os.Stdin,
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RunTask executes one task and renders its events. The returned error is
// set only when the run could not start.
func (e *Executor) RunTask(ctx context.Context, task string) (*types.TaskRun, error) {
	run, err := e.agent.Run(ctx, task)
	if err != nil {
		return nil, err
	}
	e.stream(run, nil)
	return run.Wait(), nil
}

// Run starts the conversation loop. Returns when the user exits, input ends
// or ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	lines := readLines(e.reader)

	fmt.Fprintln(e.writer, headerStyle.Render("Pilot"))
	fmt.Fprintln(e.writer, tipsStyle.Render("Type a message and press Enter. /stop cancels a running task, /context shows memory usage, exit quits."))
	fmt.Fprintln(e.writer)

	for {
		fmt.Fprint(e.writer, promptStyle.Render("> "))

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(e.writer, "\nShutting down...")
			return ctx.Err()
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		case contextCommand:
			e.printContext()
			continue
		case stopCommand:
			fmt.Fprintln(e.writer, tipsStyle.Render("No run in progress."))
			continue
		}

		run, mode, err := e.router.Start(ctx, e.agent, input)
		if err != nil {
			fmt.Fprintln(e.writer, errorStyle.Render("❌ "+err.Error()))
			continue
		}
		if mode == session.ModeTask {
			fmt.Fprintln(e.writer, tipsStyle.Render("Running as a task. Type /stop to cancel."))
		}
		e.stream(run, lines)
	}
}

// stream renders events until the run ends. Lines arriving meanwhile are
// treated as commands for the active run.
func (e *Executor) stream(run *agent.Run, input <-chan string) {
	events := run.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Render(ev)
		case line, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			if strings.TrimSpace(line) == stopCommand {
				run.Cancel()
				fmt.Fprintln(e.writer, warningStyle.Render("Stopping after the current step..."))
			} else {
				fmt.Fprintln(e.writer, tipsStyle.Render("A run is in progress; type /stop to cancel it."))
			}
		}
	}
}

// Render writes one event to the output.
func (e *Executor) Render(ev *types.AgentEvent) {
	if text := FormatEvent(ev); text != "" {
		fmt.Fprintln(e.writer, text)
	}
}

// FormatEvent renders an event as styled terminal text.
func FormatEvent(ev *types.AgentEvent) string {
	switch ev.Type {
	case types.EventTypeTaskStarted:
		return headerStyle.Render("▶ " + ev.Message)
	case types.EventTypeAssistantMessage, types.EventTypeAssistantToolCall:
		return assistantStyle.Render("Assistant: " + ev.Message)
	case types.EventTypeTaskStep:
		return toolStyle.Render(fmt.Sprintf("🔧 %s %s", ev.Message, compactArgs(ev.ToolArgs)))
	case types.EventTypeToolExecuting:
		return systemStyle.Render(ev.Message)
	case types.EventTypeToolSuccess:
		return toolStyle.Render(ev.Message) + "\n" + truncate(ev.Result, maxResultLength)
	case types.EventTypeToolSuccessImage:
		return toolStyle.Render(fmt.Sprintf("%s (%d content blocks)", ev.Message, len(ev.Content)))
	case types.EventTypeToolError:
		return errorStyle.Render("❌ " + ev.Message)
	case types.EventTypeSystemMessage:
		return systemStyle.Render(ev.Message)
	case types.EventTypeTaskCompleted:
		style := successStyle
		if ev.Message != agent.CompletedMessage {
			style = warningStyle
		}
		return style.Render(fmt.Sprintf("%s (%d steps)", ev.Message, ev.StepCount()))
	case types.EventTypeExecutionStopped:
		return warningStyle.Render("⏹ " + ev.Message)
	case types.EventTypeError:
		return errorStyle.Render("❌ Error: " + ev.Message)
	default:
		return ev.Message
	}
}

func (e *Executor) printContext() {
	info := e.agent.ContextInfo()
	fmt.Fprintln(e.writer, headerStyle.Render("Context"))
	fmt.Fprintf(e.writer, "  Turns: %d (%d user, %d with media, %d summaries)\n",
		info.TurnCount, info.UserTurns, info.MediaTurns, info.SummaryTurns)
	fmt.Fprintf(e.writer, "  Tokens: %d / %d (%.1f%%)\n", info.EstimatedTokens, info.Threshold, info.UsagePercent)
	fmt.Fprintf(e.writer, "  System prompt: ~%d tokens, %d tools\n", info.SystemPrompt, info.ToolCount)
	fmt.Fprintf(e.writer, "  Step cap: %d\n", info.StepCap)
	if info.Summarization != "" {
		fmt.Fprintf(e.writer, "  Summarization model: %s\n", info.Summarization)
	}
}

// readLines feeds input lines to a channel that is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func compactArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
