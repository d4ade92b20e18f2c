package agent

import (
	"context"
	"fmt"

	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
)

// Messages carried by terminal and system events.
const (
	CompletedMessage  = "Task completed successfully!"
	StepLimitMessage  = "Task execution reached maximum steps limit. Please review the results."
	StoppedMessage    = "Task execution stopped by user."
	OptimizingMessage = "Optimizing conversation memory..."
)

type runMode int

const (
	modeTask runMode = iota
	modeChat
)

// Run starts a task: the model is prompted with task and every tool call it
// makes is executed until it answers in plain text, the step cap is reached
// or the run is cancelled. The returned error is ErrRunInProgress or a
// failure to start the model session; everything else is reported as events.
func (e *Executor) Run(ctx context.Context, task string) (*Run, error) {
	return e.start(ctx, task, modeTask)
}

// Chat sends one conversational message. A tool call in the reply is
// executed once and the model's follow-up is emitted as a plain message.
func (e *Executor) Chat(ctx context.Context, message string) (*Run, error) {
	return e.start(ctx, message, modeChat)
}

func (e *Executor) start(ctx context.Context, text string, mode runMode) (*Run, error) {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return nil, ErrRunInProgress
	}
	e.running = true
	e.runMu.Unlock()

	session, err := e.ensureSession(ctx)
	if err != nil {
		e.runMu.Lock()
		e.running = false
		e.runMu.Unlock()
		return nil, fmt.Errorf("failed to start model session: %w", err)
	}

	r := newRun(text, e.eventBuffer)
	e.runMu.Lock()
	e.current = r
	e.runMu.Unlock()

	go func() {
		var outcome types.Outcome
		var runErr error
		if mode == modeTask {
			outcome, runErr = e.runTask(ctx, r, session, text)
		} else {
			outcome, runErr = e.runChat(ctx, r, session, text)
		}
		e.log.Infof("Run finished with outcome %s after %d steps", outcome, len(r.record.Steps))

		// Release the executor before closing the run so a caller woken by
		// Wait can start the next run immediately.
		e.runMu.Lock()
		e.running = false
		e.current = nil
		e.runMu.Unlock()

		r.finish(outcome, runErr)
	}()

	return r, nil
}

// runTask executes the task loop and returns the run's outcome.
func (e *Executor) runTask(ctx context.Context, r *Run, session llm.Session, task string) (types.Outcome, error) {
	r.emit(ctx, types.NewTaskStartedEvent(task))
	e.conversation.AddText(types.RoleUser, task)

	reply, err := e.prompt(ctx, r, session, task, true)
	if err != nil {
		return e.fail(ctx, r, err)
	}

	steps := 0
	for {
		parsed := tools.ExtractToolCall(reply)
		e.conversation.AddText(types.RoleAssistant, reply)
		r.emit(ctx, types.NewAssistantMessageEvent(reply))

		if !parsed.Found {
			r.setState(StateNoToolCall)
			e.log.Debugf("No tool call in response: %s", parsed.Reason)
			r.emit(ctx, types.NewTaskCompletedEvent(CompletedMessage, steps))
			return types.OutcomeCompleted, nil
		}

		r.setState(StateToolCallDetected)
		if e.stopRequested(ctx, r) {
			return e.stop(ctx, r)
		}

		steps++
		r.emit(ctx, types.NewTaskStepEvent(steps, parsed.Call.ToolName, parsed.Call.Arguments))
		result := e.executeTool(ctx, r, parsed.Call)

		if steps >= e.stepCap {
			r.setState(StateStepLimitReached)
			e.log.Warnf("Step cap %d reached", e.stepCap)
			r.emit(ctx, types.NewTaskCompletedEvent(StepLimitMessage, steps))
			return types.OutcomeStepLimit, nil
		}

		e.compactConversation(ctx, r)

		if e.stopRequested(ctx, r) {
			return e.stop(ctx, r)
		}

		reply, err = e.continueAfter(ctx, r, session, result)
		if err != nil {
			return e.fail(ctx, r, err)
		}
	}
}

// runChat answers one message, executing at most one tool call.
func (e *Executor) runChat(ctx context.Context, r *Run, session llm.Session, message string) (types.Outcome, error) {
	e.conversation.AddText(types.RoleUser, message)
	e.summarizeIfNeeded(ctx, r)

	reply, err := e.prompt(ctx, r, session, message, true)
	if err != nil {
		return e.fail(ctx, r, err)
	}

	parsed := tools.ExtractToolCall(reply)
	e.conversation.AddText(types.RoleAssistant, reply)
	if !parsed.Found {
		r.setState(StateNoToolCall)
		r.emit(ctx, types.NewAssistantMessageEvent(reply))
		return types.OutcomeCompleted, nil
	}

	r.setState(StateToolCallDetected)
	r.emit(ctx, types.NewAssistantToolCallEvent(reply, parsed.Call.ToolName, parsed.Call.Arguments))
	if e.stopRequested(ctx, r) {
		return e.stop(ctx, r)
	}

	result := e.executeTool(ctx, r, parsed.Call)
	e.compactConversation(ctx, r)

	if e.stopRequested(ctx, r) {
		return e.stop(ctx, r)
	}

	followUp, err := e.continueAfter(ctx, r, session, result)
	if err != nil {
		return e.fail(ctx, r, err)
	}
	e.conversation.AddText(types.RoleAssistant, followUp)
	r.emit(ctx, types.NewAssistantMessageEvent(followUp))
	return types.OutcomeCompleted, nil
}

// stopRequested reports whether the run was cancelled or its context ended.
func (e *Executor) stopRequested(ctx context.Context, r *Run) bool {
	return r.Cancelled() || ctx.Err() != nil
}

func (e *Executor) stop(ctx context.Context, r *Run) (types.Outcome, error) {
	r.setState(StateCancelled)
	e.log.Infof("Run stopped after %d steps", len(r.record.Steps))
	r.emit(ctx, types.NewExecutionStoppedEvent(StoppedMessage))
	return types.OutcomeStopped, nil
}

// fail ends the run after a model call error. A call aborted because the
// run was stopped counts as a stop.
func (e *Executor) fail(ctx context.Context, r *Run, err error) (types.Outcome, error) {
	if e.stopRequested(ctx, r) {
		return e.stop(ctx, r)
	}
	e.log.Errorf("Model call failed: %v", err)
	r.emit(ctx, types.NewErrorEvent(fmt.Errorf("error executing task: %w", err)))
	return types.OutcomeFailed, err
}
