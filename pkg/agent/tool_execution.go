package agent

import (
	"context"
	"fmt"

	"github.com/entrhq/pilot/pkg/types"
	"github.com/google/uuid"
)

// defaultResultSummary stands in for a successful result without text.
const defaultResultSummary = "Operation completed"

// executeTool dispatches one invocation, emits the result event, records
// the step and appends the result to the conversation as a user turn.
func (e *Executor) executeTool(ctx context.Context, r *Run, call types.ToolInvocation) types.ToolResult {
	r.setState(StateExecutingTool)
	call.InvocationID = uuid.New().String()
	r.emit(ctx, types.NewToolExecutingEvent(call.ToolName))

	result := e.dispatch(ctx, call)
	if result.InvocationID == "" {
		result.InvocationID = call.InvocationID
	}
	result.Classification = result.Classify()

	e.processToolResult(ctx, r, call, result)
	r.record.AppendStep(call, result)
	return result
}

// dispatch calls the gateway, converting a panic into an error result.
func (e *Executor) dispatch(ctx context.Context, call types.ToolInvocation) (result types.ToolResult) {
	if e.gateway == nil {
		return types.NewErrorResult(call.InvocationID, fmt.Sprintf("Error executing tool %s: no tool gateway configured", call.ToolName))
	}

	defer func() {
		if rec := recover(); rec != nil {
			e.log.Errorf("Gateway panicked executing %s: %v", call.ToolName, rec)
			result = types.NewErrorResult(call.InvocationID, fmt.Sprintf("Error executing tool %s: %v", call.ToolName, rec))
		}
	}()

	e.log.Debugf("Executing tool %s (%s)", call.ToolName, call.InvocationID)
	return e.gateway.Execute(ctx, call.ToolName, call.Arguments, call.InvocationID)
}

// processToolResult emits the event matching the result's classification
// and feeds the raw result back into the conversation.
func (e *Executor) processToolResult(ctx context.Context, r *Run, call types.ToolInvocation, result types.ToolResult) {
	switch result.Classification {
	case types.ClassificationError:
		e.log.Warnf("Tool %s failed: %s", call.ToolName, result.Summary(""))
		r.emit(ctx, types.NewToolErrorEvent(call.ToolName, result.Summary("unknown error")))
	case types.ClassificationImage:
		content := append([]types.ContentBlock(nil), result.Blocks...)
		r.emit(ctx, types.NewToolSuccessImageEvent(call.ToolName, content))
	default:
		r.emit(ctx, types.NewToolSuccessEvent(call.ToolName, result.Summary(defaultResultSummary)))
	}

	blocks := result.Blocks
	if len(blocks) == 0 {
		blocks = []types.ContentBlock{types.TextBlock(defaultResultSummary)}
	}
	e.conversation.Add(types.RoleUser, blocks...)
}
