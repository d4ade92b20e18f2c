package agent

import (
	"context"
	"strings"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
)

// prompt sends text to the model session. Sessions that accept history
// are first resynchronised from the conversation so summarization and
// media pruning reach the model. When recorded is true, text is already
// the conversation's last turn and is left out of the synced history.
func (e *Executor) prompt(ctx context.Context, r *Run, session llm.Session, text string, recorded bool) (string, error) {
	r.setState(StateAwaitModel)

	if syncer, ok := session.(llm.HistorySyncer); ok {
		turns := e.conversation.Turns()
		if recorded && len(turns) > 0 {
			turns = turns[:len(turns)-1]
		}
		syncer.SyncHistory(turns)
	}

	return session.Send(ctx, text)
}

// continueAfter asks the model for its next step after a tool result.
// Sessions without history sync receive the result text inline.
func (e *Executor) continueAfter(ctx context.Context, r *Run, session llm.Session, result types.ToolResult) (string, error) {
	if _, ok := session.(llm.HistorySyncer); ok {
		return e.prompt(ctx, r, session, e.continuationPrompt, false)
	}
	return e.prompt(ctx, r, session, toolFeedback(result)+"\n\n"+e.continuationPrompt, false)
}

// compactConversation summarizes when over threshold and strips media from
// all but the latest turns.
func (e *Executor) compactConversation(ctx context.Context, r *Run) {
	e.summarizeIfNeeded(ctx, r)

	if removed := memory.RemoveMediaExceptLastTurn(e.conversation); removed > 0 {
		e.log.Debugf("Removed %d media blocks from earlier turns", removed)
	}
}

// summarizeIfNeeded runs the context manager when any strategy wants to.
// Failures are logged and the conversation is left unsummarized.
func (e *Executor) summarizeIfNeeded(ctx context.Context, r *Run) bool {
	if e.contextManager == nil || !e.contextManager.ShouldSummarize(e.conversation) {
		return false
	}

	r.emit(ctx, types.NewSystemMessageEvent(OptimizingMessage))

	count, err := e.contextManager.EvaluateAndSummarize(ctx, e.conversation)
	if err != nil {
		e.log.Warnf("Failed to summarize conversation: %v", err)
		return false
	}
	if count > 0 {
		e.log.Infof("Summarized %d turns, %d estimated tokens remain", count, e.conversation.EstimatedTokens())
	}
	return count > 0
}

// toolFeedback renders a tool result as plain text for sessions that only
// accept text prompts.
func toolFeedback(result types.ToolResult) string {
	parts := make([]string, 0, len(result.Blocks))
	for _, block := range result.Blocks {
		switch block.Kind {
		case types.BlockKindImage:
			parts = append(parts, "[Image content]")
		default:
			if text := block.PlainText(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	if len(parts) == 0 {
		return "Tool result: (empty)"
	}
	return "Tool result:\n" + strings.Join(parts, "\n")
}
