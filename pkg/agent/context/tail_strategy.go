package context

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
)

// DefaultKeepPairs is the number of trailing user/assistant pairs kept verbatim.
const DefaultKeepPairs = 1

// SummaryPrefix opens the synthetic turn that replaces a summarized span.
const SummaryPrefix = "[CONVERSATION SUMMARY: "

// TailStrategy keeps a leading system turn and the last keepPairs
// user/assistant pairs, and replaces everything in between with a single
// assistant turn produced by one dedicated model call.
type TailStrategy struct {
	keepPairs int
}

// NewTailStrategy creates the strategy. keepPairs below 1 is raised to 1.
func NewTailStrategy(keepPairs int) *TailStrategy {
	if keepPairs < 1 {
		keepPairs = 1
	}
	return &TailStrategy{keepPairs: keepPairs}
}

// Name returns the strategy name
func (s *TailStrategy) Name() string {
	return "TailSummarization"
}

// KeepPairs returns how many trailing pairs are preserved.
func (s *TailStrategy) KeepPairs() int {
	return s.keepPairs
}

// ShouldRun returns true when the conversation is over its threshold and has
// more turns than the preserved tail.
func (s *TailStrategy) ShouldRun(conv *memory.Conversation) bool {
	return conv.ShouldSummarize() && conv.Len() > 2*s.keepPairs+1
}

// Summarize replaces the middle of the conversation with a summary turn.
// Returns zero without a model call when the conversation has at most
// 2*keepPairs+1 turns.
func (s *TailStrategy) Summarize(ctx context.Context, conv *memory.Conversation, client llm.Client) (int, error) {
	turns := conv.Turns()
	if len(turns) <= 2*s.keepPairs+1 {
		return 0, nil
	}

	start := 0
	if turns[0].Role == types.RoleSystem {
		start = 1
	}
	end := len(turns) - 2*s.keepPairs
	if end <= start {
		return 0, nil
	}

	summary, err := s.requestSummary(ctx, turns[start:end], client)
	if err != nil {
		return 0, err
	}

	replacement := types.NewTextTurn(types.RoleAssistant, SummaryPrefix+summary+"]")
	if err := conv.ReplaceSpan(start, end, replacement); err != nil {
		return 0, fmt.Errorf("failed to replace summarized span: %w", err)
	}

	return end - start, nil
}

// requestSummary opens a fresh session so the summarization call never
// touches the executor's own model session.
func (s *TailStrategy) requestSummary(ctx context.Context, span []types.Turn, client llm.Client) (string, error) {
	if client == nil {
		return "", errors.New("no model client configured for summarization")
	}

	lines := make([]prompts.TranscriptLine, 0, len(span))
	for _, turn := range span {
		lines = append(lines, prompts.TranscriptLine{Role: string(turn.Role), Text: turn.Text()})
	}

	session, err := client.StartSession(ctx, prompts.SummarizationSystemPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to start summarization session: %w", err)
	}

	reply, err := session.Send(ctx, prompts.BuildSummarizationPrompt(lines))
	if err != nil {
		return "", fmt.Errorf("summarization call failed: %w", err)
	}

	summary := strings.TrimSpace(reply)
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}
	return summary, nil
}
