package context

import (
	"context"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/llm"
)

// Strategy defines the interface for conversation summarization strategies.
// Each strategy implements a specific approach to reducing context size
// while preserving semantic meaning.
type Strategy interface {
	// Name returns the strategy's identifier for logging and debugging.
	Name() string

	// ShouldRun evaluates whether this strategy should execute now.
	ShouldRun(conv *memory.Conversation) bool

	// Summarize performs the summarization using client for any model calls.
	// Returns the number of turns replaced. The conversation is modified in place.
	Summarize(ctx context.Context, conv *memory.Conversation, client llm.Client) (int, error)
}
