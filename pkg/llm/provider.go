// Package llm defines the model client contract used by the executor and the
// shared session plumbing used by concrete adapters.
//
// Example usage:
//
//	client, err := openai.NewProvider(os.Getenv("OPENAI_API_KEY"), openai.WithModel("gpt-4o"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := client.StartSession(ctx, "You are a browser automation assistant.")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := session.Send(ctx, "Open https://example.com")
package llm

import (
	"context"

	"github.com/entrhq/pilot/pkg/types"
)

// Client starts model sessions. Implementations must be safe for concurrent
// use; each session belongs to a single executor.
type Client interface {
	// StartSession opens a conversation primed with the given system prompt.
	// Fails only when the model cannot be reached or configured.
	StartSession(ctx context.Context, systemPrompt string) (Session, error)

	// Model returns the model name used by new sessions.
	Model() string
}

// Session is a stateful conversation with a model.
type Session interface {
	// Send delivers a user message and returns the model's reply text.
	// A failed call leaves the session history unchanged.
	Send(ctx context.Context, text string) (string, error)
}

// HistorySyncer is implemented by sessions whose history can be replaced.
// The executor uses it to push a summarized or pruned conversation into the
// session before the next prompt.
type HistorySyncer interface {
	SyncHistory(turns []types.Turn)
}

// ModelCloner is an optional interface that clients can implement to support
// per-call model overrides, for example a cheaper model for summarization.
// The returned client shares credentials and transport with the original.
type ModelCloner interface {
	CloneWithModel(model string) Client
}

// ForModel returns a client for model when c supports cloning and model is
// non-empty, otherwise c itself.
func ForModel(c Client, model string) Client {
	if model == "" {
		return c
	}
	if cloner, ok := c.(ModelCloner); ok {
		return cloner.CloneWithModel(model)
	}
	return c
}
